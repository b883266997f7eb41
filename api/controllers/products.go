package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/iliria/erp-backend/api/responses"
	"github.com/iliria/erp-backend/api/validators"
	"github.com/iliria/erp-backend/internal/media"
	"github.com/iliria/erp-backend/internal/products"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
)

// ProductsList supports ?category_code= and a free text ?q= over code and name.
func ProductsList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		input := products.ListInput{CategoryCode: validators.QueryString(r, "category_code", 32)}
		if q := validators.QueryString(r, "q", 80); q != nil {
			input.Query = *q
		}
		out, err := svc.List(r.Context(), m.OrgID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func ProductsGet(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Get(r.Context(), m.OrgID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func ProductsNextCode(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		out, err := svc.NextCode(r.Context(), m.OrgID, validators.QueryString(r, "category_code", 32))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func ProductsCreate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		var payload products.CreateInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Create(r.Context(), m, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

func ProductsUpdate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload products.UpdateInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Update(r.Context(), m.OrgID, id, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func ProductsDelete(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), m, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// multipartOverhead leaves room for boundaries and part headers.
const multipartOverhead = 64 << 10

// ProductsUploadImage accepts a multipart "file" part and stores it as the product image.
func ProductsUploadImage(svc media.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "media")
			return
		}
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
		if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeTooLarge, "image must be at most %d bytes", maxBytes))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required"))
			return
		}
		defer file.Close()

		out, err := svc.UploadProductImage(r.Context(), m.OrgID, id, media.UploadInput{
			FileName:     header.Filename,
			DeclaredType: header.Header.Get("Content-Type"),
			Body:         file,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// Dashboard returns the home page aggregates.
func Dashboard(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		out, err := svc.Dashboard(r.Context(), m.OrgID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
