package controllers

import (
	"net/http"

	"github.com/iliria/erp-backend/api/responses"
	"github.com/iliria/erp-backend/api/validators"
	"github.com/iliria/erp-backend/internal/inventory"
	"github.com/iliria/erp-backend/pkg/enums"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
)

// TxnsList pages the stock log newest first. Filters: product_code, type.
func TxnsList(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		page, err := validators.Page(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := inventory.ListInput{Pagination: page}
		if code := validators.QueryString(r, "product_code", 40); code != nil {
			input.ProductCode = *code
		}
		if raw := validators.QueryString(r, "type", 16); raw != nil {
			t, err := enums.ParseTxnType(*raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
				return
			}
			input.Type = &t
		}
		out, err := svc.List(r.Context(), m.OrgID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// TxnsApply applies one purchase, sale or adjust.
func TxnsApply(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		var payload inventory.ApplyInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Apply(r.Context(), m, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}
