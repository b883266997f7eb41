package controllers

import (
	"net/http"

	"github.com/iliria/erp-backend/api/responses"
	"github.com/iliria/erp-backend/api/validators"
	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/pkg/logger"
)

// OrgBootstrap creates the caller's org with an owner membership and default settings.
func OrgBootstrap(svc orgs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "org")
			return
		}
		uid, ok := userID(w, r, logg)
		if !ok {
			return
		}
		var payload orgs.BootstrapInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Bootstrap(r.Context(), uid, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

func OrgCurrent(svc orgs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "org")
			return
		}
		uid, ok := userID(w, r, logg)
		if !ok {
			return
		}
		out, err := svc.Current(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func SettingsGet(svc orgs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		out, err := svc.GetSettings(r.Context(), m.OrgID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func SettingsUpdate(svc orgs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		var payload orgs.UpdateSettingsInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.UpdateSettings(r.Context(), m, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
