package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/iliria/erp-backend/api/middleware"
	"github.com/iliria/erp-backend/api/responses"
	"github.com/iliria/erp-backend/internal/orgs"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
)

// membership returns the org context or writes a 403.
func membership(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (orgs.Membership, bool) {
	m, ok := middleware.MembershipFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "org context missing"))
		return orgs.Membership{}, false
	}
	return m, true
}

func userID(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return uuid.Nil, false
	}
	return p.UserID, true
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s service unavailable", name))
}
