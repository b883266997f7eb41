package middleware

import (
	"net/http"

	"github.com/iliria/erp-backend/api/responses"
	"github.com/iliria/erp-backend/pkg/enums"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
)

// RequireRoles admits members holding one of the allowed roles. It must run
// after OrgContext.
func RequireRoles(logg *logger.Logger, allowed ...enums.MemberRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m, ok := MembershipFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "org context missing"))
				return
			}
			for _, role := range allowed {
				if m.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
		})
	}
}

// RequireManager admits owners and admins.
func RequireManager(logg *logger.Logger) func(http.Handler) http.Handler {
	return RequireRoles(logg, enums.MemberRoleOwner, enums.MemberRoleAdmin)
}
