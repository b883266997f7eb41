package middleware

import (
	"net/http"

	"github.com/iliria/erp-backend/api/responses"
	"github.com/iliria/erp-backend/pkg/auth"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
)

type tokenVerifier interface {
	Verify(raw string) (auth.Principal, error)
}

// Auth admits requests carrying a valid bearer token and stores the caller
// on the context.
func Auth(tokens tokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			principal, err := tokens.Verify(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			ctx := WithPrincipal(r.Context(), principal)
			if logg != nil {
				ctx = logg.WithUserID(ctx, principal.UserID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
