package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/iliria/erp-backend/api/responses"
	"github.com/iliria/erp-backend/internal/orgs"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
)

type MembershipResolver interface {
	ResolveMembership(ctx context.Context, userID uuid.UUID) (*orgs.Membership, error)
}

// OrgContext resolves the caller's org membership. Users without an org get 403.
func OrgContext(resolver MembershipResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if resolver == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership resolver unavailable"))
				return
			}

			principal, ok := PrincipalFromContext(ctx)
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
				return
			}

			m, err := resolver.ResolveMembership(ctx, principal.UserID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = WithMembership(ctx, *m)
			if logg != nil {
				ctx = logg.WithOrgID(ctx, m.OrgID.String())
				ctx = logg.WithMemberRole(ctx, string(m.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
