package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/pkg/auth"
)

type ctxKey int

const (
	principalKey ctxKey = iota
	membershipKey
)

func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller set by Auth.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	return p, ok && p.UserID != uuid.Nil
}

// UserIDFromContext is the caller's id as a string, or "" outside Auth.
func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.UserID.String()
	}
	return ""
}

func WithMembership(ctx context.Context, m orgs.Membership) context.Context {
	return context.WithValue(ctx, membershipKey, m)
}

// MembershipFromContext returns the membership resolved by OrgContext.
func MembershipFromContext(ctx context.Context) (orgs.Membership, bool) {
	m, ok := ctx.Value(membershipKey).(orgs.Membership)
	return m, ok
}

func OrgIDFromContext(ctx context.Context) string {
	if m, ok := MembershipFromContext(ctx); ok {
		return m.OrgID.String()
	}
	return ""
}
