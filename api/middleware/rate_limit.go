package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/iliria/erp-backend/api/responses"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
	pkgredis "github.com/iliria/erp-backend/pkg/redis"
)

// RateLimitPolicy is a fixed window quota applied per org.
type RateLimitPolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p RateLimitPolicy) enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// OrgRateLimit throttles a route per org and answers 429 with Retry-After once
// the window is exhausted. It must run after OrgContext.
func OrgRateLimit(policy RateLimitPolicy, limiter pkgredis.RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			orgID := OrgIDFromContext(ctx)
			if orgID == "" {
				orgID = UserIDFromContext(ctx)
			}
			scope := policy.Name + ":" + orgID

			quota, err := limiter.Allow(ctx, scope, int64(policy.Limit), policy.Window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if quota.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			wait := quota.ResetIn
			if wait <= 0 {
				wait = policy.Window
			}
			seconds := int(math.Ceil(wait.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(seconds))

			if logg != nil {
				logCtx := logg.WithFields(ctx, map[string]any{
					"policy":   policy.Name,
					"attempts": quota.Count,
					"limit":    policy.Limit,
				})
				logg.Warn(logCtx, "rate_limit.blocked")
			}
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
				WithDetails(map[string]any{"retry_after_seconds": seconds}))
		})
	}
}
