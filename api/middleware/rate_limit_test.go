package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iliria/erp-backend/internal/orgs"
	pkgredis "github.com/iliria/erp-backend/pkg/redis"
)

type fakeLimiter struct {
	counts map[string]int64
	ttl    time.Duration
}

func (f *fakeLimiter) Allow(_ context.Context, scope string, limit int64, _ time.Duration) (pkgredis.Quota, error) {
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[scope]++
	return pkgredis.Quota{Allowed: f.counts[scope] <= limit, Count: f.counts[scope], ResetIn: f.ttl}, nil
}

func TestOrgRateLimitBlocksAfterLimit(t *testing.T) {
	limiter := &fakeLimiter{ttl: 1500 * time.Millisecond}
	policy := RateLimitPolicy{Name: "send_offer", Limit: 2, Window: time.Hour}
	handler := OrgRateLimit(policy, limiter, nil)(okHandler())

	orgA := orgs.Membership{OrgID: uuid.New()}
	orgB := orgs.Membership{OrgID: uuid.New()}
	send := func(m orgs.Membership) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/offers/x/send", nil)
		req = req.WithContext(WithMembership(req.Context(), m))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp
	}

	for i := 0; i < 2; i++ {
		if resp := send(orgA); resp.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200 got %d", i, resp.Code)
		}
	}
	blocked := send(orgA)
	if blocked.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", blocked.Code)
	}
	if got := blocked.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2 got %q", got)
	}
	if resp := send(orgB); resp.Code != http.StatusOK {
		t.Fatalf("other org should not be throttled, got %d", resp.Code)
	}
}

func TestOrgRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := OrgRateLimit(RateLimitPolicy{Name: "off"}, &fakeLimiter{}, nil)(okHandler())
	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", resp.Code)
		}
	}
}
