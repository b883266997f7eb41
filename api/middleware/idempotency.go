package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iliria/erp-backend/api/responses"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
	pkgredis "github.com/iliria/erp-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	defaultIdempotencyTTL = 24 * time.Hour
	conversionTTL         = 7 * 24 * time.Hour
	// pendingLease bounds how long a crashed request blocks its key.
	pendingLease = 2 * time.Minute
)

// idempotentRoute describes one write endpoint that honours Idempotency-Key.
type idempotentRoute struct {
	method string
	// path segments; "*" matches exactly one segment
	pattern []string
	ttl     time.Duration
	// keyless requests run unguarded instead of failing
	optional bool
}

var idempotentRoutes = []idempotentRoute{
	{method: http.MethodPost, pattern: segments("/api/v1/txns")},
	{method: http.MethodPost, pattern: segments("/api/v1/offers")},
	{method: http.MethodPost, pattern: segments("/api/v1/offers/*/send")},
	{method: http.MethodPost, pattern: segments("/api/v1/offers/*/convert"), ttl: conversionTTL},
	{method: http.MethodPost, pattern: segments("/api/send-offer"), optional: true},
}

type recordState string

const (
	statePending  recordState = "pending"
	stateComplete recordState = "complete"
)

type replayRecord struct {
	State       recordState `json:"state"`
	Fingerprint string      `json:"fingerprint"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency makes the write routes above safe to retry. The first request
// for a key reserves it, runs, and stores its response; repeats with the same
// body replay that response. 5xx responses release the key so the client can
// retry. fallbackTTL applies to routes without their own retention.
func Idempotency(store pkgredis.IdempotencyStore, fallbackTTL time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if fallbackTTL <= 0 {
		fallbackTTL = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := lookupIdempotentRoute(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				if route.optional {
					next.ServeHTTP(w, r)
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintOf(body)
			key := store.IdempotencyKey(idempotencyScope(r), clientKey)

			prior, err := reserve(ctx, store, key, fingerprint)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if prior != nil {
				replay(ctx, logg, w, prior, fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.statusCode() >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			retention := route.ttl
			if retention <= 0 {
				retention = fallbackTTL
			}
			done := replayRecord{
				State:       stateComplete,
				Fingerprint: fingerprint,
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			if err := saveRecord(ctx, store, key, done, retention); err != nil && logg != nil {
				logg.Error(ctx, "store idempotent response", err)
			}
		})
	}
}

// reserve claims key for this request. It returns the existing record when
// another request got there first.
func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string) (*replayRecord, error) {
	pending, err := json.Marshal(replayRecord{State: statePending, Fingerprint: fingerprint})
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < 2; attempt++ {
		claimed, err := store.SetNX(ctx, key, string(pending), pendingLease)
		if err != nil || claimed {
			return nil, err
		}
		raw, err := store.Get(ctx, key)
		if errors.Is(err, pkgredis.ErrMiss) {
			// released between the two calls
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec replayRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	}
	return nil, errors.New("idempotency key contended")
}

func saveRecord(ctx context.Context, store pkgredis.IdempotencyStore, key string, rec replayRecord, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(raw), ttl)
}

func replay(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, rec *replayRecord, fingerprint string) {
	switch {
	case rec.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
	case rec.State != stateComplete:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
	default:
		if rec.ContentType != "" {
			w.Header().Set("Content-Type", rec.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.Status)
		_, _ = w.Write(rec.Body)
	}
}

// idempotencyScope keeps keys private to the caller and the endpoint.
func idempotencyScope(r *http.Request) string {
	ctx := r.Context()
	return strings.Join([]string{UserIDFromContext(ctx), OrgIDFromContext(ctx), r.Method, r.URL.Path}, "|")
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func lookupIdempotentRoute(method, path string) (idempotentRoute, bool) {
	parts := segments(path)
	for _, route := range idempotentRoutes {
		if route.method == method && matchSegments(route.pattern, parts) {
			return route, true
		}
	}
	return idempotentRoute{}, false
}

func segments(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func matchSegments(pattern, parts []string) bool {
	if len(pattern) != len(parts) {
		return false
	}
	for i, p := range pattern {
		if parts[i] == "" || (p != "*" && p != parts[i]) {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
