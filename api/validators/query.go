package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/pagination"
)

const maxCursorLength = 256

// QueryString returns the trimmed value clipped to maxLen bytes, or nil
// when the parameter is absent or blank.
func QueryString(r *http.Request, key string, maxLen int) *string {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil
	}
	if maxLen > 0 && len(v) > maxLen {
		v = v[:maxLen]
	}
	return &v
}

// QueryInt parses an optional integer parameter within [lo, hi].
func QueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := QueryString(r, key, 0)
	if raw == nil {
		return fallback, nil
	}
	n, err := strconv.Atoi(*raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be an integer").
			WithDetails(map[string]any{"field": key})
	}
	if n < lo || n > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is out of range").
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return n, nil
}

// QueryBool treats "1", "true" and "yes" as true; anything else is false.
func QueryBool(r *http.Request, key string) bool {
	raw := QueryString(r, key, 8)
	if raw == nil {
		return false
	}
	switch strings.ToLower(*raw) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Page reads limit and cursor for keyset-paged list endpoints.
func Page(r *http.Request) (pagination.Params, error) {
	limit, err := QueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	p := pagination.Params{Limit: limit}
	if c := QueryString(r, "cursor", maxCursorLength); c != nil {
		p.Cursor = *c
	}
	return p, nil
}
