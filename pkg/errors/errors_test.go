package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresentFollowsCodePolicy(t *testing.T) {
	details := map[string]any{"field": "qty"}
	tests := []struct {
		code    Code
		status  int
		message string
		details bool
	}{
		{CodeValidation, http.StatusBadRequest, "raw message", true},
		{CodeNotFound, http.StatusNotFound, "raw message", false},
		{CodeStateConflict, http.StatusUnprocessableEntity, "raw message", true},
		{CodeIdempotency, http.StatusConflict, "raw message", true},
		{CodeRateLimit, http.StatusTooManyRequests, "raw message", true},
		{CodeTooLarge, http.StatusRequestEntityTooLarge, "raw message", true},
		{CodeInternal, http.StatusInternalServerError, "internal server error", false},
		{CodeDependency, http.StatusServiceUnavailable, "dependency unavailable", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			pub := Present(New(tt.code, "raw message").WithDetails(details))
			assert.Equal(t, tt.code, pub.Code)
			assert.Equal(t, tt.status, pub.Status)
			assert.Equal(t, tt.message, pub.Message)
			if tt.details {
				assert.Equal(t, details, pub.Details)
			} else {
				assert.Nil(t, pub.Details)
			}
		})
	}
}

func TestPresentHidesUntypedAndUnknown(t *testing.T) {
	pub := Present(fmt.Errorf("dial tcp 10.0.0.3:5432: %w", stdErrors.New("refused")))
	assert.Equal(t, CodeInternal, pub.Code)
	assert.Equal(t, "internal server error", pub.Message)
	assert.True(t, pub.Retryable)

	pub = Present(New("SOMETHING_ELSE", "secret"))
	assert.Equal(t, CodeInternal, pub.Code)
	assert.Equal(t, http.StatusInternalServerError, pub.Status)
	assert.NotContains(t, pub.Message, "secret")

	assert.Equal(t, http.StatusNotFound, StatusOf(fmt.Errorf("get: %w", New(CodeNotFound, "gone"))))
}

func TestErrorCarriesCodeMessageAndCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "insert product").WithDetails(map[string]any{"step": "insert"})

	assert.Equal(t, CodeDependency, err.Code())
	assert.Equal(t, "insert product", err.Message())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: insert product: connection refused", err.Error())
	assert.Equal(t, map[string]any{"step": "insert"}, err.Details())

	assert.Equal(t, "VALIDATION_ERROR: line 3: qty must be positive", Newf(CodeValidation, "line %d: qty must be positive", 3).Error())
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Error())
	assert.Nil(t, e.WithDetails("x"))
	assert.Nil(t, As(nil))
}

func TestIsCodeFollowsWrappedChain(t *testing.T) {
	outer := fmt.Errorf("apply txn: %w", New(CodeStateConflict, "insufficient stock"))
	assert.True(t, IsCode(outer, CodeStateConflict))
	assert.False(t, IsCode(outer, CodeNotFound))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
}

func TestDiagnoseCollectsChainAndPostgresFields(t *testing.T) {
	pg := &pgconn.PgError{Code: "23505", ConstraintName: "products_org_code_key", TableName: "products"}
	err := Wrap(CodeConflict, fmt.Errorf("insert: %w", pg), "product code taken")

	d := Diagnose(err)
	assert.Equal(t, CodeConflict, d.Code)
	assert.Len(t, d.Chain, 3)

	fields := d.Fields()
	assert.Equal(t, "23505", fields["pg_code"])
	assert.Equal(t, "products_org_code_key", fields["pg_constraint"])
	assert.NotContains(t, fields, "pg_detail")
}

func TestDiagnosePlainError(t *testing.T) {
	fields := Diagnose(stdErrors.New("boom")).Fields()
	require.Equal(t, "boom", fields["error"])
	assert.NotContains(t, fields, "error_chain")
	assert.NotContains(t, fields, "pg_code")
}
