package analytics

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeInserter struct {
	errs  []error
	calls int
	table string
	rows  []any
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	f.calls++
	f.table = table
	f.rows = rows
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func newTestWriter(t *testing.T, client *fakeInserter) (*Writer, *[]time.Duration) {
	t.Helper()
	w, err := NewWriter(client, " inventory_events ", RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Second, MaximumBackoff: 1500 * time.Millisecond})
	require.NoError(t, err)
	var slept []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return w, &slept
}

func TestWriterRetriesTransientErrors(t *testing.T) {
	client := &fakeInserter{errs: []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		status.Error(codes.Unavailable, "try again"),
	}}
	w, slept := newTestWriter(t, client)

	require.NoError(t, w.Insert(context.Background(), EventRow{EventID: "e1"}, EventRow{EventID: "e2"}))
	require.Equal(t, 3, client.calls)
	require.Equal(t, "inventory_events", client.table)
	require.Len(t, client.rows, 2)
	require.Equal(t, []time.Duration{time.Second, 1500 * time.Millisecond}, *slept)
}

func TestWriterStopsOnPermanentError(t *testing.T) {
	client := &fakeInserter{errs: []error{&googleapi.Error{Code: http.StatusBadRequest}}}
	w, _ := newTestWriter(t, client)

	err := w.Insert(context.Background(), EventRow{EventID: "e1"})
	require.Error(t, err)
	require.Equal(t, 1, client.calls)
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "down")
	client := &fakeInserter{errs: []error{unavailable, unavailable, unavailable, unavailable}}
	w, _ := newTestWriter(t, client)

	require.ErrorContains(t, w.Insert(context.Background(), EventRow{EventID: "e1"}), "insert inventory_events rows")
	require.Equal(t, 3, client.calls)
}

func TestIsRetryableRowErrors(t *testing.T) {
	transient := bigquery.PutMultiError{{InsertID: "e1", Errors: bigquery.MultiError{status.Error(codes.Internal, "x")}}}
	permanent := bigquery.PutMultiError{{InsertID: "e1", Errors: bigquery.MultiError{errors.New("invalid field")}}}

	require.True(t, isRetryable(transient))
	require.False(t, isRetryable(permanent))
	require.False(t, isRetryable(errors.New("plain")))
}

func TestNewWriterValidates(t *testing.T) {
	_, err := NewWriter(nil, "t", RetryPolicy{})
	require.Error(t, err)
	_, err = NewWriter(&fakeInserter{}, "  ", RetryPolicy{})
	require.Error(t, err)

	w, err := NewWriter(&fakeInserter{}, "t", RetryPolicy{})
	require.NoError(t, err)
	require.Equal(t, defaultMaxAttempts, w.retry.MaxAttempts)
	require.Equal(t, defaultMaximumBackoff, w.retry.MaximumBackoff)
}
