package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iliria/erp-backend/internal/usage"
)

type fakeOrgLister struct {
	ids []uuid.UUID
	err error
}

func (f fakeOrgLister) ListOrgIDs(context.Context) ([]uuid.UUID, error) { return f.ids, f.err }

type fakeUsage struct {
	byOrg  map[uuid.UUID]*usage.MetricsDTO
	failed uuid.UUID
	calls  int
}

func (f *fakeUsage) Metrics(_ context.Context, orgID uuid.UUID) (*usage.MetricsDTO, error) {
	f.calls++
	if orgID == f.failed {
		return nil, errors.New("gcs unavailable")
	}
	return f.byOrg[orgID], nil
}

func TestUsageAlertJobChecksEveryOrg(t *testing.T) {
	healthy, critical, broken := uuid.New(), uuid.New(), uuid.New()
	svc := &fakeUsage{
		byOrg: map[uuid.UUID]*usage.MetricsDTO{
			healthy:  {Database: usage.Meter{Level: usage.LevelOK}, Storage: usage.Meter{Level: usage.LevelOK}},
			critical: {Database: usage.Meter{Level: usage.LevelOK}, Storage: usage.Meter{Level: usage.LevelCritical, Percent: 91}},
		},
		failed: broken,
	}
	job, err := NewUsageAlertJob(UsageAlertJobParams{
		Logger: testLogger(),
		Orgs:   fakeOrgLister{ids: []uuid.UUID{healthy, broken, critical}},
		Usage:  svc,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), broken.String())
	require.Equal(t, 3, svc.calls)
}

func TestUsageAlertJobListFailure(t *testing.T) {
	job, err := NewUsageAlertJob(UsageAlertJobParams{
		Logger: testLogger(),
		Orgs:   fakeOrgLister{err: errors.New("db down")},
		Usage:  &fakeUsage{},
	})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}
