package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/iliria/erp-backend/internal/usage"
	"github.com/iliria/erp-backend/pkg/logger"
)

type orgLister interface {
	ListOrgIDs(ctx context.Context) ([]uuid.UUID, error)
}

type UsageAlertJobParams struct {
	Logger *logger.Logger
	Orgs   orgLister
	Usage  usage.Service
}

// NewUsageAlertJob logs a warning for every org whose database or storage
// meter has left the ok level.
func NewUsageAlertJob(params UsageAlertJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Orgs == nil:
		return nil, fmt.Errorf("org lister required")
	case params.Usage == nil:
		return nil, fmt.Errorf("usage service required")
	}
	return &usageAlertJob{logg: params.Logger, orgs: params.Orgs, usage: params.Usage}, nil
}

type usageAlertJob struct {
	logg  *logger.Logger
	orgs  orgLister
	usage usage.Service
}

func (j *usageAlertJob) Name() string { return "usage-alerts" }

// Run checks every org; one failing org does not hide the others.
func (j *usageAlertJob) Run(ctx context.Context) error {
	ids, err := j.orgs.ListOrgIDs(ctx)
	if err != nil {
		return fmt.Errorf("list orgs: %w", err)
	}
	var errs error
	alerts := 0
	for _, orgID := range ids {
		m, err := j.usage.Metrics(ctx, orgID)
		if err != nil {
			multierr.AppendInto(&errs, fmt.Errorf("org %s: %w", orgID, err))
			continue
		}
		for name, meter := range map[string]usage.Meter{"database": m.Database, "storage": m.Storage} {
			if meter.Level == usage.LevelOK {
				continue
			}
			alerts++
			j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
				"org_id":  orgID.String(),
				"meter":   name,
				"level":   meter.Level,
				"percent": meter.Percent,
				"used":    meter.UsedLabel,
				"limit":   meter.LimitLabel,
			}), "org usage above threshold")
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"orgs_checked": len(ids),
		"alerts":       alerts,
	}), "usage check complete")
	return errs
}
