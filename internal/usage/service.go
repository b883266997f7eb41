package usage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/config"
	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/db/models"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/storage/gcs"
)

type Level string

const (
	LevelOK       Level = "ok"
	LevelWarn     Level = "warn"
	LevelCritical Level = "critical"
)

// Meter is one quota bar.
type Meter struct {
	Used       int64  `json:"used"`
	Limit      int64  `json:"limit"`
	Percent    int    `json:"percent"`
	Level      Level  `json:"level"`
	UsedLabel  string `json:"used_label"`
	LimitLabel string `json:"limit_label"`
}

// MetricsDTO keeps the fn_usage_metrics field names and adds the quota meters.
type MetricsDTO struct {
	DBTotalBytes      int64 `json:"db_total_bytes"`
	ProductsRows      int64 `json:"products_rows"`
	CategoriesRows    int64 `json:"categories_rows"`
	TxnsRows          int64 `json:"txns_rows"`
	StorageTotalBytes int64 `json:"storage_total_bytes"`
	StorageFiles      int64 `json:"storage_files"`
	Database          Meter `json:"database"`
	Storage           Meter `json:"storage"`
}

type objectUsage interface {
	ListUsage(ctx context.Context, prefix string) (gcs.Usage, error)
}

type Service interface {
	Metrics(ctx context.Context, orgID uuid.UUID) (*MetricsDTO, error)
}

type service struct {
	db      *gorm.DB
	storage objectUsage
	limits  config.UsageConfig
}

// NewService builds the usage reporter. storage may be nil when no bucket is
// configured; storage usage then reads as zero.
func NewService(conn *gorm.DB, storage objectUsage, limits config.UsageConfig) (Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("db required")
	}
	return &service{db: conn, storage: storage, limits: limits}, nil
}

func (s *service) Metrics(ctx context.Context, orgID uuid.UUID) (*MetricsDTO, error) {
	out := &MetricsDTO{}
	var err error

	if out.DBTotalBytes, err = s.databaseBytes(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read database size")
	}
	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.Product{}, &out.ProductsRows},
		{&models.Category{}, &out.CategoriesRows},
		{&models.Txn{}, &out.TxnsRows},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(c.model).Where("org_id = ?", orgID).Count(c.dst).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count rows")
		}
	}

	if s.storage != nil {
		u, err := s.storage.ListUsage(ctx, orgID.String()+"/")
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read storage usage")
		}
		out.StorageTotalBytes = u.Bytes
		out.StorageFiles = u.Files
	}

	out.Database = s.meter(out.DBTotalBytes, s.limits.DBLimitBytes)
	out.Storage = s.meter(out.StorageTotalBytes, s.limits.StorageLimitBytes)
	return out, nil
}

// databaseBytes reports the whole database size. Only Postgres exposes it.
func (s *service) databaseBytes(ctx context.Context) (int64, error) {
	if db.Dialect(s.db) != db.DialectPostgres {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Raw("SELECT pg_database_size(current_database())").Scan(&n).Error
	return n, err
}

func (s *service) meter(used, limit int64) Meter {
	pct := Percent(used, limit)
	return Meter{
		Used:       used,
		Limit:      limit,
		Percent:    pct,
		Level:      LevelFor(pct, s.limits.WarnPercent, s.limits.CriticalPercent),
		UsedLabel:  FormatBytes(used),
		LimitLabel: FormatBytes(limit),
	}
}

// LevelFor classifies a percentage: critical above critical, warn above warn.
func LevelFor(pct, warn, critical int) Level {
	switch {
	case pct > critical:
		return LevelCritical
	case pct > warn:
		return LevelWarn
	default:
		return LevelOK
	}
}
