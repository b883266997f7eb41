// Package bigquery wraps the analytics dataset: it provisions tables on
// startup and streams rows into them.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/iliria/erp-backend/pkg/config"
	"github.com/iliria/erp-backend/pkg/gcp"
	"github.com/iliria/erp-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// TableSpec describes a table the service owns.
type TableSpec struct {
	Name   string
	Schema bigquery.Schema
	// PartitionField enables daily time partitioning on a TIMESTAMP column.
	PartitionField string
}

type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	logg    *logger.Logger
}

// NewClient connects and checks that the dataset exists. Tables are
// provisioned separately through EnsureTable.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcpCfg.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}

	bq, err := bigquery.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	c := &Client{bq: bq, dataset: bq.Dataset(datasetID), logg: logg}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "dataset", datasetID), "bigquery client initialized")
	}
	return c, nil
}

// Ping reads the dataset metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("dataset %q: %w", c.dataset.DatasetID, err)
	}
	return nil
}

// EnsureTable creates spec's table when it is missing. An existing table is
// left untouched even if its schema differs.
func (c *Client) EnsureTable(ctx context.Context, spec TableSpec) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return errTableNameRequired
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	table := c.dataset.Table(name)
	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("table %q: %w", name, err)
	}

	meta := &bigquery.TableMetadata{Schema: spec.Schema}
	if spec.PartitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: spec.PartitionField}
	}
	if err := table.Create(ctx, meta); err != nil && !isConflict(err) {
		return fmt.Errorf("create table %q: %w", name, err)
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "table", name), "bigquery table created")
	}
	return nil
}

// InsertRows streams rows into table. Rows implementing ValueSaver control
// their own insert ids.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	if strings.TrimSpace(table) == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(strings.TrimSpace(table)).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func isNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

// isConflict covers a concurrent worker creating the same table first.
func isConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

func hasStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
