// Package gcs stores product images in a single Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/iliria/erp-backend/pkg/config"
	"github.com/iliria/erp-backend/pkg/gcp"
	"github.com/iliria/erp-backend/pkg/logger"
)

const (
	pingTimeout   = 5 * time.Second
	listPageSize  = 1000
	imageCacheTTL = "public, max-age=31536000"
)

var errNotReady = errors.New("gcs client not initialized")

type Client struct {
	objects *storage.ObjectsService
	buckets *storage.BucketsService
	bucket  string
	urls    urlMapper
}

// Usage is the aggregate size of the objects under a prefix.
type Usage struct {
	Bytes int64
	Files int64
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcpCfg config.GCPConfig, logg *logger.Logger) (*Client, error) {
	opts := gcp.ClientOptions(gcpCfg)
	if cfg.Endpoint != "" {
		opts = []option.ClientOption{option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication()}
	}
	client, err := newClient(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs bucket %s: %w", cfg.BucketName, err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client ready")
	}
	return client, nil
}

func newClient(ctx context.Context, cfg config.GCSConfig, opts ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage service: %w", err)
	}
	return &Client{
		objects: svc.Objects,
		buckets: svc.Buckets,
		bucket:  cfg.BucketName,
		urls:    newURLMapper(cfg.PublicBaseURL, cfg.BucketName),
	}, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

func (c *Client) Close() error { return nil }

// Ping reads the bucket's metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.buckets == nil {
		return errNotReady
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := c.buckets.Get(c.bucket).Fields("name").Context(ctx).Do()
	return err
}

// Upload stores body as object. Image names carry a timestamp, so objects
// are never overwritten and can be cached for a year.
func (c *Client) Upload(ctx context.Context, object, contentType string, body io.Reader) error {
	if c == nil || c.objects == nil {
		return errNotReady
	}
	if strings.TrimSpace(object) == "" {
		return errors.New("object name is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	meta := &storage.Object{Name: object, ContentType: contentType, CacheControl: imageCacheTTL}
	if _, err := c.objects.Insert(c.bucket, meta).
		Media(body, googleapi.ContentType(contentType)).
		Fields("name").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("upload %s: %w", object, err)
	}
	return nil
}

// DeleteObject removes object. A missing object is not an error.
func (c *Client) DeleteObject(ctx context.Context, object string) error {
	if c == nil || c.objects == nil {
		return errNotReady
	}
	err := c.objects.Delete(c.bucket, object).Context(ctx).Do()
	if err == nil || isStatus(err, http.StatusNotFound) {
		return nil
	}
	return fmt.Errorf("delete %s: %w", object, err)
}

// ListUsage sums object sizes under prefix across every page.
func (c *Client) ListUsage(ctx context.Context, prefix string) (Usage, error) {
	if c == nil || c.objects == nil {
		return Usage{}, errNotReady
	}
	var usage Usage
	err := c.objects.List(c.bucket).
		Prefix(prefix).
		MaxResults(listPageSize).
		Fields("items(size)", "nextPageToken").
		Pages(ctx, func(page *storage.Objects) error {
			for _, obj := range page.Items {
				usage.Bytes += int64(obj.Size)
				usage.Files++
			}
			return nil
		})
	if err != nil {
		return Usage{}, fmt.Errorf("list %s: %w", prefix, err)
	}
	return usage, nil
}

// PublicURL is the unauthenticated URL of object.
func (c *Client) PublicURL(object string) string {
	if c == nil {
		return ""
	}
	return c.urls.toURL(object)
}

// ObjectFromURL reverses PublicURL. URLs outside the bucket report false.
func (c *Client) ObjectFromURL(publicURL string) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.urls.toObject(publicURL)
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
