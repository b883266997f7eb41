package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/iliria/erp-backend/internal/products"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
)

type objectStore interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) error
	DeleteObject(ctx context.Context, object string) error
	PublicURL(object string) string
	ObjectFromURL(publicURL string) (string, bool)
}

type productImages interface {
	Get(ctx context.Context, orgID, id uuid.UUID) (*products.ProductDTO, error)
	SetImage(ctx context.Context, orgID, id uuid.UUID, url string) (*products.ProductDTO, error)
}

// Service uploads product images into the product-images bucket.
type Service interface {
	UploadProductImage(ctx context.Context, orgID, productID uuid.UUID, input UploadInput) (*products.ProductDTO, error)
}

// UploadInput is one image file. DeclaredType is the client supplied content
// type; the stored type is always sniffed from the bytes.
type UploadInput struct {
	FileName     string
	DeclaredType string
	Body         io.Reader
}

type service struct {
	store    objectStore
	products productImages
	maxBytes int64
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(store objectStore, prods productImages, maxBytes int64, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if prods == nil {
		return nil, fmt.Errorf("products service required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	return &service{store: store, products: prods, maxBytes: maxBytes, logg: logg, now: time.Now}, nil
}

func (s *service) UploadProductImage(ctx context.Context, orgID, productID uuid.UUID, input UploadInput) (*products.ProductDTO, error) {
	if input.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}
	data, err := io.ReadAll(io.LimitReader(input.Body, s.maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, pkgerrors.Newf(pkgerrors.CodeTooLarge, "image must be at most %d bytes", s.maxBytes).
			WithDetails(map[string]any{"max_bytes": s.maxBytes})
	}

	detected := mimetype.Detect(data)
	contentType := detected.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file must be an image").
			WithDetails(map[string]any{"content_type": contentType, "declared": strings.TrimSpace(input.DeclaredType)})
	}

	product, err := s.products.Get(ctx, orgID, productID)
	if err != nil {
		return nil, err
	}

	object := ObjectKey(orgID, product.Code, s.now(), detected.Extension())
	if err := s.store.Upload(ctx, object, contentType, bytes.NewReader(data)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload image")
	}

	updated, err := s.products.SetImage(ctx, orgID, productID, s.store.PublicURL(object))
	if err != nil {
		if delErr := s.store.DeleteObject(ctx, object); delErr != nil && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "object", object), "failed to remove orphaned image", delErr)
		}
		return nil, err
	}
	if product.ImageURL != nil {
		s.dropReplaced(ctx, *product.ImageURL, object)
	}
	return updated, nil
}

// dropReplaced removes the image a new upload superseded. The product already
// points at the new object, so a failed delete only leaves an orphan behind.
func (s *service) dropReplaced(ctx context.Context, previousURL, current string) {
	old, ok := s.store.ObjectFromURL(previousURL)
	if !ok || old == current {
		return
	}
	if err := s.store.DeleteObject(ctx, old); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "object", old), "failed to remove replaced image", err)
	}
}

// ObjectKey names an uploaded image: {org_id}/{product_code}-{unix}{ext}.
func ObjectKey(orgID uuid.UUID, productCode string, at time.Time, ext string) string {
	return fmt.Sprintf("%s/%s-%d%s", orgID, sanitize(productCode), at.Unix(), ext)
}

func sanitize(code string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(code) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "product"
	}
	return b.String()
}
