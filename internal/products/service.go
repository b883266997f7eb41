package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/pkg/codes"
	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/outbox/payloads"
)

const (
	codeConstraint = "ux_products_org_code"
	codeAttempts   = 3
)

type settingsReader interface {
	FindSettings(ctx context.Context, orgID uuid.UUID) (*models.Settings, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type retryRecorder interface {
	CodeRetry(scope string)
}

// Service exposes catalog management and the stock dashboard.
type Service interface {
	List(ctx context.Context, orgID uuid.UUID, input ListInput) ([]ProductDTO, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*ProductDTO, error)
	NextCode(ctx context.Context, orgID uuid.UUID, categoryCode *string) (*NextCodeDTO, error)
	Create(ctx context.Context, m orgs.Membership, input CreateInput) (*ProductDTO, error)
	Update(ctx context.Context, orgID, id uuid.UUID, input UpdateInput) (*ProductDTO, error)
	SetImage(ctx context.Context, orgID, id uuid.UUID, url string) (*ProductDTO, error)
	Delete(ctx context.Context, m orgs.Membership, id uuid.UUID) error
	Dashboard(ctx context.Context, orgID uuid.UUID) (*DashboardDTO, error)
}

type service struct {
	repo      *Repository
	settings  settingsReader
	tx        txRunner
	emitter   outbox.Emitter
	dashboard *DashboardCache
	metrics   retryRecorder
	now       func() time.Time
}

func NewService(repo *Repository, settings settingsReader, tx txRunner, emitter outbox.Emitter, dashboard *DashboardCache, metrics retryRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:      repo,
		settings:  settings,
		tx:        tx,
		emitter:   emitter,
		dashboard: dashboard,
		metrics:   metrics,
		now:       time.Now,
	}, nil
}

func (s *service) List(ctx context.Context, orgID uuid.UUID, input ListInput) ([]ProductDTO, error) {
	rows, err := s.repo.List(ctx, orgID, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, ToDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, orgID, id uuid.UUID) (*ProductDTO, error) {
	row, err := s.find(ctx, s.repo, orgID, id)
	if err != nil {
		return nil, err
	}
	dto := ToDTO(row)
	return &dto, nil
}

func (s *service) find(ctx context.Context, repo *Repository, orgID, id uuid.UUID) (*models.Product, error) {
	row, err := repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return row, nil
}

func (s *service) NextCode(ctx context.Context, orgID uuid.UUID, categoryCode *string) (*NextCodeDTO, error) {
	settings, err := s.loadSettings(ctx, orgID)
	if err != nil {
		return nil, err
	}
	code, err := nextCode(ctx, s.repo, orgID, normalizeCategory(categoryCode), settings)
	if err != nil {
		return nil, err
	}
	return &NextCodeDTO{Code: code}, nil
}

func (s *service) loadSettings(ctx context.Context, orgID uuid.UUID) (*models.Settings, error) {
	settings, err := s.settings.FindSettings(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	return settings, nil
}

func nextCode(ctx context.Context, repo *Repository, orgID uuid.UUID, categoryCode *string, settings *models.Settings) (string, error) {
	existing, err := repo.CodesInCategory(ctx, orgID, categoryCode)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product codes")
	}
	if categoryCode != nil {
		return codes.NextProductCode(*categoryCode, existing, settings.ProductCodeWidth), nil
	}
	return codes.Next(existing, settings.ProductCodeWidth, orgs.Prefix(settings)), nil
}

func normalizeCategory(code *string) *string {
	if code == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*code)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *service) Create(ctx context.Context, m orgs.Membership, input CreateInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	row := models.Product{
		OrgID:        m.OrgID,
		CategoryCode: normalizeCategory(input.CategoryCode),
		Name:         name,
		Description:  input.Description,
		Price:        input.Price.Or(decimal.Zero),
		Stock:        input.Stock.Or(decimal.Zero),
		LowStock:     input.LowStock.Or(decimal.Zero),
		AvgCost:      input.AvgCost.Or(decimal.Zero),
		ImageURL:     input.ImageURL,
	}
	if err := validateAmounts(row.Price, row.Stock, row.LowStock, row.AvgCost); err != nil {
		return nil, err
	}
	settings, err := s.loadSettings(ctx, m.OrgID)
	if err != nil {
		return nil, err
	}

	explicit := strings.TrimSpace(input.Code)
	attempts := codeAttempts
	if explicit != "" {
		attempts = 1
	}

	err = db.RetryOnUniqueViolation(attempts, codeConstraint, func(attempt int) error {
		if attempt > 1 && s.metrics != nil {
			s.metrics.CodeRetry("product")
		}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := requireCategory(ctx, repo, m.OrgID, row.CategoryCode); err != nil {
				return err
			}
			row.ID = uuid.Nil
			row.Code = explicit
			if row.Code == "" {
				code, err := nextCode(ctx, repo, m.OrgID, row.CategoryCode, settings)
				if err != nil {
					return err
				}
				row.Code = code
			}
			if err := repo.Create(ctx, &row); err != nil {
				return err
			}
			return s.emitter.Emit(ctx, tx, outbox.Event{
				Type:          enums.EventProductCreated,
				AggregateType: enums.AggregateProduct,
				AggregateID:   row.ID,
				Actor:         m.Actor(),
				Data: payloads.ProductEvent{
					OrgID:     m.OrgID,
					ProductID: row.ID,
					Code:      row.Code,
					Name:      row.Name,
				},
			})
		})
	})
	if err != nil {
		return nil, mapWriteError(err, "create product")
	}
	s.dashboard.Invalidate(ctx, m.OrgID)
	dto := ToDTO(&row)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, orgID, id uuid.UUID, input UpdateInput) (*ProductDTO, error) {
	var row *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.find(ctx, repo, orgID, id); err != nil {
			return err
		}

		fields := map[string]any{}
		if input.Code != nil {
			code := strings.TrimSpace(*input.Code)
			if code == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "code cannot be blank")
			}
			fields["code"] = code
		}
		if input.CategoryCode != nil {
			category := normalizeCategory(input.CategoryCode)
			if err := requireCategory(ctx, repo, orgID, category); err != nil {
				return err
			}
			fields["category_code"] = category
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank")
			}
			fields["name"] = name
		}
		if input.Description != nil {
			fields["description"] = *input.Description
		}
		if input.ImageURL != nil {
			fields["image_url"] = *input.ImageURL
		}
		if input.Price.IsSet() {
			fields["price"] = input.Price.Decimal()
		}
		if input.LowStock.IsSet() {
			fields["low_stock"] = input.LowStock.Decimal()
		}
		if err := validateAmounts(input.Price.Or(decimal.Zero), decimal.Zero, input.LowStock.Or(decimal.Zero), decimal.Zero); err != nil {
			return err
		}

		if len(fields) > 0 {
			if err := repo.UpdateFields(ctx, orgID, id, fields); err != nil {
				return err
			}
		}
		var err error
		row, err = s.find(ctx, repo, orgID, id)
		return err
	})
	if err != nil {
		return nil, mapWriteError(err, "update product")
	}
	s.dashboard.Invalidate(ctx, orgID)
	dto := ToDTO(row)
	return &dto, nil
}

// SetImage stores the public URL of an uploaded product image.
func (s *service) SetImage(ctx context.Context, orgID, id uuid.UUID, url string) (*ProductDTO, error) {
	return s.Update(ctx, orgID, id, UpdateInput{ImageURL: &url})
}

func (s *service) Delete(ctx context.Context, m orgs.Membership, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := s.find(ctx, repo, m.OrgID, id)
		if err != nil {
			return err
		}
		if _, err := repo.Delete(ctx, m.OrgID, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		event := payloads.ProductEvent{
			OrgID:     m.OrgID,
			ProductID: row.ID,
			Code:      row.Code,
			Name:      row.Name,
		}
		if row.ImageURL != nil {
			event.ImageURL = *row.ImageURL
		}
		return s.emitter.Emit(ctx, tx, outbox.Event{
			Type:          enums.EventProductDeleted,
			AggregateType: enums.AggregateProduct,
			AggregateID:   row.ID,
			Actor:         m.Actor(),
			Data:          event,
		})
	})
	if err != nil {
		return mapWriteError(err, "delete product")
	}
	s.dashboard.Invalidate(ctx, m.OrgID)
	return nil
}

func (s *service) Dashboard(ctx context.Context, orgID uuid.UUID) (*DashboardDTO, error) {
	if cached, ok := s.dashboard.Get(ctx, orgID); ok {
		return cached, nil
	}
	rows, err := s.repo.StockRows(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dashboard")
	}
	out := Summarize(rows)

	since := MonthStart(s.now())
	if out.OffersMonth, err = s.repo.CountOffersSince(ctx, orgID, since); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count offers")
	}
	sales, err := s.repo.SalesSince(ctx, orgID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales")
	}
	for _, txn := range sales {
		if txn.UnitPrice != nil {
			out.SalesMonth = out.SalesMonth.Add(txn.Qty.Mul(*txn.UnitPrice))
		}
	}

	s.dashboard.Set(ctx, orgID, out)
	return &out, nil
}

// Summarize computes the stock KPIs over products.
func Summarize(rows []models.Product) DashboardDTO {
	out := DashboardDTO{ProductsCount: int64(len(rows)), StockValue: decimal.Zero, SalesMonth: decimal.Zero}
	for _, p := range rows {
		out.StockValue = out.StockValue.Add(p.Stock.Mul(p.Price))
		if p.IsLowStock() {
			out.LowStock++
		}
	}
	return out
}

// MonthStart is midnight UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func requireCategory(ctx context.Context, repo *Repository, orgID uuid.UUID, code *string) error {
	if code == nil {
		return nil
	}
	ok, err := repo.CategoryExists(ctx, orgID, *code)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check category")
	}
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown category %q", *code)
	}
	return nil
}

func validateAmounts(price, stock, lowStock, avgCost decimal.Decimal) error {
	switch {
	case price.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	case stock.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	case lowStock.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "low_stock cannot be negative")
	case avgCost.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "avg_cost cannot be negative")
	}
	return nil
}

func mapWriteError(err error, op string) error {
	if db.IsUniqueViolation(err, codeConstraint) {
		return pkgerrors.New(pkgerrors.CodeConflict, "product code already exists")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
