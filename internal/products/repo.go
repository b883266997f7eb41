package products

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) List(ctx context.Context, orgID uuid.UUID, input ListInput) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Where("org_id = ?", orgID)
	if input.CategoryCode != nil {
		q = q.Where("category_code = ?", *input.CategoryCode)
	}
	if term := strings.TrimSpace(input.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}
	var rows []models.Product
	err := q.Order("code ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*models.Product, error) {
	var row models.Product
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByCodeForUpdate loads a product by code, locking the row on Postgres.
func (r *Repository) FindByCodeForUpdate(ctx context.Context, orgID uuid.UUID, code string) (*models.Product, error) {
	var row models.Product
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("org_id = ? AND code = ?", orgID, code).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CodesInCategory returns product codes filed under categoryCode, or the
// uncategorized codes when categoryCode is nil.
func (r *Repository) CodesInCategory(ctx context.Context, orgID uuid.UUID, categoryCode *string) ([]string, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{}).Where("org_id = ?", orgID)
	if categoryCode == nil {
		q = q.Where("category_code IS NULL")
	} else {
		q = q.Where("category_code = ?", *categoryCode)
	}
	var out []string
	err := q.Pluck("code", &out).Error
	return out, err
}

func (r *Repository) CategoryExists(ctx context.Context, orgID uuid.UUID, code string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("org_id = ? AND code = ?", orgID, code).
		Count(&n).Error
	return n > 0, err
}

func (r *Repository) Create(ctx context.Context, row *models.Product) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// UpdateFields writes catalog columns and bumps version. Stock and average
// cost are left to transactions.
func (r *Repository) UpdateFields(ctx context.Context, orgID, id uuid.UUID, fields map[string]any) error {
	fields["version"] = gorm.Expr("version + 1")
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Updates(fields).Error
}

// UpdateStock persists a stock mutation if the row still has expectedVersion.
// It reports false when another writer got there first.
func (r *Repository) UpdateStock(ctx context.Context, row *models.Product, expectedVersion int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("org_id = ? AND id = ? AND version = ?", row.OrgID, row.ID, expectedVersion).
		Updates(map[string]any{
			"stock":    row.Stock,
			"avg_cost": row.AvgCost,
			"price":    row.Price,
			"version":  expectedVersion + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		row.Version = expectedVersion + 1
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) Delete(ctx context.Context, orgID, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Delete(&models.Product{})
	return res.RowsAffected, res.Error
}

// StockRows returns the columns the dashboard aggregates.
func (r *Repository) StockRows(ctx context.Context, orgID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Select("id", "stock", "price", "low_stock").
		Where("org_id = ?", orgID).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Count(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("org_id = ?", orgID).Count(&n).Error
	return n, err
}

func (r *Repository) CountOffersSince(ctx context.Context, orgID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("org_id = ? AND created_at >= ?", orgID, since).
		Count(&n).Error
	return n, err
}

// SalesSince returns sale transactions recorded at or after since.
func (r *Repository) SalesSince(ctx context.Context, orgID uuid.UUID, since time.Time) ([]models.Txn, error) {
	var rows []models.Txn
	err := r.db.WithContext(ctx).
		Select("id", "qty", "unit_price").
		Where("org_id = ? AND type = ? AND created_at >= ?", orgID, enums.TxnTypeSale, since).
		Find(&rows).Error
	return rows, err
}
