package categories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/db/models"
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

func (r *Repository) List(ctx context.Context, orgID uuid.UUID) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("code ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Codes(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("org_id = ?", orgID).
		Pluck("code", &out).Error
	return out, err
}

func (r *Repository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*models.Category, error) {
	var row models.Category
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(ctx context.Context, row *models.Category) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) Update(ctx context.Context, row *models.Category) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *Repository) Delete(ctx context.Context, orgID, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Delete(&models.Category{})
	return res.RowsAffected, res.Error
}

// CountProducts counts products filed under code.
func (r *Repository) CountProducts(ctx context.Context, orgID uuid.UUID, code string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("org_id = ? AND category_code = ?", orgID, code).
		Count(&n).Error
	return n, err
}

// RenameProductCategory moves products from one category code to another.
func (r *Repository) RenameProductCategory(ctx context.Context, orgID uuid.UUID, from, to string) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("org_id = ? AND category_code = ?", orgID, from).
		Update("category_code", to).Error
}
