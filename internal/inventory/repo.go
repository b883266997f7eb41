package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/pagination"
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

func (r *Repository) Create(ctx context.Context, txn *models.Txn) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// List returns one keyset page of transactions, plus one lookahead row.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, input ListInput, cursor *pagination.Cursor, size int) ([]models.Txn, error) {
	q := r.db.WithContext(ctx).Where("org_id = ?", orgID)
	if code := strings.TrimSpace(input.ProductCode); code != "" {
		q = q.Where("product_code = ?", code)
	}
	if input.Type != nil {
		q = q.Where("type = ?", *input.Type)
	}
	var rows []models.Txn
	err := q.Scopes(pagination.Keyset(cursor, size)).Find(&rows).Error
	return rows, err
}
