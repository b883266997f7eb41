package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
)

const sequenceScope = "offer"

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

// NextNumber atomically increments and returns the org's offer counter.
func (r *Repository) NextNumber(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO org_sequences (org_id, scope, last_value) VALUES (?, ?, 1)
		ON CONFLICT (org_id, scope) DO UPDATE SET last_value = org_sequences.last_value + 1
		RETURNING last_value`, orgID, sequenceScope).Scan(&n).Error
	return n, err
}

// PeekNumber returns the number NextNumber would hand out, without taking it.
func (r *Repository) PeekNumber(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var rows []models.OrgSequence
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND scope = ?", orgID, sequenceScope).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 1, nil
	}
	return rows[0].LastValue + 1, nil
}

// Create inserts the offer and its items.
func (r *Repository) Create(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *Repository) ListLatest(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Offer, error) {
	var rows []models.Offer
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Order("number DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FindByID loads an offer with its items ordered by position.
func (r *Repository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*models.Offer, error) {
	var row models.Offer
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) MarkSent(ctx context.Context, offer *models.Offer, at time.Time) error {
	updates := map[string]any{"sent_at": at}
	if offer.Status == enums.OfferStatusDraft {
		updates["status"] = enums.OfferStatusSent
	}
	if err := r.db.WithContext(ctx).Model(&models.Offer{}).Where("id = ?", offer.ID).Updates(updates).Error; err != nil {
		return err
	}
	offer.SentAt = &at
	if offer.Status == enums.OfferStatusDraft {
		offer.Status = enums.OfferStatusSent
	}
	return nil
}

// MarkConverted flips the status unless the offer was already converted. It
// reports false when it lost that race.
func (r *Repository) MarkConverted(ctx context.Context, offer *models.Offer, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ? AND status <> ?", offer.ID, enums.OfferStatusConverted).
		Updates(map[string]any{"status": enums.OfferStatusConverted, "converted_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	offer.Status = enums.OfferStatusConverted
	offer.ConvertedAt = &at
	return true, nil
}
