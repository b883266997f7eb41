package orgs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/db/models"
)

// Repository persists orgs, memberships and settings.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateOrg(ctx context.Context, org *models.Org) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *Repository) CreateMember(ctx context.Context, member *models.OrgMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *Repository) CreateSettings(ctx context.Context, settings *models.Settings) error {
	return r.db.WithContext(ctx).Create(settings).Error
}

// FindActiveMembership returns the user's oldest membership.
func (r *Repository) FindActiveMembership(ctx context.Context, userID uuid.UUID) (*models.OrgMember, error) {
	var member models.OrgMember
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// ListOrgIDs returns every org id in creation order.
func (r *Repository) ListOrgIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Org{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *Repository) FindOrg(ctx context.Context, id uuid.UUID) (*models.Org, error) {
	var org models.Org
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// FindSettings returns the org settings, or the defaults when no row exists.
func (r *Repository) FindSettings(ctx context.Context, orgID uuid.UUID) (*models.Settings, error) {
	var settings models.Settings
	err := r.db.WithContext(ctx).Where("org_id = ?", orgID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := models.NewDefaultSettings(orgID)
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSettings upserts the settings row.
func (r *Repository) SaveSettings(ctx context.Context, settings *models.Settings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}
