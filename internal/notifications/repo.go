package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/pagination"
)

const uniqueOrgEvent = "ux_notifications_org_event"

type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

type listQuery struct {
	OrgID      uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

// Create inserts n. A second notification for the same org and event is
// ignored and reported as created=false.
func (r *Repository) Create(ctx context.Context, n *models.Notification) (bool, error) {
	err := r.db.WithContext(ctx).Create(n).Error
	if db.IsUniqueViolation(err, uniqueOrgEvent) {
		return false, nil
	}
	return err == nil, err
}

// List returns one page newest first plus the token of the next page.
func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Notification, string, error) {
	query := r.db.WithContext(ctx).Where("org_id = ?", q.OrgID)
	if q.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	var rows []models.Notification
	if err := query.Scopes(pagination.Keyset(q.Cursor, q.Limit)).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Trim(rows, q.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *Repository) CountUnread(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("org_id = ? AND read_at IS NULL", orgID).
		Count(&n).Error
	return n, err
}

// MarkRead stamps read_at once. found is false when the row is not in the org.
func (r *Repository) MarkRead(ctx context.Context, orgID, id uuid.UUID, now time.Time) (found bool, err error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND org_id = ? AND read_at IS NULL", id, orgID).
		UpdateColumn("read_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	err = r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND org_id = ?", id, orgID).
		Count(&n).Error
	return n > 0, err
}

func (r *Repository) MarkAllRead(ctx context.Context, orgID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("org_id = ? AND read_at IS NULL", orgID).
		UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}
