package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/enums"
)

// Notification is an in-app message for every member of an org. EventID ties
// it to the domain event that produced it.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrgID     uuid.UUID              `gorm:"column:org_id;type:uuid;not null" json:"-"`
	EventID   uuid.UUID              `gorm:"column:event_id;type:uuid;not null" json:"-"`
	Kind      enums.NotificationKind `gorm:"column:kind;not null" json:"kind"`
	Title     string                 `gorm:"column:title;not null" json:"title"`
	Message   string                 `gorm:"column:message;not null" json:"message"`
	Link      *string                `gorm:"column:link" json:"link,omitempty"`
	ReadAt    *time.Time             `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}
