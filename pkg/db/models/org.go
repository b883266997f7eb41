package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/enums"
)

// Org is the tenant boundary. Every business row carries an org_id.
type Org struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Org) TableName() string { return "orgs" }

func (o *Org) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrgMember links a user with an org. The oldest row is the user's active org.
type OrgMember struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrgID     uuid.UUID        `gorm:"column:org_id;type:uuid;not null"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null"`
	Role      enums.MemberRole `gorm:"column:role;not null"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (OrgMember) TableName() string { return "org_members" }

func (m *OrgMember) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
