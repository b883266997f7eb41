package models

import "github.com/google/uuid"

// OrgSequence is a per-org monotonically increasing counter.
type OrgSequence struct {
	OrgID     uuid.UUID `gorm:"column:org_id;type:uuid;primaryKey"`
	Scope     string    `gorm:"column:scope;primaryKey"`
	LastValue int64     `gorm:"column:last_value;not null"`
}

func (OrgSequence) TableName() string { return "org_sequences" }
