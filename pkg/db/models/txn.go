package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/enums"
)

// Txn is the immutable audit record of one stock mutation.
type Txn struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrgID         uuid.UUID        `gorm:"column:org_id;type:uuid;not null"`
	ProductID     uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	Type          enums.TxnType    `gorm:"column:type;not null"`
	ProductCode   string           `gorm:"column:product_code;not null"`
	Qty           decimal.Decimal  `gorm:"column:qty;type:numeric(14,4);not null"`
	UnitCost      *decimal.Decimal `gorm:"column:unit_cost;type:numeric(14,4)"`
	UnitPrice     *decimal.Decimal `gorm:"column:unit_price;type:numeric(14,4)"`
	StockBefore   decimal.Decimal  `gorm:"column:stock_before;type:numeric(14,4);not null"`
	StockAfter    decimal.Decimal  `gorm:"column:stock_after;type:numeric(14,4);not null"`
	AvgCostBefore decimal.Decimal  `gorm:"column:avg_cost_before;type:numeric(18,8);not null"`
	AvgCostAfter  decimal.Decimal  `gorm:"column:avg_cost_after;type:numeric(18,8);not null"`
	Note          *string          `gorm:"column:note"`
	OfferID       *uuid.UUID       `gorm:"column:offer_id;type:uuid"`
	CreatedBy     uuid.UUID        `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (Txn) TableName() string { return "txns" }

func (t *Txn) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
