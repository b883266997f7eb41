package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry with its running stock and weighted average cost.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrgID        uuid.UUID       `gorm:"column:org_id;type:uuid;not null"`
	Code         string          `gorm:"column:code;not null"`
	CategoryCode *string         `gorm:"column:category_code"`
	Name         string          `gorm:"column:name;not null"`
	Description  *string         `gorm:"column:description"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(14,4);not null"`
	Stock        decimal.Decimal `gorm:"column:stock;type:numeric(14,4);not null"`
	LowStock     decimal.Decimal `gorm:"column:low_stock;type:numeric(14,4);not null"`
	AvgCost      decimal.Decimal `gorm:"column:avg_cost;type:numeric(18,8);not null"`
	ImageURL     *string         `gorm:"column:image_url"`
	Version      int             `gorm:"column:version;not null;default:1"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	if p.Version == 0 {
		p.Version = 1
	}
	return nil
}

// IsLowStock reports whether stock has fallen to or below the reorder threshold.
func (p Product) IsLowStock() bool {
	return p.Stock.LessThanOrEqual(p.LowStock)
}
