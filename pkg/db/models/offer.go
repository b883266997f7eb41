package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/enums"
)

// Offer is a price quotation. Totals are snapshotted at creation time.
type Offer struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrgID           uuid.UUID         `gorm:"column:org_id;type:uuid;not null"`
	Number          int64             `gorm:"column:number;not null"`
	Code            string            `gorm:"column:code;not null"`
	CustomerName    *string           `gorm:"column:customer_name"`
	CustomerEmail   *string           `gorm:"column:customer_email"`
	VATPercent      decimal.Decimal   `gorm:"column:vat_percent;type:numeric(6,2);not null"`
	DiscountPercent decimal.Decimal   `gorm:"column:discount_percent;type:numeric(6,2);not null"`
	Notes           *string           `gorm:"column:notes"`
	Status          enums.OfferStatus `gorm:"column:status;not null"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(14,4);not null"`
	DiscountAmount  decimal.Decimal   `gorm:"column:discount_amount;type:numeric(14,4);not null"`
	AfterDiscount   decimal.Decimal   `gorm:"column:after_discount;type:numeric(14,4);not null"`
	VATAmount       decimal.Decimal   `gorm:"column:vat_amount;type:numeric(14,4);not null"`
	GrandTotal      decimal.Decimal   `gorm:"column:grand_total;type:numeric(14,4);not null"`
	CreatedBy       uuid.UUID         `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	SentAt          *time.Time        `gorm:"column:sent_at"`
	ConvertedAt     *time.Time        `gorm:"column:converted_at"`
	Items           []OfferItem       `gorm:"foreignKey:OfferID;constraint:OnDelete:CASCADE"`
}

func (Offer) TableName() string { return "offers" }

func (o *Offer) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	if o.Status == "" {
		o.Status = enums.OfferStatusDraft
	}
	return nil
}

// OfferItem is one quoted line. Total is qty x unit_price at insert time.
type OfferItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OfferID     uuid.UUID       `gorm:"column:offer_id;type:uuid;not null"`
	Position    int             `gorm:"column:position;not null"`
	ProductCode *string         `gorm:"column:product_code"`
	Name        string          `gorm:"column:name;not null"`
	Description *string         `gorm:"column:description"`
	ImageURL    *string         `gorm:"column:image_url"`
	Qty         decimal.Decimal `gorm:"column:qty;type:numeric(14,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(14,4);not null"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(14,4);not null"`
}

func (OfferItem) TableName() string { return "offer_items" }

func (i *OfferItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
