package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultCurrency          = "EUR"
	DefaultCategoryCodeWidth = 3
	DefaultProductCodeWidth  = 4
	DefaultOfferCodeWidth    = 4
)

// DefaultVATPercent applies when an offer omits its VAT rate.
var DefaultVATPercent = decimal.NewFromInt(24)

// Settings stores per-org preferences used by code generation and documents.
type Settings struct {
	OrgID             uuid.UUID       `gorm:"column:org_id;type:uuid;primaryKey"`
	Currency          string          `gorm:"column:currency;not null"`
	Locale            string          `gorm:"column:locale;not null"`
	PrefixEnabled     bool            `gorm:"column:prefix_enabled;not null"`
	PrefixText        string          `gorm:"column:prefix_text;not null"`
	PrefixCompact     bool            `gorm:"column:prefix_compact;not null"`
	CategoryCodeWidth int             `gorm:"column:category_code_width;not null"`
	ProductCodeWidth  int             `gorm:"column:product_code_width;not null"`
	OfferCodeWidth    int             `gorm:"column:offer_code_width;not null"`
	DefaultVATPercent decimal.Decimal `gorm:"column:default_vat_percent;type:numeric(6,2);not null"`
	CompanyName       *string         `gorm:"column:company_name"`
	LogoURL           *string         `gorm:"column:logo_url"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Settings) TableName() string { return "settings" }

// NewDefaultSettings returns the settings row created with a new org.
func NewDefaultSettings(orgID uuid.UUID) Settings {
	return Settings{
		OrgID:             orgID,
		Currency:          DefaultCurrency,
		Locale:            "el",
		CategoryCodeWidth: DefaultCategoryCodeWidth,
		ProductCodeWidth:  DefaultProductCodeWidth,
		OfferCodeWidth:    DefaultOfferCodeWidth,
		DefaultVATPercent: DefaultVATPercent,
	}
}
