package orgs

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliria/erp-backend/pkg/amount"
	"github.com/iliria/erp-backend/pkg/codes"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	"github.com/iliria/erp-backend/pkg/outbox"
)

// Membership is the resolved org context of an authenticated user.
type Membership struct {
	OrgID  uuid.UUID
	UserID uuid.UUID
	Role   enums.MemberRole
}

// Actor identifies the member on emitted domain events.
func (m Membership) Actor() *outbox.Actor {
	orgID := m.OrgID
	return &outbox.Actor{UserID: m.UserID, OrgID: &orgID, Role: string(m.Role)}
}

type OrgDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type MembershipDTO struct {
	UserID    uuid.UUID        `json:"user_id"`
	Role      enums.MemberRole `json:"role"`
	CreatedAt time.Time        `json:"created_at"`
}

type SettingsDTO struct {
	Currency          string          `json:"currency"`
	Locale            enums.Locale    `json:"locale"`
	PrefixEnabled     bool            `json:"prefix_enabled"`
	PrefixText        string          `json:"prefix_text"`
	PrefixCompact     bool            `json:"prefix_compact"`
	CategoryCodeWidth int             `json:"category_code_width"`
	ProductCodeWidth  int             `json:"product_code_width"`
	OfferCodeWidth    int             `json:"offer_code_width"`
	DefaultVATPercent decimal.Decimal `json:"default_vat_percent"`
	CompanyName       *string         `json:"company_name,omitempty"`
	LogoURL           *string         `json:"logo_url,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CurrentOrgDTO is the payload of GET /org and POST /orgs.
type CurrentOrgDTO struct {
	Org        OrgDTO        `json:"org"`
	Membership MembershipDTO `json:"membership"`
	Settings   SettingsDTO   `json:"settings"`
}

// BootstrapInput creates the first org of a user.
type BootstrapInput struct {
	Name string `json:"name" validate:"required,max=120"`
}

// UpdateSettingsInput is a partial update; nil fields are left unchanged.
type UpdateSettingsInput struct {
	Currency          *string      `json:"currency" validate:"omitempty,len=3"`
	Locale            *string      `json:"locale" validate:"omitempty,oneof=el en"`
	PrefixEnabled     *bool        `json:"prefix_enabled"`
	PrefixText        *string      `json:"prefix_text" validate:"omitempty,max=12"`
	PrefixCompact     *bool        `json:"prefix_compact"`
	CategoryCodeWidth *int         `json:"category_code_width" validate:"omitempty,min=2,max=6"`
	ProductCodeWidth  *int         `json:"product_code_width" validate:"omitempty,min=2,max=6"`
	OfferCodeWidth    *int         `json:"offer_code_width" validate:"omitempty,min=2,max=6"`
	DefaultVATPercent amount.Input `json:"default_vat_percent"`
	CompanyName       *string      `json:"company_name" validate:"omitempty,max=200"`
	LogoURL           *string      `json:"logo_url" validate:"omitempty,url"`
}

var hundred = decimal.NewFromInt(100)

func orgToDTO(m *models.Org) OrgDTO {
	return OrgDTO{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}
}

func memberToDTO(m *models.OrgMember) MembershipDTO {
	return MembershipDTO{UserID: m.UserID, Role: m.Role, CreatedAt: m.CreatedAt}
}

// SettingsToDTO maps the persisted settings into their API shape.
func SettingsToDTO(m *models.Settings) SettingsDTO {
	return SettingsDTO{
		Currency:          m.Currency,
		Locale:            enums.ParseLocale(m.Locale),
		PrefixEnabled:     m.PrefixEnabled,
		PrefixText:        m.PrefixText,
		PrefixCompact:     m.PrefixCompact,
		CategoryCodeWidth: codes.ClampWidth(m.CategoryCodeWidth),
		ProductCodeWidth:  codes.ClampWidth(m.ProductCodeWidth),
		OfferCodeWidth:    codes.ClampWidth(m.OfferCodeWidth),
		DefaultVATPercent: m.DefaultVATPercent,
		CompanyName:       m.CompanyName,
		LogoURL:           m.LogoURL,
		UpdatedAt:         m.UpdatedAt,
	}
}

// Prefix returns the code prefix configured for an org.
func Prefix(m *models.Settings) codes.Prefix {
	if m == nil {
		return codes.Prefix{}
	}
	return codes.Prefix{Enabled: m.PrefixEnabled, Text: m.PrefixText, Compact: m.PrefixCompact}
}

func (in UpdateSettingsInput) apply(m *models.Settings) {
	if in.Currency != nil {
		m.Currency = *in.Currency
	}
	if in.Locale != nil {
		m.Locale = string(enums.ParseLocale(*in.Locale))
	}
	if in.PrefixEnabled != nil {
		m.PrefixEnabled = *in.PrefixEnabled
	}
	if in.PrefixText != nil {
		m.PrefixText = *in.PrefixText
	}
	if in.PrefixCompact != nil {
		m.PrefixCompact = *in.PrefixCompact
	}
	if in.CategoryCodeWidth != nil {
		m.CategoryCodeWidth = codes.ClampWidth(*in.CategoryCodeWidth)
	}
	if in.ProductCodeWidth != nil {
		m.ProductCodeWidth = codes.ClampWidth(*in.ProductCodeWidth)
	}
	if in.OfferCodeWidth != nil {
		m.OfferCodeWidth = codes.ClampWidth(*in.OfferCodeWidth)
	}
	if in.DefaultVATPercent.IsSet() {
		m.DefaultVATPercent = in.DefaultVATPercent.Decimal()
	}
	if in.CompanyName != nil {
		m.CompanyName = in.CompanyName
	}
	if in.LogoURL != nil {
		m.LogoURL = in.LogoURL
	}
}
