package offers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliria/erp-backend/pkg/amount"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
)

type ItemInput struct {
	ProductCode *string      `json:"product_code" validate:"omitempty,max=40"`
	Name        string       `json:"name" validate:"max=200"`
	Description *string      `json:"description" validate:"omitempty,max=2000"`
	ImageURL    *string      `json:"image_url" validate:"omitempty,url"`
	Qty         amount.Input `json:"qty"`
	UnitPrice   amount.Input `json:"unit_price"`
}

// CreateInput creates an offer. VAT defaults to the org setting and discount
// to zero.
type CreateInput struct {
	CustomerName    *string      `json:"customer_name" validate:"omitempty,max=200"`
	CustomerEmail   *string      `json:"customer_email" validate:"omitempty,email"`
	VATPercent      amount.Input `json:"vat_percent"`
	DiscountPercent amount.Input `json:"discount_percent"`
	Notes           *string      `json:"notes" validate:"omitempty,max=4000"`
	Items           []ItemInput  `json:"items" validate:"dive"`
}

type SendInput struct {
	To     *string      `json:"to" validate:"omitempty,email"`
	Locale enums.Locale `json:"locale"`
}

type ItemDTO struct {
	Position    int             `json:"position"`
	ProductCode *string         `json:"product_code,omitempty"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type OfferDTO struct {
	ID              uuid.UUID         `json:"id"`
	Number          int64             `json:"number"`
	Code            string            `json:"code"`
	CustomerName    *string           `json:"customer_name,omitempty"`
	CustomerEmail   *string           `json:"customer_email,omitempty"`
	VATPercent      decimal.Decimal   `json:"vat_percent"`
	DiscountPercent decimal.Decimal   `json:"discount_percent"`
	Notes           *string           `json:"notes,omitempty"`
	Status          enums.OfferStatus `json:"status"`
	Totals          Totals            `json:"totals"`
	Items           []ItemDTO         `json:"items,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	SentAt          *time.Time        `json:"sent_at,omitempty"`
	ConvertedAt     *time.Time        `json:"converted_at,omitempty"`
}

type NextNumberDTO struct {
	NextNumber int64  `json:"next_number"`
	NextCode   string `json:"next_code"`
}

type SendResultDTO struct {
	OfferID uuid.UUID         `json:"offer_id,omitempty"`
	Code    string            `json:"code"`
	To      string            `json:"to"`
	Status  enums.OfferStatus `json:"status,omitempty"`
}

type ConvertResultDTO struct {
	Offer  OfferDTO    `json:"offer"`
	TxnIDs []uuid.UUID `json:"txn_ids"`
}

// toDTO maps an offer. Totals are recomputed from the persisted line totals
// when items are loaded, otherwise the stored snapshot is used.
func toDTO(m *models.Offer) OfferDTO {
	out := OfferDTO{
		ID:              m.ID,
		Number:          m.Number,
		Code:            m.Code,
		CustomerName:    m.CustomerName,
		CustomerEmail:   m.CustomerEmail,
		VATPercent:      m.VATPercent,
		DiscountPercent: m.DiscountPercent,
		Notes:           m.Notes,
		Status:          m.Status,
		CreatedAt:       m.CreatedAt,
		SentAt:          m.SentAt,
		ConvertedAt:     m.ConvertedAt,
		Totals: Totals{
			Subtotal:       m.Subtotal,
			DiscountAmount: m.DiscountAmount,
			AfterDiscount:  m.AfterDiscount,
			VATAmount:      m.VATAmount,
			GrandTotal:     m.GrandTotal,
		},
	}
	if len(m.Items) == 0 {
		return out
	}
	lineTotals := make([]decimal.Decimal, 0, len(m.Items))
	for _, it := range m.Items {
		out.Items = append(out.Items, ItemDTO{
			Position:    it.Position,
			ProductCode: it.ProductCode,
			Name:        it.Name,
			Description: it.Description,
			ImageURL:    it.ImageURL,
			Qty:         it.Qty,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
		})
		lineTotals = append(lineTotals, it.Total)
	}
	out.Totals = ComputeFromLineTotals(lineTotals, m.DiscountPercent, m.VATPercent)
	return out
}

func documentFor(m *models.Offer, settings *models.Settings) Document {
	doc := Document{
		Code:            m.Code,
		Date:            m.CreatedAt,
		CustomerName:    m.CustomerName,
		CustomerEmail:   m.CustomerEmail,
		DiscountPercent: m.DiscountPercent,
		VATPercent:      m.VATPercent,
		Notes:           m.Notes,
		Totals:          toDTO(m).Totals,
	}
	if settings != nil {
		doc.CompanyName = settings.CompanyName
		doc.LogoURL = settings.LogoURL
	}
	for _, it := range m.Items {
		doc.Lines = append(doc.Lines, DocumentLine{
			Position:    it.Position,
			ProductCode: it.ProductCode,
			Name:        it.Name,
			Description: it.Description,
			ImageURL:    it.ImageURL,
			Qty:         it.Qty,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
		})
	}
	return doc
}
