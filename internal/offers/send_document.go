package offers

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/pkg/amount"
	"github.com/iliria/erp-backend/pkg/enums"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
)

// SendOfferInput is the body of POST /api/send-offer: an offer assembled by
// the client together with the totals it displayed.
type SendOfferInput struct {
	Offer   SendOfferHeader `json:"offer"`
	Lines   []SendOfferLine `json:"lines" validate:"dive"`
	Totals  SendOfferTotals `json:"totals"`
	LogoURL *string         `json:"logoUrl" validate:"omitempty,url"`
	Locale  enums.Locale    `json:"locale"`
	To      *string         `json:"to" validate:"omitempty,email"`
}

type SendOfferHeader struct {
	Code            string       `json:"code" validate:"required,max=40"`
	CustomerName    *string      `json:"customer_name" validate:"omitempty,max=200"`
	CustomerEmail   *string      `json:"customer_email" validate:"omitempty,email"`
	CreatedAt       *time.Time   `json:"created_at"`
	VATPercent      amount.Input `json:"vat_percent"`
	DiscountPercent amount.Input `json:"discount_percent"`
	Notes           *string      `json:"notes" validate:"omitempty,max=4000"`
}

type SendOfferLine struct {
	Position    int          `json:"position"`
	ProductCode *string      `json:"product_code"`
	Name        string       `json:"name" validate:"max=200"`
	Qty         amount.Input `json:"qty"`
	UnitPrice   amount.Input `json:"unit_price"`
	Total       amount.Input `json:"total"`
}

// SendOfferTotals uses the field names the web client sends.
type SendOfferTotals struct {
	Sub       amount.Input `json:"sub"`
	Discount  amount.Input `json:"discount"`
	AfterDisc amount.Input `json:"afterDisc"`
	VATAmt    amount.Input `json:"vatAmt"`
	Grand     amount.Input `json:"grand"`
}

func (t SendOfferTotals) provided() bool {
	return t.Sub.IsSet() || t.Discount.IsSet() || t.AfterDisc.IsSet() || t.VATAmt.IsSet() || t.Grand.IsSet()
}

func (t SendOfferTotals) totals() Totals {
	return Totals{
		Subtotal:       t.Sub.Decimal(),
		DiscountAmount: t.Discount.Decimal(),
		AfterDiscount:  t.AfterDisc.Decimal(),
		VATAmount:      t.VATAmt.Decimal(),
		GrandTotal:     t.Grand.Decimal(),
	}
}

// SendDocument re-derives the client's totals from its lines, refuses the
// request when they disagree, and emails the rendered document.
func (s *service) SendDocument(ctx context.Context, m orgs.Membership, input SendOfferInput) (out *SendResultDTO, err error) {
	defer func() { s.record("send_document", err) }()

	doc, err := documentFromInput(input)
	if err != nil {
		return nil, err
	}
	to := strings.TrimSpace(deref(input.To))
	if to == "" {
		to = strings.TrimSpace(deref(input.Offer.CustomerEmail))
	}
	if to == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}

	settings, err := s.loadSettings(ctx, m.OrgID)
	if err != nil {
		return nil, err
	}
	doc.CompanyName = settings.CompanyName
	if doc.LogoURL == nil {
		doc.LogoURL = settings.LogoURL
	}
	locale := resolveLocale(input.Locale, settings)
	html, err := renderBytes(doc, RenderOptions{Locale: locale})
	if err != nil {
		return nil, err
	}
	if err := s.mail.Send(ctx, offerMessage(to, input.Offer.CustomerName, locale, doc, html)); err != nil {
		return nil, err
	}
	return &SendResultDTO{Code: doc.Code, To: to}, nil
}

func documentFromInput(input SendOfferInput) (Document, error) {
	if len(input.Lines) == 0 {
		return Document{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	vat := input.Offer.VATPercent.Or(decimal.Zero)
	discount := input.Offer.DiscountPercent.Or(decimal.Zero)
	if err := validatePercents(discount, vat); err != nil {
		return Document{}, err
	}

	doc := Document{
		Code:            strings.TrimSpace(input.Offer.Code),
		CustomerName:    trimmed(input.Offer.CustomerName),
		CustomerEmail:   trimmed(input.Offer.CustomerEmail),
		LogoURL:         trimmed(input.LogoURL),
		DiscountPercent: discount,
		VATPercent:      vat,
		Notes:           trimmed(input.Offer.Notes),
	}
	if input.Offer.CreatedAt != nil {
		doc.Date = *input.Offer.CreatedAt
	}

	lines := make([]Line, 0, len(input.Lines))
	for i, l := range input.Lines {
		line := Line{Qty: l.Qty.Decimal(), UnitPrice: l.UnitPrice.Decimal()}
		if strings.TrimSpace(l.Name) == "" || !line.Qty.IsPositive() {
			return Document{}, pkgerrors.New(pkgerrors.CodeValidation, "every line needs a name and a quantity above zero").
				WithDetails(map[string]any{"position": i + 1})
		}
		if line.UnitPrice.IsNegative() {
			return Document{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative").
				WithDetails(map[string]any{"position": i + 1})
		}
		if l.Total.IsSet() && !l.Total.Decimal().Round(2).Equal(line.Total().Round(2)) {
			return Document{}, pkgerrors.New(pkgerrors.CodeValidation, "line total does not match qty x unit price").
				WithDetails(map[string]any{"position": i + 1, "expected": line.Total().StringFixed(2)})
		}
		position := l.Position
		if position <= 0 {
			position = i + 1
		}
		lines = append(lines, line)
		doc.Lines = append(doc.Lines, DocumentLine{
			Position:    position,
			ProductCode: trimmed(l.ProductCode),
			Name:        strings.TrimSpace(l.Name),
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			Total:       line.Total(),
		})
	}

	doc.Totals = ComputeTotals(lines, discount, vat)
	if input.Totals.provided() && !doc.Totals.Equal(input.Totals.totals()) {
		r := doc.Totals.Rounded()
		return Document{}, pkgerrors.New(pkgerrors.CodeValidation, "totals do not match the lines").
			WithDetails(map[string]any{
				"sub":       r.Subtotal.StringFixed(2),
				"discount":  r.DiscountAmount.StringFixed(2),
				"afterDisc": r.AfterDiscount.StringFixed(2),
				"vatAmt":    r.VATAmount.StringFixed(2),
				"grand":     r.GrandTotal.StringFixed(2),
			})
	}
	return doc, nil
}
