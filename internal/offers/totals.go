package offers

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Line is the arithmetic view of an offer line.
type Line struct {
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
}

// Total is qty x unit price.
func (l Line) Total() decimal.Decimal {
	return l.Qty.Mul(l.UnitPrice)
}

// Column scales of offers and offer_items. Inputs are rounded to them
// before pricing so a reprint from stored rows reproduces the totals.
const (
	percentScale = 2
	amountScale  = 4
)

// Stored is the line total as the total column keeps it.
func (l Line) Stored() decimal.Decimal {
	return l.Total().Round(amountScale)
}

// Totals is the computed summary of an offer. Values are exact; rounding
// happens only when they are rendered.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	AfterDiscount  decimal.Decimal `json:"after_discount"`
	VATAmount      decimal.Decimal `json:"vat_amount"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
}

// ComputeTotals prices new lines.
func ComputeTotals(lines []Line, discountPercent, vatPercent decimal.Decimal) Totals {
	lineTotals := make([]decimal.Decimal, len(lines))
	for i, l := range lines {
		lineTotals[i] = l.Total()
	}
	return ComputeFromLineTotals(lineTotals, discountPercent, vatPercent)
}

// ComputeFromLineTotals recomputes from persisted line totals. ComputeTotals
// delegates here so both paths yield identical results.
func ComputeFromLineTotals(lineTotals []decimal.Decimal, discountPercent, vatPercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, t := range lineTotals {
		subtotal = subtotal.Add(t)
	}
	discount := subtotal.Mul(discountPercent).Div(hundred)
	after := subtotal.Sub(discount)
	vat := after.Mul(vatPercent).Div(hundred)
	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		AfterDiscount:  after,
		VATAmount:      vat,
		GrandTotal:     after.Add(vat),
	}
}

// Equal compares totals at cent precision, the precision clients display.
func (t Totals) Equal(other Totals) bool {
	pairs := [][2]decimal.Decimal{
		{t.Subtotal, other.Subtotal},
		{t.DiscountAmount, other.DiscountAmount},
		{t.AfterDiscount, other.AfterDiscount},
		{t.VATAmount, other.VATAmount},
		{t.GrandTotal, other.GrandTotal},
	}
	for _, p := range pairs {
		if !p[0].Round(2).Equal(p[1].Round(2)) {
			return false
		}
	}
	return true
}

// Rounded returns the totals rounded half away from zero to cents.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:       t.Subtotal.Round(2),
		DiscountAmount: t.DiscountAmount.Round(2),
		AfterDiscount:  t.AfterDiscount.Round(2),
		VATAmount:      t.VATAmount.Round(2),
		GrandTotal:     t.GrandTotal.Round(2),
	}
}
