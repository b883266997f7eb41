package offers

import (
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/iliria/erp-backend/pkg/enums"
)

// Document is everything a printed offer shows. Optional fields are nil or
// empty and drop their block from the output.
type Document struct {
	Code            string
	Date            time.Time
	CustomerName    *string
	CustomerEmail   *string
	CompanyName     *string
	LogoURL         *string
	DiscountPercent decimal.Decimal
	VATPercent      decimal.Decimal
	Lines           []DocumentLine
	Totals          Totals
	Notes           *string
}

type DocumentLine struct {
	Position    int
	ProductCode *string
	Name        string
	Description *string
	ImageURL    *string
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

type RenderOptions struct {
	Locale enums.Locale
	// AutoPrint opens the browser print dialog on load.
	AutoPrint bool
}

type labels struct {
	Title, Date, Customer, Email                    string
	Position, Code, Description, Qty, Price, Total  string
	Subtotal, Discount, AfterDiscount, VAT, Payable string
	Notes                                           string
	DateLayout                                      string
}

var catalog = map[enums.Locale]labels{
	enums.LocaleGreek: {
		Title: "Προσφορά", Date: "Ημ/νία", Customer: "Πελάτης", Email: "Email",
		Position: "#", Code: "Κωδικός", Description: "Περιγραφή", Qty: "Ποσ.", Price: "Τιμή", Total: "Σύνολο",
		Subtotal: "Υποσύνολο", Discount: "Έκπτωση", AfterDiscount: "Μερικό", VAT: "ΦΠΑ", Payable: "Πληρωτέο",
		Notes:      "Σημειώσεις",
		DateLayout: "2/1/2006",
	},
	enums.LocaleEnglish: {
		Title: "Offer", Date: "Date", Customer: "Customer", Email: "Email",
		Position: "#", Code: "Code", Description: "Description", Qty: "Qty", Price: "Price", Total: "Total",
		Subtotal: "Subtotal", Discount: "Discount", AfterDiscount: "After discount", VAT: "VAT", Payable: "Total payable",
		Notes:      "Notes",
		DateLayout: "1/2/2006",
	},
}

var tags = map[enums.Locale]language.Tag{
	enums.LocaleGreek:   language.Greek,
	enums.LocaleEnglish: language.English,
}

// labelsFor returns the catalog entry for locale, defaulting to Greek.
func labelsFor(locale enums.Locale) (labels, language.Tag) {
	if !locale.IsValid() {
		locale = enums.DefaultLocale
	}
	return catalog[locale], tags[locale]
}

// Subject is the localized email subject for an offer.
func Subject(locale enums.Locale, code string) string {
	l, _ := labelsFor(locale)
	return l.Title + " " + code
}

// Summary is the plain-text body sent next to the HTML document.
func Summary(locale enums.Locale, doc Document) string {
	l, _ := labelsFor(locale)
	return l.Title + " " + doc.Code + "\n" + l.Payable + ": " + FormatMoney(locale, doc.Totals.GrandTotal)
}

type viewLine struct {
	Position    int
	Code        string
	Name        string
	Description string
	ImageURL    string
	Qty         string
	UnitPrice   string
	Total       string
}

type view struct {
	Lang            string
	L               labels
	Code            string
	Date            string
	Customer        string
	Email           string
	Company         string
	LogoURL         string
	HasImages       bool
	Lines           []viewLine
	Subtotal        string
	DiscountPercent string
	Discount        string
	AfterDiscount   string
	VATPercent      string
	VAT             string
	GrandTotal      string
	Notes           string
	AutoPrint       bool
}

// Render writes doc as a standalone printable HTML page.
func Render(w io.Writer, doc Document, opts RenderOptions) error {
	l, tag := labelsFor(opts.Locale)
	p := message.NewPrinter(tag)

	v := view{
		Lang:            tag.String(),
		L:               l,
		Code:            doc.Code,
		Customer:        "-",
		Email:           deref(doc.CustomerEmail),
		Company:         deref(doc.CompanyName),
		LogoURL:         deref(doc.LogoURL),
		Subtotal:        money(p, doc.Totals.Subtotal),
		DiscountPercent: plain(p, doc.DiscountPercent),
		Discount:        money(p, doc.Totals.DiscountAmount),
		AfterDiscount:   money(p, doc.Totals.AfterDiscount),
		VATPercent:      plain(p, doc.VATPercent),
		VAT:             money(p, doc.Totals.VATAmount),
		GrandTotal:      money(p, doc.Totals.GrandTotal),
		Notes:           deref(doc.Notes),
		AutoPrint:       opts.AutoPrint,
	}
	if !doc.Date.IsZero() {
		v.Date = doc.Date.Format(l.DateLayout)
	}
	if name := deref(doc.CustomerName); name != "" {
		v.Customer = name
	}
	for _, line := range doc.Lines {
		vl := viewLine{
			Position:    line.Position,
			Code:        deref(line.ProductCode),
			Name:        line.Name,
			Description: deref(line.Description),
			ImageURL:    deref(line.ImageURL),
			Qty:         plain(p, line.Qty),
			UnitPrice:   money(p, line.UnitPrice),
			Total:       money(p, line.Total),
		}
		if vl.ImageURL != "" {
			v.HasImages = true
		}
		v.Lines = append(v.Lines, vl)
	}
	return documentTemplate.Execute(w, v)
}

// FormatMoney renders an amount with exactly two fraction digits.
func FormatMoney(locale enums.Locale, d decimal.Decimal) string {
	_, tag := labelsFor(locale)
	return money(message.NewPrinter(tag), d)
}

func money(p *message.Printer, d decimal.Decimal) string {
	return p.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
}

func plain(p *message.Printer, d decimal.Decimal) string {
	return p.Sprint(number.Decimal(d.Round(3).InexactFloat64(), number.MaxFractionDigits(3)))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var documentTemplate = template.Must(template.New("offer").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}"><head>
<meta charset="utf-8"/>
<title>{{.L.Title}} {{.Code}}</title>
<style>
  @page { size: A4; margin: 14mm; }
  body { font-family: system-ui, -apple-system, Segoe UI, Roboto, Arial; color:#111; }
  h1 { font-size: 18px; margin: 0 0 6px; }
  .meta { font-size: 12px; color:#555; margin-bottom: 12px; }
  table { width:100%; border-collapse: collapse; font-size: 12px; }
  th, td { padding: 8px; border-bottom: 1px solid #eee; }
  th { text-align:left; color:#555; }
  .right { text-align:right; white-space:nowrap; }
  .totals td { border:none; padding:4px 0; }
  .logo { height: 42px; }
  .thumb { height: 36px; }
  .desc { color:#666; font-size: 11px; }
</style>
</head><body>
  <div style="display:flex; align-items:center; gap:12px; margin-bottom:12px;">
    {{if .LogoURL}}<img class="logo" src="{{.LogoURL}}" alt=""/>{{end}}
    <div>
      {{if .Company}}<div class="meta">{{.Company}}</div>{{end}}
      <h1>{{.L.Title}} {{.Code}}</h1>
      <div class="meta">{{if .Date}}{{.L.Date}}: {{.Date}} · {{end}}{{.L.Customer}}: {{.Customer}}{{if .Email}} · {{.L.Email}}: {{.Email}}{{end}}</div>
    </div>
  </div>

  <table>
    <thead>
      <tr>
        <th>{{.L.Position}}</th>
        {{if .HasImages}}<th></th>{{end}}
        <th>{{.L.Code}}</th>
        <th>{{.L.Description}}</th>
        <th class="right">{{.L.Qty}}</th>
        <th class="right">{{.L.Price}}</th>
        <th class="right">{{.L.Total}}</th>
      </tr>
    </thead>
    <tbody>
    {{- $images := .HasImages}}
    {{- range .Lines}}
      <tr>
        <td>{{.Position}}</td>
        {{if $images}}<td>{{if .ImageURL}}<img class="thumb" src="{{.ImageURL}}" alt=""/>{{end}}</td>{{end}}
        <td>{{.Code}}</td>
        <td>{{.Name}}{{if .Description}}<div class="desc">{{.Description}}</div>{{end}}</td>
        <td class="right">{{.Qty}}</td>
        <td class="right">{{.UnitPrice}}</td>
        <td class="right">{{.Total}}</td>
      </tr>
    {{- end}}
    </tbody>
  </table>

  <div style="margin-top:10px; display:flex; justify-content:flex-end;">
    <table style="width: 320px;">
      <tr class="totals"><td>{{.L.Subtotal}}</td><td class="right">{{.Subtotal}}</td></tr>
      <tr class="totals"><td>{{.L.Discount}} ({{.DiscountPercent}}%)</td><td class="right">-{{.Discount}}</td></tr>
      <tr class="totals"><td>{{.L.AfterDiscount}}</td><td class="right">{{.AfterDiscount}}</td></tr>
      <tr class="totals"><td>{{.L.VAT}} ({{.VATPercent}}%)</td><td class="right">{{.VAT}}</td></tr>
      <tr class="totals"><td><b>{{.L.Payable}}</b></td><td class="right"><b>{{.GrandTotal}}</b></td></tr>
    </table>
  </div>
  {{if .Notes}}
  <div style="margin-top:14px; font-size:12px; color:#444;"><b>{{.L.Notes}}:</b> {{.Notes}}</div>
  {{- end}}
  {{- if .AutoPrint}}
  <script>window.print();</script>
  {{- end}}
</body></html>
`))
