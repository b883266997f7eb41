package offers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/internal/inventory"
	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/internal/products"
	"github.com/iliria/erp-backend/pkg/codes"
	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
	"github.com/iliria/erp-backend/pkg/mailer"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/outbox/payloads"
)

const (
	defaultCodePrefix = "ID"
	defaultListLimit  = 50
)

type settingsReader interface {
	FindSettings(ctx context.Context, orgID uuid.UUID) (*models.Settings, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type offerRecorder interface {
	Offer(action string, err error)
}

// Service manages quotations from numbering to conversion into sales.
type Service interface {
	NextNumber(ctx context.Context, orgID uuid.UUID) (*NextNumberDTO, error)
	Create(ctx context.Context, m orgs.Membership, input CreateInput) (*OfferDTO, error)
	List(ctx context.Context, orgID uuid.UUID) ([]OfferDTO, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*OfferDTO, error)
	Print(ctx context.Context, orgID, id uuid.UUID, locale enums.Locale) ([]byte, error)
	Send(ctx context.Context, m orgs.Membership, id uuid.UUID, input SendInput) (*SendResultDTO, error)
	Convert(ctx context.Context, m orgs.Membership, id uuid.UUID) (*ConvertResultDTO, error)
	SendDocument(ctx context.Context, m orgs.Membership, input SendOfferInput) (*SendResultDTO, error)
}

type Options struct {
	ListLimit int
}

type service struct {
	repo      *Repository
	settings  settingsReader
	tx        txRunner
	emitter   outbox.Emitter
	stock     inventory.Applier
	mail      mailer.Sender
	dashboard *products.DashboardCache
	metrics   offerRecorder
	logg      *logger.Logger
	listLimit int
	now       func() time.Time
}

type Deps struct {
	Repo      *Repository
	Settings  settingsReader
	Tx        txRunner
	Emitter   outbox.Emitter
	Stock     inventory.Applier
	Mail      mailer.Sender
	Dashboard *products.DashboardCache
	Metrics   offerRecorder
	Logger    *logger.Logger
}

func NewService(deps Deps, opts Options) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("offer repository required")
	case deps.Settings == nil:
		return nil, fmt.Errorf("settings reader required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Emitter == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Stock == nil:
		return nil, fmt.Errorf("stock applier required")
	case deps.Mail == nil:
		return nil, fmt.Errorf("mail sender required")
	}
	limit := opts.ListLimit
	if limit <= 0 {
		limit = defaultListLimit
	}
	return &service{
		repo:      deps.Repo,
		settings:  deps.Settings,
		tx:        deps.Tx,
		emitter:   deps.Emitter,
		stock:     deps.Stock,
		mail:      deps.Mail,
		dashboard: deps.Dashboard,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		listLimit: limit,
		now:       time.Now,
	}, nil
}

// OfferCode renders an offer number. Without an org prefix the code uses "ID".
func OfferCode(n int64, settings *models.Settings) string {
	p := orgs.Prefix(settings)
	if !p.Enabled || strings.TrimSpace(p.Text) == "" {
		p = codes.Prefix{Enabled: true, Text: defaultCodePrefix}
	}
	width := models.DefaultOfferCodeWidth
	if settings != nil {
		width = settings.OfferCodeWidth
	}
	return codes.Format(int(n), width, p)
}

func (s *service) loadSettings(ctx context.Context, orgID uuid.UUID) (*models.Settings, error) {
	settings, err := s.settings.FindSettings(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	return settings, nil
}

// NextNumber previews the next offer number and code without consuming it.
func (s *service) NextNumber(ctx context.Context, orgID uuid.UUID) (*NextNumberDTO, error) {
	settings, err := s.loadSettings(ctx, orgID)
	if err != nil {
		return nil, err
	}
	n, err := s.repo.PeekNumber(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read offer sequence")
	}
	return &NextNumberDTO{NextNumber: n, NextCode: OfferCode(n, settings)}, nil
}

func (s *service) Create(ctx context.Context, m orgs.Membership, input CreateInput) (out *OfferDTO, err error) {
	defer func() { s.record("create", err) }()

	settings, err := s.loadSettings(ctx, m.OrgID)
	if err != nil {
		return nil, err
	}
	offer, err := buildOffer(m, input, settings.DefaultVATPercent)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		n, err := repo.NextNumber(ctx, m.OrgID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next offer number")
		}
		offer.Number = n
		offer.Code = OfferCode(n, settings)
		if err := repo.Create(ctx, offer); err != nil {
			if db.IsUniqueViolation(err, "ux_offers_org_code") || db.IsUniqueViolation(err, "ux_offers_org_number") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "offer number already taken")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert offer")
		}
		return s.emit(ctx, tx, m, enums.EventOfferCreated, offer, "", nil)
	})
	if err != nil {
		return nil, err
	}
	s.dashboard.Invalidate(ctx, m.OrgID)
	dto := toDTO(offer)
	return &dto, nil
}

// buildOffer validates input and prices it. Lines need a name and qty > 0.
func buildOffer(m orgs.Membership, input CreateInput, defaultVAT decimal.Decimal) (*models.Offer, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	vat := input.VATPercent.Or(defaultVAT).Round(percentScale)
	discount := input.DiscountPercent.Or(decimal.Zero).Round(percentScale)
	if err := validatePercents(discount, vat); err != nil {
		return nil, err
	}

	offer := &models.Offer{
		OrgID:           m.OrgID,
		CustomerName:    trimmed(input.CustomerName),
		CustomerEmail:   trimmed(input.CustomerEmail),
		VATPercent:      vat,
		DiscountPercent: discount,
		Notes:           trimmed(input.Notes),
		Status:          enums.OfferStatusDraft,
		CreatedBy:       m.UserID,
	}
	lineTotals := make([]decimal.Decimal, 0, len(input.Items))
	for i, it := range input.Items {
		name := strings.TrimSpace(it.Name)
		qty := it.Qty.Decimal().Round(amountScale)
		price := it.UnitPrice.Decimal().Round(amountScale)
		if name == "" || !qty.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "every line needs a name and a quantity above zero").
				WithDetails(map[string]any{"position": i + 1})
		}
		if price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative").
				WithDetails(map[string]any{"position": i + 1})
		}
		total := Line{Qty: qty, UnitPrice: price}.Stored()
		lineTotals = append(lineTotals, total)
		offer.Items = append(offer.Items, models.OfferItem{
			Position:    i + 1,
			ProductCode: trimmed(it.ProductCode),
			Name:        name,
			Description: trimmed(it.Description),
			ImageURL:    trimmed(it.ImageURL),
			Qty:         qty,
			UnitPrice:   price,
			Total:       total,
		})
	}

	totals := ComputeFromLineTotals(lineTotals, discount, vat)
	offer.Subtotal = totals.Subtotal
	offer.DiscountAmount = totals.DiscountAmount
	offer.AfterDiscount = totals.AfterDiscount
	offer.VATAmount = totals.VATAmount
	offer.GrandTotal = totals.GrandTotal
	return offer, nil
}

func validatePercents(discount, vat decimal.Decimal) error {
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_percent must be between 0 and 100")
	}
	if vat.IsNegative() || vat.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "vat_percent must be between 0 and 100")
	}
	return nil
}

func (s *service) List(ctx context.Context, orgID uuid.UUID) ([]OfferDTO, error) {
	rows, err := s.repo.ListLatest(ctx, orgID, s.listLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	out := make([]OfferDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, orgID, id uuid.UUID) (*OfferDTO, error) {
	row, err := s.find(ctx, s.repo, orgID, id)
	if err != nil {
		return nil, err
	}
	dto := toDTO(row)
	return &dto, nil
}

func (s *service) find(ctx context.Context, repo *Repository, orgID, id uuid.UUID) (*models.Offer, error) {
	row, err := repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return row, nil
}

func (s *service) Print(ctx context.Context, orgID, id uuid.UUID, locale enums.Locale) ([]byte, error) {
	row, err := s.find(ctx, s.repo, orgID, id)
	if err != nil {
		return nil, err
	}
	settings, err := s.loadSettings(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return renderBytes(documentFor(row, settings), RenderOptions{Locale: resolveLocale(locale, settings), AutoPrint: true})
}

func renderBytes(doc Document, opts RenderOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, doc, opts); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render offer")
	}
	return buf.Bytes(), nil
}

// Send emails the rendered offer and marks a draft as sent.
func (s *service) Send(ctx context.Context, m orgs.Membership, id uuid.UUID, input SendInput) (out *SendResultDTO, err error) {
	defer func() { s.record("send", err) }()

	row, err := s.find(ctx, s.repo, m.OrgID, id)
	if err != nil {
		return nil, err
	}
	to := strings.TrimSpace(deref(input.To))
	if to == "" {
		to = strings.TrimSpace(deref(row.CustomerEmail))
	}
	if to == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer has no customer email and no recipient was given")
	}
	settings, err := s.loadSettings(ctx, m.OrgID)
	if err != nil {
		return nil, err
	}
	locale := resolveLocale(input.Locale, settings)
	doc := documentFor(row, settings)
	html, err := renderBytes(doc, RenderOptions{Locale: locale})
	if err != nil {
		return nil, err
	}
	if err := s.mail.Send(ctx, offerMessage(to, row.CustomerName, locale, doc, html)); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).MarkSent(ctx, row, s.now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark offer sent")
		}
		return s.emit(ctx, tx, m, enums.EventOfferSent, row, to, nil)
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "offer_id", row.ID.String()), "offer emailed but status update failed", err)
		}
		return nil, err
	}
	return &SendResultDTO{OfferID: row.ID, Code: row.Code, To: to, Status: row.Status}, nil
}

// Convert turns every line that references a product into a sale, all in one
// transaction, and marks the offer converted.
func (s *service) Convert(ctx context.Context, m orgs.Membership, id uuid.UUID) (out *ConvertResultDTO, err error) {
	defer func() { s.record("convert", err) }()

	var (
		row    *models.Offer
		txnIDs []uuid.UUID
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		if row, err = s.find(ctx, repo, m.OrgID, id); err != nil {
			return err
		}
		if row.Status == enums.OfferStatusConverted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer already converted")
		}

		note := "offer " + row.Code
		for _, it := range row.Items {
			if it.ProductCode == nil || strings.TrimSpace(*it.ProductCode) == "" {
				continue
			}
			price := it.UnitPrice
			offerID := row.ID
			txn, err := s.stock.ApplyInTx(ctx, tx, m, inventory.Request{
				ProductCode: *it.ProductCode,
				Mutation: inventory.Mutation{
					Type:      enums.TxnTypeSale,
					Qty:       it.Qty,
					UnitPrice: &price,
				},
				Note:    &note,
				OfferID: &offerID,
			})
			if err != nil {
				if typed := pkgerrors.As(err); typed != nil {
					return typed.WithDetails(lineDetails(typed.Details(), it))
				}
				return err
			}
			txnIDs = append(txnIDs, txn.ID)
		}

		ok, err := repo.MarkConverted(ctx, row, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark offer converted")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer already converted")
		}
		return s.emit(ctx, tx, m, enums.EventOfferConverted, row, "", txnIDs)
	})
	if err != nil {
		return nil, err
	}
	s.dashboard.Invalidate(ctx, m.OrgID)
	if txnIDs == nil {
		txnIDs = []uuid.UUID{}
	}
	return &ConvertResultDTO{Offer: toDTO(row), TxnIDs: txnIDs}, nil
}

func lineDetails(existing any, it models.OfferItem) map[string]any {
	out := map[string]any{}
	if m, ok := existing.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	out["position"] = it.Position
	out["product_code"] = deref(it.ProductCode)
	return out
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, m orgs.Membership, eventType enums.OutboxEventType, offer *models.Offer, recipient string, txnIDs []uuid.UUID) error {
	err := s.emitter.Emit(ctx, tx, outbox.Event{
		Type:          eventType,
		AggregateType: enums.AggregateOffer,
		AggregateID:   offer.ID,
		Actor:         m.Actor(),
		Data: payloads.OfferEvent{
			OrgID:      offer.OrgID,
			OfferID:    offer.ID,
			Code:       offer.Code,
			Status:     offer.Status,
			GrandTotal: offer.GrandTotal,
			Recipient:  recipient,
			TxnIDs:     txnIDs,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit "+string(eventType))
	}
	return nil
}

func (s *service) record(action string, err error) {
	if s.metrics != nil {
		s.metrics.Offer(action, err)
	}
}

func offerMessage(to string, toName *string, locale enums.Locale, doc Document, html []byte) mailer.Message {
	return mailer.Message{
		To:      to,
		ToName:  deref(toName),
		Subject: Subject(locale, doc.Code),
		HTML:    string(html),
		Text:    Summary(locale, doc),
		Attachments: []mailer.Attachment{{
			Filename:    doc.Code + ".html",
			ContentType: "text/html",
			Content:     html,
		}},
	}
}

func resolveLocale(requested enums.Locale, settings *models.Settings) enums.Locale {
	if requested != "" {
		return enums.ParseLocale(string(requested))
	}
	if settings != nil {
		return enums.ParseLocale(settings.Locale)
	}
	return enums.DefaultLocale
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
