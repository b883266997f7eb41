package offers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/internal/inventory"
	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/internal/products"
	"github.com/iliria/erp-backend/pkg/amount"
	"github.com/iliria/erp-backend/pkg/db/dbtest"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/mailer"
	"github.com/iliria/erp-backend/pkg/outbox"
)

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fixture struct {
	svc     Service
	conn    *gorm.DB
	orgRepo *orgs.Repository
	mail    *fakeMailer
	member  orgs.Membership
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.OpenClient(t)
	emitter := outbox.NewWriter(outbox.NewRepository(client.DB()), nil)
	orgRepo := orgs.NewRepository(client.DB())
	orgSvc, err := orgs.NewService(orgRepo, client, emitter)
	require.NoError(t, err)
	userID := uuid.New()
	cur, err := orgSvc.Bootstrap(context.Background(), userID, orgs.BootstrapInput{Name: "Shop"})
	require.NoError(t, err)

	productRepo := products.NewRepository(client.DB())
	stock, err := inventory.NewService(inventory.NewRepository(client.DB()), productRepo, client, emitter, nil, nil)
	require.NoError(t, err)

	mail := &fakeMailer{}
	svc, err := NewService(Deps{
		Repo:     NewRepository(client.DB()),
		Settings: orgRepo,
		Tx:       client,
		Emitter:  emitter,
		Stock:    stock,
		Mail:     mail,
	}, Options{})
	require.NoError(t, err)
	return fixture{
		svc:     svc,
		conn:    client.DB(),
		orgRepo: orgRepo,
		mail:    mail,
		member:  orgs.Membership{OrgID: cur.Org.ID, UserID: userID, Role: enums.MemberRoleOwner},
	}
}

func (f fixture) product(t *testing.T, code, stock, price string) {
	t.Helper()
	require.NoError(t, f.conn.Create(&models.Product{
		OrgID: f.member.OrgID, Code: code, Name: code,
		Stock: d(stock), Price: d(price), LowStock: d("0"), AvgCost: d("1"),
	}).Error)
}

func (f fixture) stockOf(t *testing.T, code string) string {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.Where("org_id = ? AND code = ?", f.member.OrgID, code).First(&p).Error)
	return p.Stock.String()
}

func sampleInput() CreateInput {
	return CreateInput{
		CustomerName:    str("Acme"),
		CustomerEmail:   str("buyer@example.com"),
		DiscountPercent: amount.NewInput("10"),
		Items: []ItemInput{
			{ProductCode: str("P-1"), Name: "Tile", Qty: amount.NewInput("2"), UnitPrice: amount.NewInput("30")},
			{Name: "Labour", Qty: amount.NewInput("1"), UnitPrice: amount.NewInput("40")},
		},
	}
}

func TestNextNumberPreviewDoesNotConsume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		next, err := f.svc.NextNumber(ctx, f.member.OrgID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, next.NextNumber)
		assert.Equal(t, "ID-0001", next.NextCode)
	}

	created, err := f.svc.Create(ctx, f.member, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "ID-0001", created.Code)

	next, err := f.svc.NextNumber(ctx, f.member.OrgID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.NextNumber)
	assert.Equal(t, "ID-0002", next.NextCode)
}

func TestCreateSnapshotsTotalsWithDefaultVAT(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Create(ctx, f.member, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusDraft, out.Status)
	assert.True(t, out.VATPercent.Equal(d("24")))
	assert.True(t, out.Totals.Subtotal.Equal(d("100")))
	assert.True(t, out.Totals.GrandTotal.Equal(d("111.6")))
	require.Len(t, out.Items, 2)
	assert.Equal(t, 2, out.Items[1].Position)

	got, err := f.svc.Get(ctx, f.member.OrgID, out.ID)
	require.NoError(t, err)
	assert.True(t, got.Totals.Equal(out.Totals))
	assert.True(t, got.Totals.GrandTotal.Equal(d("111.6")))

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOfferCreated).Count(&events).Error)
	assert.EqualValues(t, 1, events)
}

func TestCreateUsesOrgPrefixAndWidth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	settings, err := f.orgRepo.FindSettings(ctx, f.member.OrgID)
	require.NoError(t, err)
	settings.PrefixEnabled = true
	settings.PrefixText = "OF"
	settings.OfferCodeWidth = 3
	require.NoError(t, f.orgRepo.SaveSettings(ctx, settings))

	out, err := f.svc.Create(ctx, f.member, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "OF-001", out.Code)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.member, CreateInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, f.member, CreateInput{Items: []ItemInput{{Name: "X", Qty: amount.NewInput("0")}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, f.member, CreateInput{Items: []ItemInput{{Name: " ", Qty: amount.NewInput("1")}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	in := sampleInput()
	in.DiscountPercent = amount.NewInput("120")
	_, err = f.svc.Create(ctx, f.member, in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	// rejected creates never consume a number
	next, err := f.svc.NextNumber(ctx, f.member.OrgID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, next.NextNumber)
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, f.member, sampleInput())
		require.NoError(t, err)
	}
	list, err := f.svc.List(ctx, f.member.OrgID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "ID-0003", list[0].Code)
	assert.Equal(t, "ID-0001", list[2].Code)
}

func TestPrintRendersStoredOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	out, err := f.svc.Create(ctx, f.member, sampleInput())
	require.NoError(t, err)

	html, err := f.svc.Print(ctx, f.member.OrgID, out.ID, enums.LocaleEnglish)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Offer ID-0001")
	assert.Contains(t, string(html), "111.60")
	assert.Contains(t, string(html), "window.print")

	_, err = f.svc.Print(ctx, f.member.OrgID, uuid.New(), enums.LocaleEnglish)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPrintFallsBackToOrgLocale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	settings, err := f.orgRepo.FindSettings(ctx, f.member.OrgID)
	require.NoError(t, err)
	settings.Locale = string(enums.LocaleEnglish)
	require.NoError(t, f.orgRepo.SaveSettings(ctx, settings))

	out, err := f.svc.Create(ctx, f.member, sampleInput())
	require.NoError(t, err)

	html, err := f.svc.Print(ctx, f.member.OrgID, out.ID, "")
	require.NoError(t, err)
	assert.Contains(t, string(html), `lang="en"`)
	assert.Contains(t, string(html), "Offer ID-0001")
	assert.NotContains(t, string(html), "Προσφορά")
}

func TestCreateTotalsMatchReprintAtColumnScale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := CreateInput{
		DiscountPercent: amount.NewInput("12.345"),
		VATPercent:      amount.NewInput("23.999"),
		Items: []ItemInput{
			{Name: "Cable", Qty: amount.NewInput("3.33333"), UnitPrice: amount.NewInput("100.00005")},
			{Name: "Board", Qty: amount.NewInput("1"), UnitPrice: amount.NewInput("666.66666")},
		},
	}

	created, err := f.svc.Create(ctx, f.member, in)
	require.NoError(t, err)
	assert.Equal(t, "12.35", created.DiscountPercent.String())
	assert.Equal(t, "24", created.VATPercent.String())
	for _, it := range created.Items {
		assert.LessOrEqual(t, -it.Total.Exponent(), int32(4), it.Name)
		assert.LessOrEqual(t, -it.Qty.Exponent(), int32(4), it.Name)
	}

	stored, err := f.svc.Get(ctx, f.member.OrgID, created.ID)
	require.NoError(t, err)
	assert.True(t, created.Totals.Subtotal.Equal(stored.Totals.Subtotal))
	assert.True(t, created.Totals.DiscountAmount.Equal(stored.Totals.DiscountAmount))
	assert.True(t, created.Totals.VATAmount.Equal(stored.Totals.VATAmount))
	assert.True(t, created.Totals.GrandTotal.Equal(stored.Totals.GrandTotal))

	// the reprint path recomputes from the rounded columns alone
	lineTotals := make([]decimal.Decimal, 0, len(stored.Items))
	for _, it := range stored.Items {
		lineTotals = append(lineTotals, it.Total.Round(4))
	}
	again := ComputeFromLineTotals(lineTotals, stored.DiscountPercent.Round(2), stored.VATPercent.Round(2))
	assert.True(t, created.Totals.GrandTotal.Equal(again.GrandTotal))
}

func TestSendMarksSentAndUsesOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	out, err := f.svc.Create(ctx, f.member, sampleInput())
	require.NoError(t, err)

	res, err := f.svc.Send(ctx, f.member, out.ID, SendInput{})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", res.To)
	assert.Equal(t, enums.OfferStatusSent, res.Status)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "Προσφορά ID-0001", f.mail.sent[0].Subject)
	assert.Contains(t, f.mail.sent[0].HTML, "111,60")
	require.Len(t, f.mail.sent[0].Attachments, 1)
	assert.Equal(t, "ID-0001.html", f.mail.sent[0].Attachments[0].Filename)

	res, err = f.svc.Send(ctx, f.member, out.ID, SendInput{To: str("other@example.com"), Locale: enums.LocaleEnglish})
	require.NoError(t, err)
	assert.Equal(t, "other@example.com", res.To)
	assert.Equal(t, "Offer ID-0001", f.mail.sent[1].Subject)

	got, err := f.svc.Get(ctx, f.member.OrgID, out.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusSent, got.Status)
	require.NotNil(t, got.SentAt)
}

func TestSendRequiresRecipientAndSurfacesMailErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := sampleInput()
	in.CustomerEmail = nil
	out, err := f.svc.Create(ctx, f.member, in)
	require.NoError(t, err)

	_, err = f.svc.Send(ctx, f.member, out.ID, SendInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	f.mail.err = pkgerrors.New(pkgerrors.CodeDependency, "mail request failed")
	_, err = f.svc.Send(ctx, f.member, out.ID, SendInput{To: str("x@example.com")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	got, err := f.svc.Get(ctx, f.member.OrgID, out.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusDraft, got.Status)
}

func TestConvertCreatesSalesAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "P-1", "5", "30")

	out, err := f.svc.Create(ctx, f.member, sampleInput())
	require.NoError(t, err)

	res, err := f.svc.Convert(ctx, f.member, out.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusConverted, res.Offer.Status)
	require.Len(t, res.TxnIDs, 1)
	assert.Equal(t, "3", f.stockOf(t, "P-1"))

	var txn models.Txn
	require.NoError(t, f.conn.Where("id = ?", res.TxnIDs[0]).First(&txn).Error)
	assert.Equal(t, enums.TxnTypeSale, txn.Type)
	require.NotNil(t, txn.OfferID)
	assert.Equal(t, out.ID, *txn.OfferID)

	_, err = f.svc.Convert(ctx, f.member, out.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestConvertRollsBackOnInsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "P-1", "5", "30")
	f.product(t, "P-2", "1", "10")

	in := sampleInput()
	in.Items = append(in.Items, ItemInput{ProductCode: str("P-2"), Name: "Grout", Qty: amount.NewInput("3"), UnitPrice: amount.NewInput("10")})
	out, err := f.svc.Create(ctx, f.member, in)
	require.NoError(t, err)

	_, err = f.svc.Convert(ctx, f.member, out.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "P-2", details["product_code"])
	assert.Equal(t, 3, details["position"])

	assert.Equal(t, "5", f.stockOf(t, "P-1"))
	var txns int64
	require.NoError(t, f.conn.Model(&models.Txn{}).Count(&txns).Error)
	assert.Zero(t, txns)

	got, err := f.svc.Get(ctx, f.member.OrgID, out.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusDraft, got.Status)
}

func TestSendDocumentChecksTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := SendOfferInput{
		Offer: SendOfferHeader{
			Code:            "ID-0009",
			CustomerEmail:   str("buyer@example.com"),
			VATPercent:      amount.NewInput("24"),
			DiscountPercent: amount.NewInput("10"),
		},
		Lines: []SendOfferLine{
			{Position: 1, Name: "Tile", Qty: amount.NewInput("2"), UnitPrice: amount.NewInput("30"), Total: amount.NewInput("60")},
			{Position: 2, Name: "Labour", Qty: amount.NewInput("1"), UnitPrice: amount.NewInput("40,00")},
		},
		Totals: SendOfferTotals{
			Sub:       amount.NewInput("100"),
			Discount:  amount.NewInput("10"),
			AfterDisc: amount.NewInput("90"),
			VATAmt:    amount.NewInput("21.6"),
			Grand:     amount.NewInput("111.6"),
		},
	}
	res, err := f.svc.SendDocument(ctx, f.member, input)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", res.To)
	require.Len(t, f.mail.sent, 1)
	assert.Contains(t, f.mail.sent[0].HTML, "111,60")

	input.Totals.Grand = amount.NewInput("120")
	_, err = f.svc.SendDocument(ctx, f.member, input)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, "111.60", details["grand"])

	input.Totals.Grand = amount.NewInput("111.6")
	input.Lines[0].Total = amount.NewInput("61")
	_, err = f.svc.SendDocument(ctx, f.member, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
