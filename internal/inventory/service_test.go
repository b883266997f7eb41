package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/internal/products"
	"github.com/iliria/erp-backend/pkg/amount"
	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/db/dbtest"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/pagination"
)

type recorder struct {
	applied  map[string]int
	rejected map[string]int
}

func newRecorder() *recorder {
	return &recorder{applied: map[string]int{}, rejected: map[string]int{}}
}

func (r *recorder) TxnApplied(txnType string)          { r.applied[txnType]++ }
func (r *recorder) TxnRejected(txnType, reason string) { r.rejected[txnType+"/"+reason]++ }

type fixture struct {
	svc     Service
	conn    *gorm.DB
	metrics *recorder
	member  orgs.Membership
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.OpenClient(t)
	emitter := outbox.NewWriter(outbox.NewRepository(client.DB()), nil)
	metrics := newRecorder()
	svc, err := NewService(NewRepository(client.DB()), products.NewRepository(client.DB()), client, emitter, nil, metrics)
	require.NoError(t, err)
	return fixture{
		svc:     svc,
		conn:    client.DB(),
		metrics: metrics,
		member:  orgs.Membership{OrgID: uuid.New(), UserID: uuid.New(), Role: enums.MemberRoleMember},
	}
}

func (f fixture) product(t *testing.T, code, stock, avgCost, price, lowStock string) {
	t.Helper()
	require.NoError(t, f.conn.Create(&models.Product{
		OrgID:    f.member.OrgID,
		Code:     code,
		Name:     code,
		Stock:    dec(stock),
		AvgCost:  dec(avgCost),
		Price:    dec(price),
		LowStock: dec(lowStock),
	}).Error)
}

func (f fixture) load(t *testing.T, code string) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.Where("org_id = ? AND code = ?", f.member.OrgID, code).First(&p).Error)
	return p
}

func (f fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestApplyPurchaseUpdatesProductAndLogsTxn(t *testing.T) {
	f := newFixture(t)
	f.product(t, "P-1", "10", "5", "9", "2")

	out, err := f.svc.Apply(context.Background(), f.member, ApplyInput{
		ProductCode: "P-1",
		Type:        enums.TxnTypePurchase,
		Qty:         amount.NewInput("5"),
		UnitCost:    amount.NewInput("8"),
	})
	require.NoError(t, err)
	assert.True(t, out.StockBefore.Equal(dec("10")))
	assert.True(t, out.StockAfter.Equal(dec("15")))
	assert.True(t, out.AvgCostAfter.Equal(dec("6")))
	require.NotNil(t, out.UnitCost)
	assert.Nil(t, out.UnitPrice)

	p := f.load(t, "P-1")
	assert.True(t, p.Stock.Equal(dec("15")))
	assert.True(t, p.AvgCost.Equal(dec("6")))
	assert.Equal(t, 2, p.Version)
	assert.EqualValues(t, 1, f.events(t, enums.EventTxnApplied))
	assert.Equal(t, 1, f.metrics.applied["purchase"])
}

func TestApplySaleRejectsInsufficientStockWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	f.product(t, "P-1", "3", "5", "9", "0")

	_, err := f.svc.Apply(context.Background(), f.member, ApplyInput{
		ProductCode: "P-1",
		Type:        enums.TxnTypeSale,
		Qty:         amount.NewInput("4"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "3", details["available"])
	assert.Equal(t, "4", details["requested"])

	p := f.load(t, "P-1")
	assert.True(t, p.Stock.Equal(dec("3")))
	var txns int64
	require.NoError(t, f.conn.Model(&models.Txn{}).Count(&txns).Error)
	assert.Zero(t, txns)
	assert.Equal(t, 1, f.metrics.rejected["sale/insufficient_stock"])
}

func TestApplySaleDefaultsUnitPriceAndEmitsLowStock(t *testing.T) {
	f := newFixture(t)
	f.product(t, "P-1", "5", "2", "9.50", "2")

	out, err := f.svc.Apply(context.Background(), f.member, ApplyInput{
		ProductCode: "P-1",
		Type:        enums.TxnTypeSale,
		Qty:         amount.NewInput("3"),
	})
	require.NoError(t, err)
	require.NotNil(t, out.UnitPrice)
	assert.True(t, out.UnitPrice.Equal(dec("9.5")))
	assert.True(t, out.StockAfter.Equal(dec("2")))
	assert.EqualValues(t, 1, f.events(t, enums.EventLowStock))

	// already low: no second event
	_, err = f.svc.Apply(context.Background(), f.member, ApplyInput{
		ProductCode: "P-1",
		Type:        enums.TxnTypeSale,
		Qty:         amount.NewInput("1"),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.events(t, enums.EventLowStock))
}

func TestApplySaleUpdatesPriceWhenAsked(t *testing.T) {
	f := newFixture(t)
	f.product(t, "P-1", "5", "2", "9", "0")

	_, err := f.svc.Apply(context.Background(), f.member, ApplyInput{
		ProductCode: "P-1",
		Type:        enums.TxnTypeSale,
		Qty:         amount.NewInput("1"),
		UnitPrice:   amount.NewInput("11,25"),
		UpdatePrice: true,
	})
	require.NoError(t, err)
	assert.True(t, f.load(t, "P-1").Price.Equal(dec("11.25")))
}

func TestApplyAdjustClampsAndValidates(t *testing.T) {
	f := newFixture(t)
	f.product(t, "P-1", "2", "1", "1", "0")
	ctx := context.Background()

	out, err := f.svc.Apply(ctx, f.member, ApplyInput{ProductCode: "P-1", Type: enums.TxnTypeAdjust, Qty: amount.NewInput("-5")})
	require.NoError(t, err)
	assert.True(t, out.StockAfter.IsZero())

	_, err = f.svc.Apply(ctx, f.member, ApplyInput{ProductCode: "missing", Type: enums.TxnTypeAdjust, Qty: amount.NewInput("1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Apply(ctx, f.member, ApplyInput{ProductCode: "P-1", Type: enums.TxnTypePurchase, Qty: amount.NewInput("0")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Apply(ctx, f.member, ApplyInput{ProductCode: "P-1", Type: "refund", Qty: amount.NewInput("1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestApplyInTxRollsBackWithCaller(t *testing.T) {
	f := newFixture(t)
	f.product(t, "P-1", "10", "1", "1", "0")
	client := db.Wrap(f.conn)

	sentinel := pkgerrors.New(pkgerrors.CodeValidation, "later line failed")
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := f.svc.ApplyInTx(context.Background(), tx, f.member, Request{
			ProductCode: "P-1",
			Mutation:    Mutation{Type: enums.TxnTypeSale, Qty: dec("4")},
		})
		require.NoError(t, err)
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.True(t, f.load(t, "P-1").Stock.Equal(dec("10")))
}

func TestListNewestFirstWithCursor(t *testing.T) {
	f := newFixture(t)
	f.product(t, "P-1", "0", "0", "1", "0")
	f.product(t, "P-2", "0", "0", "1", "0")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Apply(ctx, f.member, ApplyInput{ProductCode: "P-1", Type: enums.TxnTypePurchase, Qty: amount.NewInput("1"), UnitCost: amount.NewInput("1")})
		require.NoError(t, err)
	}
	_, err := f.svc.Apply(ctx, f.member, ApplyInput{ProductCode: "P-2", Type: enums.TxnTypeAdjust, Qty: amount.NewInput("1")})
	require.NoError(t, err)

	page, err := f.svc.List(ctx, f.member.OrgID, ListInput{ProductCode: "P-1", Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Items[0].StockAfter.Equal(dec("3")))

	rest, err := f.svc.List(ctx, f.member.OrgID, ListInput{ProductCode: "P-1", Pagination: pagination.Params{Limit: 2, Cursor: page.NextCursor}})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextCursor)
	assert.True(t, rest.Items[0].StockAfter.Equal(dec("1")))

	adjust := enums.TxnTypeAdjust
	adjusts, err := f.svc.List(ctx, f.member.OrgID, ListInput{Type: &adjust})
	require.NoError(t, err)
	require.Len(t, adjusts.Items, 1)
	assert.Equal(t, "P-2", adjusts.Items[0].ProductCode)

	_, err = f.svc.List(ctx, f.member.OrgID, ListInput{Pagination: pagination.Params{Cursor: "%%%"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
