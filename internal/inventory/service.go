package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/internal/products"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/outbox/payloads"
	"github.com/iliria/erp-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type txnRecorder interface {
	TxnApplied(txnType string)
	TxnRejected(txnType, reason string)
}

// Applier runs a stock mutation inside a transaction owned by the caller.
type Applier interface {
	ApplyInTx(ctx context.Context, tx *gorm.DB, m orgs.Membership, req Request) (*models.Txn, error)
}

// Service applies and lists stock transactions.
type Service interface {
	Applier
	Apply(ctx context.Context, m orgs.Membership, input ApplyInput) (*TxnDTO, error)
	List(ctx context.Context, orgID uuid.UUID, input ListInput) (*ListResult, error)
}

type service struct {
	repo      *Repository
	products  *products.Repository
	tx        txRunner
	emitter   outbox.Emitter
	dashboard *products.DashboardCache
	metrics   txnRecorder
}

func NewService(repo *Repository, productRepo *products.Repository, tx txRunner, emitter outbox.Emitter, dashboard *products.DashboardCache, metrics txnRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("txn repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:      repo,
		products:  productRepo,
		tx:        tx,
		emitter:   emitter,
		dashboard: dashboard,
		metrics:   metrics,
	}, nil
}

// Apply is the fn_apply_txn entry point: one mutation in its own transaction.
func (s *service) Apply(ctx context.Context, m orgs.Membership, input ApplyInput) (*TxnDTO, error) {
	var txn *models.Txn
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.ApplyInTx(ctx, tx, m, input.request())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.dashboard.Invalidate(ctx, m.OrgID)
	dto := toDTO(txn)
	return &dto, nil
}

// ApplyInTx locks the product, applies the stock rule, persists the new state
// under a version check, appends the txn row and queues its events.
func (s *service) ApplyInTx(ctx context.Context, tx *gorm.DB, m orgs.Membership, req Request) (*models.Txn, error) {
	txnType := string(req.Mutation.Type)
	txn, err := s.applyInTx(ctx, tx, m, req)
	if err != nil {
		s.reject(txnType, err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TxnApplied(txnType)
	}
	return txn, nil
}

func (s *service) applyInTx(ctx context.Context, tx *gorm.DB, m orgs.Membership, req Request) (*models.Txn, error) {
	if !req.Mutation.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown transaction type %q", req.Mutation.Type)
	}
	code := strings.TrimSpace(req.ProductCode)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_code is required")
	}

	productRepo := s.products.WithTx(tx)
	product, err := productRepo.FindByCodeForUpdate(ctx, m.OrgID, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", code)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	mut := req.Mutation
	switch mut.Type {
	case enums.TxnTypePurchase:
		if mut.UnitCost == nil {
			cost := product.AvgCost
			mut.UnitCost = &cost
		} else if mut.UnitCost.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit_cost cannot be negative")
		}
	case enums.TxnTypeSale:
		if mut.UnitPrice == nil {
			price := product.Price
			mut.UnitPrice = &price
		} else if mut.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit_price cannot be negative")
		}
	}

	state := StockState{Stock: product.Stock, AvgCost: product.AvgCost, Price: product.Price}
	res, err := Apply(state, mut)
	if err != nil {
		return nil, mapRuleError(err, state, mut)
	}

	wasLow := product.IsLowStock()
	product.Stock = res.After.Stock
	product.AvgCost = res.After.AvgCost
	product.Price = res.After.Price
	ok, err := productRepo.UpdateStock(ctx, product, product.Version)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product stock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product changed concurrently, retry")
	}

	txn := &models.Txn{
		OrgID:         m.OrgID,
		ProductID:     product.ID,
		Type:          mut.Type,
		ProductCode:   product.Code,
		Qty:           mut.Qty,
		StockBefore:   res.Before.Stock,
		StockAfter:    res.After.Stock,
		AvgCostBefore: res.Before.AvgCost,
		AvgCostAfter:  res.After.AvgCost,
		Note:          req.Note,
		OfferID:       req.OfferID,
		CreatedBy:     m.UserID,
	}
	switch mut.Type {
	case enums.TxnTypePurchase:
		txn.UnitCost = mut.UnitCost
	case enums.TxnTypeSale:
		txn.UnitPrice = mut.UnitPrice
	}
	if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert txn")
	}

	if err := s.emitter.Emit(ctx, tx, outbox.Event{
		Type:          enums.EventTxnApplied,
		AggregateType: enums.AggregateTxn,
		AggregateID:   txn.ID,
		Actor:         m.Actor(),
		Data: payloads.TxnAppliedEvent{
			OrgID:        m.OrgID,
			TxnID:        txn.ID,
			ProductID:    product.ID,
			ProductCode:  product.Code,
			Type:         txn.Type,
			Qty:          txn.Qty,
			StockBefore:  txn.StockBefore,
			StockAfter:   txn.StockAfter,
			AvgCostAfter: txn.AvgCostAfter,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit txn_applied")
	}

	if !wasLow && product.IsLowStock() {
		if err := s.emitter.Emit(ctx, tx, outbox.Event{
			Type:          enums.EventLowStock,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			Actor:         m.Actor(),
			Data: payloads.LowStockEvent{
				OrgID:       m.OrgID,
				ProductID:   product.ID,
				ProductCode: product.Code,
				Stock:       product.Stock,
				LowStock:    product.LowStock,
			},
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit low_stock_reached")
		}
	}
	return txn, nil
}

func (s *service) reject(txnType string, err error) {
	if s.metrics == nil {
		return
	}
	reason := "error"
	if typed := pkgerrors.As(err); typed != nil {
		reason = strings.ToLower(string(typed.Code()))
	}
	if errors.Is(err, ErrInsufficientStock) {
		reason = "insufficient_stock"
	}
	s.metrics.TxnRejected(txnType, reason)
}

func mapRuleError(err error, state StockState, m Mutation) error {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "insufficient stock").
			WithDetails(map[string]any{
				"available": state.Stock.String(),
				"requested": m.Qty.String(),
			})
	case errors.Is(err, ErrNonPositiveQty):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "qty must be greater than zero")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction")
	}
}

func (s *service) List(ctx context.Context, orgID uuid.UUID, input ListInput) (*ListResult, error) {
	cursor, err := pagination.Decode(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	size := input.Pagination.Size()
	rows, err := s.repo.List(ctx, orgID, input, cursor, size)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list txns")
	}

	rows, next := pagination.Trim(rows, size, func(t models.Txn) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	out := &ListResult{Items: make([]TxnDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		out.Items = append(out.Items, toDTO(&rows[i]))
	}
	return out, nil
}
