package inventory

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliria/erp-backend/pkg/enums"
)

// avgCostPlaces bounds the precision of the weighted average division.
const avgCostPlaces int32 = 8

var (
	ErrNonPositiveQty    = errors.New("quantity must be greater than zero")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownTxnType    = errors.New("unknown transaction type")
)

// StockState is the part of a product a mutation reads and writes.
type StockState struct {
	Stock   decimal.Decimal
	AvgCost decimal.Decimal
	Price   decimal.Decimal
}

// Mutation is one requested stock change. Qty is a signed delta for adjust
// and a positive amount otherwise.
type Mutation struct {
	Type        enums.TxnType
	Qty         decimal.Decimal
	UnitCost    *decimal.Decimal
	UnitPrice   *decimal.Decimal
	UpdatePrice bool
}

// Result is the state after applying a mutation.
type Result struct {
	Before       StockState
	After        StockState
	PriceChanged bool
}

// Apply evaluates a mutation against the current state without side effects.
func Apply(state StockState, m Mutation) (Result, error) {
	after := state
	res := Result{Before: state}

	switch m.Type {
	case enums.TxnTypePurchase:
		if !m.Qty.IsPositive() {
			return res, ErrNonPositiveQty
		}
		unitCost := decimal.Zero
		if m.UnitCost != nil {
			unitCost = *m.UnitCost
		}
		after.Stock = state.Stock.Add(m.Qty)
		if !after.Stock.IsZero() {
			weighted := state.AvgCost.Mul(state.Stock).Add(unitCost.Mul(m.Qty))
			after.AvgCost = weighted.DivRound(after.Stock, avgCostPlaces)
		}
	case enums.TxnTypeSale:
		if !m.Qty.IsPositive() {
			return res, ErrNonPositiveQty
		}
		if m.Qty.GreaterThan(state.Stock) {
			return res, ErrInsufficientStock
		}
		after.Stock = state.Stock.Sub(m.Qty)
		if m.UpdatePrice && m.UnitPrice != nil && !m.UnitPrice.Equal(state.Price) {
			after.Price = *m.UnitPrice
			res.PriceChanged = true
		}
	case enums.TxnTypeAdjust:
		after.Stock = decimal.Max(decimal.Zero, state.Stock.Add(m.Qty))
	default:
		return res, ErrUnknownTxnType
	}

	res.After = after
	return res, nil
}
