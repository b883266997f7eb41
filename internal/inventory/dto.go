package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliria/erp-backend/pkg/amount"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	"github.com/iliria/erp-backend/pkg/pagination"
)

// ApplyInput is the request body of a stock transaction.
type ApplyInput struct {
	ProductCode string        `json:"product_code" validate:"required,max=40"`
	Type        enums.TxnType `json:"type" validate:"required,oneof=purchase sale adjust"`
	Qty         amount.Input  `json:"qty"`
	UnitCost    amount.Input  `json:"unit_cost"`
	UnitPrice   amount.Input  `json:"unit_price"`
	UpdatePrice bool          `json:"update_price"`
	Note        *string       `json:"note" validate:"omitempty,max=500"`
}

// Request is a decoded stock mutation against a product code.
type Request struct {
	ProductCode string
	Mutation    Mutation
	Note        *string
	OfferID     *uuid.UUID
}

func (in ApplyInput) request() Request {
	return Request{
		ProductCode: in.ProductCode,
		Mutation: Mutation{
			Type:        in.Type,
			Qty:         in.Qty.Decimal(),
			UnitCost:    in.UnitCost.Ptr(),
			UnitPrice:   in.UnitPrice.Ptr(),
			UpdatePrice: in.UpdatePrice,
		},
		Note: in.Note,
	}
}

type TxnDTO struct {
	ID            uuid.UUID        `json:"id"`
	ProductID     uuid.UUID        `json:"product_id"`
	ProductCode   string           `json:"product_code"`
	Type          enums.TxnType    `json:"type"`
	Qty           decimal.Decimal  `json:"qty"`
	UnitCost      *decimal.Decimal `json:"unit_cost,omitempty"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	StockBefore   decimal.Decimal  `json:"stock_before"`
	StockAfter    decimal.Decimal  `json:"stock_after"`
	AvgCostBefore decimal.Decimal  `json:"avg_cost_before"`
	AvgCostAfter  decimal.Decimal  `json:"avg_cost_after"`
	Note          *string          `json:"note,omitempty"`
	OfferID       *uuid.UUID       `json:"offer_id,omitempty"`
	CreatedBy     uuid.UUID        `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`
}

type ListInput struct {
	ProductCode string
	Type        *enums.TxnType
	Pagination  pagination.Params
}

type ListResult struct {
	Items      []TxnDTO `json:"items"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

func toDTO(m *models.Txn) TxnDTO {
	return TxnDTO{
		ID:            m.ID,
		ProductID:     m.ProductID,
		ProductCode:   m.ProductCode,
		Type:          m.Type,
		Qty:           m.Qty,
		UnitCost:      m.UnitCost,
		UnitPrice:     m.UnitPrice,
		StockBefore:   m.StockBefore,
		StockAfter:    m.StockAfter,
		AvgCostBefore: m.AvgCostBefore,
		AvgCostAfter:  m.AvgCostAfter,
		Note:          m.Note,
		OfferID:       m.OfferID,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
}
