package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliria/erp-backend/pkg/enums"
)

// OrgCreatedEvent is emitted when a user bootstraps a tenant.
type OrgCreatedEvent struct {
	OrgID       uuid.UUID `json:"org_id"`
	Name        string    `json:"name"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
}

// ProductEvent carries the identity of a created or deleted product.
type ProductEvent struct {
	OrgID     uuid.UUID `json:"org_id"`
	ProductID uuid.UUID `json:"product_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url,omitempty"`
}

// TxnAppliedEvent mirrors the audit row written for a stock mutation.
type TxnAppliedEvent struct {
	OrgID        uuid.UUID       `json:"org_id"`
	TxnID        uuid.UUID       `json:"txn_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	ProductCode  string          `json:"product_code"`
	Type         enums.TxnType   `json:"type"`
	Qty          decimal.Decimal `json:"qty"`
	StockBefore  decimal.Decimal `json:"stock_before"`
	StockAfter   decimal.Decimal `json:"stock_after"`
	AvgCostAfter decimal.Decimal `json:"avg_cost_after"`
}

// LowStockEvent fires when a mutation brings stock to or below its threshold.
type LowStockEvent struct {
	OrgID       uuid.UUID       `json:"org_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductCode string          `json:"product_code"`
	Stock       decimal.Decimal `json:"stock"`
	LowStock    decimal.Decimal `json:"low_stock"`
}

// OfferEvent describes an offer lifecycle change.
type OfferEvent struct {
	OrgID      uuid.UUID         `json:"org_id"`
	OfferID    uuid.UUID         `json:"offer_id"`
	Code       string            `json:"code"`
	Status     enums.OfferStatus `json:"status"`
	GrandTotal decimal.Decimal   `json:"grand_total"`
	Recipient  string            `json:"recipient,omitempty"`
	TxnIDs     []uuid.UUID       `json:"txn_ids,omitempty"`
}
