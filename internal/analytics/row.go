package analytics

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliria/erp-backend/pkg/enums"
)

// EventRow is one line of the inventory_events table. Optional columns are
// written as NULL when unset.
type EventRow struct {
	EventID     string
	EventType   enums.OutboxEventType
	OrgID       uuid.UUID
	OccurredAt  time.Time
	ActorUserID uuid.UUID
	ProductID   uuid.UUID
	ProductCode string
	OfferID     uuid.UUID
	OfferCode   string
	TxnType     enums.TxnType
	Qty         *decimal.Decimal
	StockAfter  *decimal.Decimal
	AvgCost     *decimal.Decimal
	Amount      *decimal.Decimal
}

// Schema is the column layout of the events table, partitioned by
// occurred_at.
func Schema() bigquery.Schema {
	str := func(name string, required bool) *bigquery.FieldSchema {
		return &bigquery.FieldSchema{Name: name, Type: bigquery.StringFieldType, Required: required}
	}
	num := func(name string) *bigquery.FieldSchema {
		return &bigquery.FieldSchema{Name: name, Type: bigquery.NumericFieldType}
	}
	return bigquery.Schema{
		str("event_id", true),
		str("event_type", true),
		str("org_id", true),
		{Name: "occurred_at", Type: bigquery.TimestampFieldType, Required: true},
		str("actor_user_id", false),
		str("product_id", false),
		str("product_code", false),
		str("offer_id", false),
		str("offer_code", false),
		str("txn_type", false),
		num("qty"),
		num("stock_after"),
		num("avg_cost"),
		num("amount"),
	}
}

// PartitionField is the TIMESTAMP column the events table is partitioned on.
const PartitionField = "occurred_at"

// Save implements bigquery.ValueSaver. The event id doubles as the insert id
// so streaming retries do not duplicate rows.
func (r EventRow) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"event_id":      r.EventID,
		"event_type":    string(r.EventType),
		"org_id":        r.OrgID.String(),
		"occurred_at":   r.OccurredAt.UTC(),
		"actor_user_id": nullUUID(r.ActorUserID),
		"product_id":    nullUUID(r.ProductID),
		"product_code":  nullString(r.ProductCode),
		"offer_id":      nullUUID(r.OfferID),
		"offer_code":    nullString(r.OfferCode),
		"txn_type":      nullString(string(r.TxnType)),
		"qty":           numeric(r.Qty),
		"stock_after":   numeric(r.StockAfter),
		"avg_cost":      numeric(r.AvgCost),
		"amount":        numeric(r.Amount),
	}
	return row, r.EventID, nil
}

func nullUUID(id uuid.UUID) bigquery.Value {
	if id == uuid.Nil {
		return nil
	}
	return id.String()
}

func nullString(v string) bigquery.Value {
	if v == "" {
		return nil
	}
	return v
}

func numeric(d *decimal.Decimal) bigquery.Value {
	if d == nil {
		return nil
	}
	return d.Rat()
}
