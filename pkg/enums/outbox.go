package enums

// OutboxAggregateType is outbox_events.aggregate_type.
type OutboxAggregateType string

const (
	AggregateOrg     OutboxAggregateType = "org"
	AggregateProduct OutboxAggregateType = "product"
	AggregateOffer   OutboxAggregateType = "offer"
	AggregateTxn     OutboxAggregateType = "txn"
)

var aggregateTypes = newSet("aggregate type", AggregateOrg, AggregateProduct, AggregateOffer, AggregateTxn)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.contains(a) }

// OutboxEventType is outbox_events.event_type and the event_type attribute
// on published messages.
type OutboxEventType string

const (
	EventOrgCreated     OutboxEventType = "org_created"
	EventProductCreated OutboxEventType = "product_created"
	EventProductDeleted OutboxEventType = "product_deleted"
	EventTxnApplied     OutboxEventType = "txn_applied"
	EventOfferCreated   OutboxEventType = "offer_created"
	EventOfferSent      OutboxEventType = "offer_sent"
	EventOfferConverted OutboxEventType = "offer_converted"
	EventLowStock       OutboxEventType = "low_stock_reached"
)

var eventTypes = newSet("event type",
	EventOrgCreated,
	EventProductCreated,
	EventProductDeleted,
	EventTxnApplied,
	EventOfferCreated,
	EventOfferSent,
	EventOfferConverted,
	EventLowStock,
)

func (e OutboxEventType) IsValid() bool { return eventTypes.contains(e) }

// OutboxEventTypes lists every event type.
func OutboxEventTypes() []OutboxEventType { return eventTypes.list() }

func ParseOutboxEventType(value string) (OutboxEventType, error) { return eventTypes.parse(value) }
