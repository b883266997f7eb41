package enums

// OfferStatus tracks a quotation through its lifecycle. Transitions only move
// forward: draft, sent, converted.
type OfferStatus string

const (
	OfferStatusDraft     OfferStatus = "draft"
	OfferStatusSent      OfferStatus = "sent"
	OfferStatusConverted OfferStatus = "converted"
)

var offerStatuses = newSet("offer status", OfferStatusDraft, OfferStatusSent, OfferStatusConverted)

func (s OfferStatus) String() string { return string(s) }

func (s OfferStatus) IsValid() bool { return offerStatuses.contains(s) }

func ParseOfferStatus(value string) (OfferStatus, error) { return offerStatuses.parse(value) }
