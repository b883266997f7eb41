package enums

// NotificationKind classifies in-app notifications shown to org members.
type NotificationKind string

const (
	NotificationLowStock       NotificationKind = "low_stock"
	NotificationOfferSent      NotificationKind = "offer_sent"
	NotificationOfferConverted NotificationKind = "offer_converted"
)

var notificationKinds = newSet("notification kind", NotificationLowStock, NotificationOfferSent, NotificationOfferConverted)

func (n NotificationKind) IsValid() bool { return notificationKinds.contains(n) }
