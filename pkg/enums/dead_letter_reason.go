package enums

// DeadLetterReason records why the publisher stopped retrying an outbox row.
type DeadLetterReason string

const (
	// unknown event type or a payload that does not decode
	DeadLetterUnroutable DeadLetterReason = "unroutable"
	// the broker refused the message outright
	DeadLetterRejected DeadLetterReason = "rejected"
	// transient failures used up every attempt
	DeadLetterExhausted DeadLetterReason = "max_attempts"
)

var deadLetterReasons = newSet("dead letter reason", DeadLetterUnroutable, DeadLetterRejected, DeadLetterExhausted)

func (r DeadLetterReason) IsValid() bool { return deadLetterReasons.contains(r) }
