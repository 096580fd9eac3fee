package notifications

// Urgency orders notifications so senders can pick an icon or sound.
type Urgency int

const (
	UrgencyInfo Urgency = iota
	UrgencySuccess
	UrgencyWarning
	UrgencyError
)

// Payload is a generic user-facing notification payload.
type Payload struct {
	Title   string
	Content string
	Urgency Urgency
}

// Sender sends notifications using a platform-specific backend.
type Sender interface {
	Send(payload Payload)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(payload Payload)

func (f SenderFunc) Send(payload Payload) {
	f(payload)
}
