package domain

type EventName string

const (
	EventOrderCreated          EventName = "order_created"
	EventSubscriptionCreated   EventName = "subscription_created"
	EventSubscriptionUpdated   EventName = "subscription_updated"
	EventSubscriptionCancelled EventName = "subscription_cancelled"
	EventSubscriptionExpired   EventName = "subscription_expired"
	EventOrderRefunded         EventName = "order_refunded"

	// EventUnrecognized covers every name outside the set above.
	EventUnrecognized EventName = "unrecognized"
)

// ParseEventName maps a provider event name onto the closed set of recognized
// names. Anything else becomes EventUnrecognized.
func ParseEventName(s string) EventName {
	switch n := EventName(s); n {
	case EventOrderCreated,
		EventSubscriptionCreated,
		EventSubscriptionUpdated,
		EventSubscriptionCancelled,
		EventSubscriptionExpired,
		EventOrderRefunded:
		return n
	default:
		return EventUnrecognized
	}
}

type EventAction string

const (
	ActionGrant  EventAction = "grant"
	ActionRevoke EventAction = "revoke"
	ActionSkip   EventAction = "skip"
)

func (n EventName) Action() EventAction {
	switch n {
	case EventOrderCreated, EventSubscriptionCreated, EventSubscriptionUpdated:
		return ActionGrant
	case EventSubscriptionCancelled, EventSubscriptionExpired, EventOrderRefunded:
		return ActionRevoke
	default:
		return ActionSkip
	}
}

// WebhookEvent is the normalized form of one verified delivery. It lives for a
// single request and is never persisted as-is.
type WebhookEvent struct {
	Name    EventName
	RawName string

	// PurchaserEmail is empty when the payload carries no email.
	PurchaserEmail string
	// VariantID is zero when no variant could be extracted.
	VariantID int64

	DeliveryKey  string
	ResourceType string
	ResourceID   string
	TestMode     bool
}

func (e *WebhookEvent) HasVariant() bool { return e.VariantID != 0 }
