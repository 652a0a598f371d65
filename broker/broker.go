package broker

import "time"

// EventKind is the custom type naming what happened in the entitlement subsystem
type EventKind string

// Defining the published event kinds. The routing key is "entitlement.<kind>"
const (
	EventRequestApproved     EventKind = "request.approved"
	EventRequestRejected     EventKind = "request.rejected"
	EventSubscriptionStatus  EventKind = "subscription.status"
	EventSubscriptionBilling EventKind = "subscription.billing"
)

// Event is the message published for the notification system when an
// entitlement decision lands. Delivery is best-effort: database state is
// authoritative and consumers must tolerate gaps
type Event struct {
	Kind           EventKind `json:"kind"`
	UserID         string    `json:"userId"`
	ServiceID      string    `json:"serviceId"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	RequestID      string    `json:"requestId,omitempty"`
	Status         string    `json:"status,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	ActorID        string    `json:"actorId,omitempty"` // Administrator who made the decision, empty for user actions
	OccurredAt     time.Time `json:"occurredAt"`
}

// Producer defines the interface for publishing entitlement events via message broker
type Producer interface {
	PublishEntitlementEvent(e *Event) error
}
