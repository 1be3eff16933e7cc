// Package queue defines the reservation events exchanged over RabbitMQ and
// the publisher and consumer that move them.
package queue

// Routing keys on the reservations exchange.
const (
	ExchangeName     = "fitnow.reservations"
	RoutingCreated   = "reservation.created"
	RoutingCancelled = "reservation.cancelled"
	AuditQueueName   = "fitnow.reservations.audit"
)

// ReservationEvent is published after a reservation is committed or
// cancelled.  It carries enough for downstream consumers to log or notify
// without querying the primary database.
type ReservationEvent struct {
	EventID       string   `json:"event_id"`
	Type          string   `json:"type"` // one of the routing keys
	ReservationID uint64   `json:"reservation_id"`
	UserID        uint64   `json:"user_id"`
	ActivityID    uint64   `json:"activity_id"`
	SessionID     *uint64  `json:"session_id,omitempty"`
	StartAt       string   `json:"start_at,omitempty"`
	EndAt         string   `json:"end_at,omitempty"`
	PricePaid     *float64 `json:"price_paid,omitempty"`
	OccurredAt    string   `json:"occurred_at"`
}
