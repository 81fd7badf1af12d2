package domain

import "time"

// Routing keys for lifecycle events published on the floor topic exchange.
const (
	EventOrderOpened          = "order.opened"
	EventOrderUpdated         = "order.updated"
	EventOrderCompleted       = "order.completed"
	EventOrderSettled         = "order.settled"
	EventOrderCancelled       = "order.cancelled"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationSeated    = "reservation.seated"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationExpired   = "reservation.expired"
	EventTableCleaned         = "table.cleaned"
)

type OrderEvent struct {
	OrderID    OrderID     `json:"order_id"`
	TableID    TableID     `json:"table_id"`
	Status     OrderStatus `json:"status"`
	TotalCents int64       `json:"total_cents"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type ReservationEvent struct {
	ReservationID ReservationID     `json:"reservation_id"`
	TableID       TableID           `json:"table_id,omitempty"`
	Status        ReservationStatus `json:"status"`
	WindowStart   time.Time         `json:"window_start"`
	WindowEnd     time.Time         `json:"window_end"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

type TableEvent struct {
	TableID    TableID     `json:"table_id"`
	Status     TableStatus `json:"status"`
	OccurredAt time.Time   `json:"occurred_at"`
}
