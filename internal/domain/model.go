package domain

import (
	"time"

	"github.com/google/uuid"
)

// TableID identifies a physical table on the floor.
type TableID = int64

// OrderID is generated on order creation and is monotonic, so callers may
// rely on it for ordering.
type OrderID = int64

// ReservationID identifies a reservation.
type ReservationID = uuid.UUID

type TableStatus string

const (
	TableFree     TableStatus = "free"
	TableReserved TableStatus = "reserved"
	TableOccupied TableStatus = "occupied"
	TableCleaning TableStatus = "cleaning"
)

// Table is the floor-plan view of a single seating unit. Status is owned by
// the registry; everything else is fixed at floor setup.
type Table struct {
	ID       TableID     `json:"id"`
	Label    string      `json:"label"`
	Area     string      `json:"area"`
	Capacity int         `json:"capacity"`
	StoreID  int64       `json:"store_id"`
	Status   TableStatus `json:"status"`
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderSettled    OrderStatus = "settled"
	OrderCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether the order can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == OrderSettled || s == OrderCancelled
}

type LineStatus string

const (
	LinePending   LineStatus = "pending"
	LinePreparing LineStatus = "preparing"
	LineReady     LineStatus = "ready"
)

// OrderLine is owned by its order and identified by (order id, seq).
// UnitPriceCents is a snapshot taken when the line was appended; later menu
// changes never alter it.
type OrderLine struct {
	Seq            int        `json:"seq"`
	ItemID         string     `json:"item_id"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Status         LineStatus `json:"status"`
}

type Order struct {
	ID         OrderID     `json:"id"`
	TableID    TableID     `json:"table_id"`
	CustomerID string      `json:"customer_id,omitempty"`
	Status     OrderStatus `json:"status"`
	Lines      []OrderLine `json:"lines"`
	TotalCents int64       `json:"total_cents"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// RecalculateTotal derives the total from the line snapshots. The stored
// total is never authoritative on its own.
func (o *Order) RecalculateTotal() {
	var total int64
	for _, ln := range o.Lines {
		total += int64(ln.Quantity) * ln.UnitPriceCents
	}
	o.TotalCents = total
}

type ReservationStatus string

const (
	ReservationRequested ReservationStatus = "requested"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationSeated    ReservationStatus = "seated"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

// Window is a half-open time interval [Start, Start+Duration).
type Window struct {
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

func (w Window) End() time.Time { return w.Start.Add(w.Duration) }

// Overlaps reports whether two windows intersect. Touching bounds do not
// count, so back-to-back bookings are allowed.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End()) && o.Start.Before(w.End())
}

type Reservation struct {
	ID           ReservationID     `json:"id"`
	TableID      TableID           `json:"table_id,omitempty"` // zero until assigned
	CustomerID   string            `json:"customer_id,omitempty"`
	PartySize    int               `json:"party_size"`
	Window       Window            `json:"window"`
	ContactName  string            `json:"contact_name"`
	ContactPhone string            `json:"contact_phone"`
	Notes        string            `json:"notes,omitempty"`
	Status       ReservationStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
