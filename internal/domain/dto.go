package domain

import "time"

// LineInput is a requested line item. The unit price is looked up from the
// catalog at append time, never taken from the client.
type LineInput struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type OpenOrderRequest struct {
	TableID    TableID     `json:"table_id"`
	CustomerID string      `json:"customer_id,omitempty"`
	Lines      []LineInput `json:"lines,omitempty"`
}

type OpenOrderResponse struct {
	OrderID    OrderID     `json:"order_id"`
	TableID    TableID     `json:"table_id"`
	Status     OrderStatus `json:"status"`
	TotalCents int64       `json:"total_cents"`
}

type ContinueOrderRequest struct {
	Lines []LineInput `json:"lines"`
}

type OrderResponse struct {
	OrderID    OrderID     `json:"order_id"`
	TableID    TableID     `json:"table_id"`
	Status     OrderStatus `json:"status"`
	Lines      []OrderLine `json:"lines"`
	TotalCents int64       `json:"total_cents"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type RequestReservationRequest struct {
	CustomerID   string    `json:"customer_id,omitempty"`
	PartySize    int       `json:"party_size"`
	Start        time.Time `json:"start"`
	DurationMins int       `json:"duration_minutes"`
	ContactName  string    `json:"contact_name"`
	ContactPhone string    `json:"contact_phone"`
	Notes        string    `json:"notes,omitempty"`
}

type RequestReservationResponse struct {
	ReservationID ReservationID     `json:"reservation_id"`
	TableID       TableID           `json:"table_id"`
	TableLabel    string            `json:"table_label"`
	Area          string            `json:"area"`
	Status        ReservationStatus `json:"status"`
}

// OrderFilter narrows ListOrders. Zero values mean "any".
type OrderFilter struct {
	TableID TableID
	Status  OrderStatus
}

func (f OrderFilter) Matches(o *Order) bool {
	if f.TableID != 0 && o.TableID != f.TableID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	return true
}
