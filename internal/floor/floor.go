// Package floor coordinates table occupancy, orders and reservations for a
// single restaurant location. The registry owns table status, the ledger owns
// order lifecycles, the book owns reservations, and the coordinator is the
// only entry point external callers use.
package floor

import (
	"context"
	"time"

	"restaurant-pos/internal/domain"
)

// Store is the write-through persistence collaborator. Each coordinator use
// case saves the entities it touched; on error the in-memory change is rolled
// back before returning.
type Store interface {
	SaveOrder(ctx context.Context, o *domain.Order) error
	SaveTable(ctx context.Context, t domain.Table) error
	SaveReservation(ctx context.Context, r *domain.Reservation) error
}

// Catalog resolves the current menu price of an item. It is consulted only at
// the moment a line is appended; the returned price becomes the line's
// snapshot.
type Catalog interface {
	PriceOf(ctx context.Context, itemID string) (int64, error)
}

// EventSink receives lifecycle events after a use case commits. Publishing is
// best effort; failures are logged, never surfaced to the caller.
type EventSink interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Clock abstracts time for window checks and expiry so tests can pin it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
