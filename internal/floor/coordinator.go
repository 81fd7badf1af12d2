package floor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"restaurant-pos/internal/domain"
	"restaurant-pos/pkg/metrics"
)

// Coordinator is the facade external callers use. It serializes every
// multi-step use case per table id, writes the touched entities through to
// the store, rolls the in-memory change back when that write fails, and
// publishes lifecycle events once the use case has committed.
type Coordinator struct {
	reg    *Registry
	ledger *Ledger
	book   *Book

	store   Store
	catalog Catalog
	events  EventSink
	clock   Clock
	log     *logrus.Entry
	floorM  *metrics.Floor

	lockMu     sync.Mutex
	tableLocks map[domain.TableID]*sync.Mutex
}

func NewCoordinator(reg *Registry, ledger *Ledger, book *Book, store Store, catalog Catalog, events EventSink, clock Clock, log *logrus.Entry, m *metrics.Floor) *Coordinator {
	return &Coordinator{
		reg:        reg,
		ledger:     ledger,
		book:       book,
		store:      store,
		catalog:    catalog,
		events:     events,
		clock:      clock,
		log:        log,
		floorM:     m,
		tableLocks: make(map[domain.TableID]*sync.Mutex),
	}
}

// lockTable serializes operations on one table; unrelated tables proceed in
// parallel. Returns the unlock func.
func (c *Coordinator) lockTable(id domain.TableID) func() {
	c.lockMu.Lock()
	mu, ok := c.tableLocks[id]
	if !ok {
		mu = &sync.Mutex{}
		c.tableLocks[id] = mu
	}
	c.lockMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func persistenceFailure(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
}

// OpenOrder opens a walk-in order on a free table, with optional initial
// lines.
func (c *Coordinator) OpenOrder(ctx context.Context, req domain.OpenOrderRequest) (domain.OpenOrderResponse, error) {
	unlock := c.lockTable(req.TableID)
	defer unlock()
	return c.openLocked(ctx, req, false)
}

func (c *Coordinator) openLocked(ctx context.Context, req domain.OpenOrderRequest, seated bool) (domain.OpenOrderResponse, error) {
	lines, err := c.priceLines(ctx, req.Lines)
	if err != nil {
		return domain.OpenOrderResponse{}, err
	}

	order, undo, err := c.ledger.Open(req.TableID, req.CustomerID, seated, lines)
	if err != nil {
		return domain.OpenOrderResponse{}, err
	}

	if err := c.persistOrderAndTable(ctx, order); err != nil {
		undo()
		return domain.OpenOrderResponse{}, err
	}

	c.floorM.OrdersOpened.Inc()
	c.publishOrder(ctx, domain.EventOrderOpened, order)
	c.log.WithFields(logrus.Fields{"order_id": order.ID, "table_id": order.TableID}).Info("order_opened")
	return domain.OpenOrderResponse{OrderID: order.ID, TableID: order.TableID, Status: order.Status, TotalCents: order.TotalCents}, nil
}

// ContinueOrder appends lines to an order that is still open for service,
// snapshotting current catalog prices.
func (c *Coordinator) ContinueOrder(ctx context.Context, orderID domain.OrderID, inputs []domain.LineInput) (domain.OrderResponse, error) {
	existing, err := c.ledger.Get(orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	unlock := c.lockTable(existing.TableID)
	defer unlock()

	lines, err := c.priceLines(ctx, inputs)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	order, undo, err := c.ledger.Continue(orderID, lines)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	if err := c.store.SaveOrder(ctx, order); err != nil {
		undo()
		return domain.OrderResponse{}, persistenceFailure(err)
	}

	c.publishOrder(ctx, domain.EventOrderUpdated, order)
	c.log.WithFields(logrus.Fields{"order_id": order.ID, "lines_added": len(lines)}).Info("order_updated")
	return orderResponse(order), nil
}

// OpenOrUpdateOrder opens an order if the table has none, otherwise extends
// the one it has.
func (c *Coordinator) OpenOrUpdateOrder(ctx context.Context, req domain.OpenOrderRequest) (domain.OrderResponse, error) {
	unlock := c.lockTable(req.TableID)
	defer unlock()

	if orderID, busy := c.ledger.ActiveOrder(req.TableID); busy {
		lines, err := c.priceLines(ctx, req.Lines)
		if err != nil {
			return domain.OrderResponse{}, err
		}
		order, undo, err := c.ledger.Continue(orderID, lines)
		if err != nil {
			return domain.OrderResponse{}, err
		}
		if err := c.store.SaveOrder(ctx, order); err != nil {
			undo()
			return domain.OrderResponse{}, persistenceFailure(err)
		}
		c.publishOrder(ctx, domain.EventOrderUpdated, order)
		return orderResponse(order), nil
	}

	resp, err := c.openLocked(ctx, req, false)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	order, err := c.ledger.Get(resp.OrderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	return orderResponse(&order), nil
}

// CompleteOrder marks every line of the order served.
func (c *Coordinator) CompleteOrder(ctx context.Context, orderID domain.OrderID) (domain.OrderResponse, error) {
	existing, err := c.ledger.Get(orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	unlock := c.lockTable(existing.TableID)
	defer unlock()

	order, undo, err := c.ledger.Complete(orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if err := c.store.SaveOrder(ctx, order); err != nil {
		undo()
		return domain.OrderResponse{}, persistenceFailure(err)
	}
	c.publishOrder(ctx, domain.EventOrderCompleted, order)
	return orderResponse(order), nil
}

// SettleOrder closes the order for payment and moves its table to cleaning.
func (c *Coordinator) SettleOrder(ctx context.Context, orderID domain.OrderID) (domain.OrderResponse, error) {
	existing, err := c.ledger.Get(orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	unlock := c.lockTable(existing.TableID)
	defer unlock()

	order, undo, err := c.ledger.Settle(orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if err := c.persistOrderAndTable(ctx, order); err != nil {
		undo()
		return domain.OrderResponse{}, err
	}

	c.floorM.OrdersSettled.Inc()
	c.publishOrder(ctx, domain.EventOrderSettled, order)
	c.log.WithFields(logrus.Fields{"order_id": order.ID, "table_id": order.TableID, "total_cents": order.TotalCents}).Info("order_settled")
	return orderResponse(order), nil
}

// CancelOrder voids a pending order and frees its table.
func (c *Coordinator) CancelOrder(ctx context.Context, orderID domain.OrderID) (domain.OrderResponse, error) {
	existing, err := c.ledger.Get(orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	unlock := c.lockTable(existing.TableID)
	defer unlock()

	order, undo, err := c.ledger.Cancel(orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if err := c.persistOrderAndTable(ctx, order); err != nil {
		undo()
		return domain.OrderResponse{}, err
	}

	c.floorM.OrdersCancelled.Inc()
	c.publishOrder(ctx, domain.EventOrderCancelled, order)
	c.log.WithFields(logrus.Fields{"order_id": order.ID, "table_id": order.TableID}).Info("order_cancelled")
	return orderResponse(order), nil
}

// RequestReservation assigns a table and confirms the booking. The table is
// only known once the book has chosen it, so the per-table lock is taken
// after the claim; the persist and any rollback happen under it.
func (c *Coordinator) RequestReservation(ctx context.Context, req domain.RequestReservationRequest) (domain.RequestReservationResponse, error) {
	res, undo, err := c.book.Request(req)
	if err != nil {
		c.floorM.ReservationsRejected.Inc()
		return domain.RequestReservationResponse{}, err
	}
	unlock := c.lockTable(res.TableID)
	defer unlock()

	if err := c.persistReservationAndTable(ctx, res); err != nil {
		undo()
		return domain.RequestReservationResponse{}, err
	}

	table, _ := c.reg.View(res.TableID)
	c.floorM.ReservationsConfirmed.Inc()
	c.publishReservation(ctx, domain.EventReservationConfirmed, res)
	c.log.WithFields(logrus.Fields{"reservation_id": res.ID, "table_id": res.TableID, "party_size": res.PartySize}).Info("reservation_confirmed")
	return domain.RequestReservationResponse{
		ReservationID: res.ID,
		TableID:       res.TableID,
		TableLabel:    table.Label,
		Area:          table.Area,
		Status:        res.Status,
	}, nil
}

// SeatReservation seats the guest: the reserved table becomes occupied, a
// pending order is opened for it, and the reservation is marked seated — as
// one serialized unit.
func (c *Coordinator) SeatReservation(ctx context.Context, resID domain.ReservationID) (domain.OpenOrderResponse, error) {
	res, err := c.book.Get(resID)
	if err != nil {
		return domain.OpenOrderResponse{}, err
	}
	unlock := c.lockTable(res.TableID)
	defer unlock()

	seated, undoSeat, err := c.book.Seat(resID)
	if err != nil {
		return domain.OpenOrderResponse{}, err
	}

	order, undoOpen, err := c.ledger.Open(seated.TableID, seated.CustomerID, true, nil)
	if err != nil {
		undoSeat()
		return domain.OpenOrderResponse{}, err
	}

	if err := c.store.SaveReservation(ctx, seated); err != nil {
		undoOpen()
		undoSeat()
		return domain.OpenOrderResponse{}, persistenceFailure(err)
	}
	if err := c.persistOrderAndTable(ctx, order); err != nil {
		undoOpen()
		undoSeat()
		return domain.OpenOrderResponse{}, err
	}

	c.floorM.OrdersOpened.Inc()
	c.publishReservation(ctx, domain.EventReservationSeated, seated)
	c.publishOrder(ctx, domain.EventOrderOpened, order)
	c.log.WithFields(logrus.Fields{"reservation_id": resID, "order_id": order.ID, "table_id": order.TableID}).Info("reservation_seated")
	return domain.OpenOrderResponse{OrderID: order.ID, TableID: order.TableID, Status: order.Status, TotalCents: order.TotalCents}, nil
}

// CancelReservation voids a booking before seating.
func (c *Coordinator) CancelReservation(ctx context.Context, resID domain.ReservationID) error {
	existing, err := c.book.Get(resID)
	if err != nil {
		return err
	}
	unlock := c.lockTable(existing.TableID)
	defer unlock()

	res, released, undo, err := c.book.Cancel(resID)
	if err != nil {
		return err
	}
	if err := c.saveReservation(ctx, res, released); err != nil {
		undo()
		return err
	}

	c.publishReservation(ctx, domain.EventReservationCancelled, res)
	c.log.WithFields(logrus.Fields{"reservation_id": resID, "table_released": released}).Info("reservation_cancelled")
	return nil
}

// ExpireReservations sweeps bookings unclaimed past the grace period. Returns
// how many were expired.
func (c *Coordinator) ExpireReservations(ctx context.Context) (int, error) {
	expired := 0
	for _, resID := range c.book.DueForExpiry() {
		existing, err := c.book.Get(resID)
		if err != nil {
			continue
		}
		unlock := c.lockTable(existing.TableID)
		res, released, undo, err := c.book.Expire(resID)
		if err != nil {
			unlock()
			continue
		}
		if err := c.saveReservation(ctx, res, released); err != nil {
			undo()
			unlock()
			return expired, err
		}
		unlock()

		expired++
		c.floorM.ReservationsExpired.Inc()
		c.publishReservation(ctx, domain.EventReservationExpired, res)
		c.log.WithFields(logrus.Fields{"reservation_id": resID, "table_released": released}).Info("reservation_expired")
	}
	return expired, nil
}

// MarkTableCleaned is the housekeeping signal moving a cleaned table back to
// free.
func (c *Coordinator) MarkTableCleaned(ctx context.Context, tableID domain.TableID) error {
	unlock := c.lockTable(tableID)
	defer unlock()

	if !c.reg.MarkCleaned(tableID) {
		if _, err := c.reg.StatusOf(tableID); err != nil {
			return err
		}
		return domain.ErrTableUnavailable
	}
	if err := c.saveTable(ctx, tableID); err != nil {
		c.reg.restore(tableID, domain.TableCleaning)
		return err
	}

	ev := domain.TableEvent{TableID: tableID, Status: domain.TableFree, OccurredAt: c.clock.Now()}
	if err := c.events.Publish(ctx, domain.EventTableCleaned, ev); err != nil {
		c.log.WithError(err).WithField("routing_key", domain.EventTableCleaned).Warn("event_publish_failed")
	}
	c.log.WithFields(logrus.Fields{"table_id": tableID}).Info("table_cleaned")
	return nil
}

// GetOrder returns a copy of the order.
func (c *Coordinator) GetOrder(orderID domain.OrderID) (domain.Order, error) {
	return c.ledger.Get(orderID)
}

// ListOrders returns copies of the orders matching the filter.
func (c *Coordinator) ListOrders(f domain.OrderFilter) []domain.Order {
	return c.ledger.List(f)
}

// Tables returns the floor snapshot sorted by table id.
func (c *Coordinator) Tables() []domain.Table {
	return c.reg.Snapshot()
}

// GetReservation returns a copy of the reservation.
func (c *Coordinator) GetReservation(resID domain.ReservationID) (domain.Reservation, error) {
	return c.book.Get(resID)
}

func (c *Coordinator) priceLines(ctx context.Context, inputs []domain.LineInput) ([]domain.OrderLine, error) {
	lines := make([]domain.OrderLine, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity < 1 {
			return nil, fmt.Errorf("%w: line quantity must be at least 1", domain.ErrInvalidRequest)
		}
		price, err := c.catalog.PriceOf(ctx, in.ItemID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown item %q", domain.ErrInvalidRequest, in.ItemID)
		}
		if err != nil {
			return nil, persistenceFailure(err)
		}
		lines = append(lines, domain.OrderLine{
			ItemID:         in.ItemID,
			Name:           in.Name,
			Quantity:       in.Quantity,
			UnitPriceCents: price,
			Status:         domain.LinePending,
		})
	}
	return lines, nil
}

func (c *Coordinator) persistOrderAndTable(ctx context.Context, order *domain.Order) error {
	if err := c.store.SaveOrder(ctx, order); err != nil {
		return persistenceFailure(err)
	}
	if err := c.saveTable(ctx, order.TableID); err != nil {
		return err
	}
	return nil
}

func (c *Coordinator) persistReservationAndTable(ctx context.Context, res *domain.Reservation) error {
	if err := c.store.SaveReservation(ctx, res); err != nil {
		return persistenceFailure(err)
	}
	return c.saveTable(ctx, res.TableID)
}

func (c *Coordinator) saveReservation(ctx context.Context, res *domain.Reservation, tableTouched bool) error {
	if err := c.store.SaveReservation(ctx, res); err != nil {
		return persistenceFailure(err)
	}
	if tableTouched {
		return c.saveTable(ctx, res.TableID)
	}
	return nil
}

func (c *Coordinator) saveTable(ctx context.Context, tableID domain.TableID) error {
	table, err := c.reg.View(tableID)
	if err != nil {
		return err
	}
	if err := c.store.SaveTable(ctx, table); err != nil {
		return persistenceFailure(err)
	}
	return nil
}

func (c *Coordinator) publishOrder(ctx context.Context, key string, order *domain.Order) {
	ev := domain.OrderEvent{
		OrderID:    order.ID,
		TableID:    order.TableID,
		Status:     order.Status,
		TotalCents: order.TotalCents,
		OccurredAt: c.clock.Now(),
	}
	if err := c.events.Publish(ctx, key, ev); err != nil {
		c.log.WithError(err).WithField("routing_key", key).Warn("event_publish_failed")
	}
}

func (c *Coordinator) publishReservation(ctx context.Context, key string, res *domain.Reservation) {
	ev := domain.ReservationEvent{
		ReservationID: res.ID,
		TableID:       res.TableID,
		Status:        res.Status,
		WindowStart:   res.Window.Start,
		WindowEnd:     res.Window.End(),
		OccurredAt:    c.clock.Now(),
	}
	if err := c.events.Publish(ctx, key, ev); err != nil {
		c.log.WithError(err).WithField("routing_key", key).Warn("event_publish_failed")
	}
}

func orderResponse(o *domain.Order) domain.OrderResponse {
	lines := make([]domain.OrderLine, len(o.Lines))
	copy(lines, o.Lines)
	return domain.OrderResponse{
		OrderID:    o.ID,
		TableID:    o.TableID,
		Status:     o.Status,
		Lines:      lines,
		TotalCents: o.TotalCents,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}
