package floor

import (
	"sync"

	"restaurant-pos/internal/domain"
)

// Ledger owns the lifecycle of orders and their line items. It enforces the
// one-non-terminal-order-per-table invariant and drives the registry
// transitions that opening, settling and cancelling imply.
//
// Mutating methods return an undo func that reverts the change in full; the
// coordinator calls it when the write-through to persistence fails.
type Ledger struct {
	mu     sync.RWMutex
	reg    *Registry
	clock  Clock
	orders map[domain.OrderID]*domain.Order
	active map[domain.TableID]domain.OrderID
	nextID domain.OrderID
}

func NewLedger(reg *Registry, clock Clock) *Ledger {
	return &Ledger{
		reg:    reg,
		clock:  clock,
		orders: make(map[domain.OrderID]*domain.Order),
		active: make(map[domain.TableID]domain.OrderID),
		nextID: 1,
	}
}

// Open creates a pending order bound to the table. For walk-ins the table
// must be free; when seating a reservation it must be reserved. Initial lines
// may be supplied; they do not advance the order past pending.
func (l *Ledger) Open(tableID domain.TableID, customerID string, seated bool, lines []domain.OrderLine) (*domain.Order, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.active[tableID]; busy {
		return nil, nil, domain.ErrTableUnavailable
	}

	var (
		prev domain.TableStatus
		ok   bool
	)
	if seated {
		prev, ok = l.reg.cas(tableID, domain.TableOccupied, domain.TableReserved, domain.TableFree)
	} else {
		prev, ok = l.reg.cas(tableID, domain.TableOccupied, domain.TableFree)
	}
	if !ok {
		return nil, nil, domain.ErrTableUnavailable
	}

	now := l.clock.Now()
	o := &domain.Order{
		ID:         l.nextID,
		TableID:    tableID,
		CustomerID: customerID,
		Status:     domain.OrderPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.nextID++
	for i := range lines {
		lines[i].Seq = i + 1
		o.Lines = append(o.Lines, lines[i])
	}
	o.RecalculateTotal()

	l.orders[o.ID] = o
	l.active[tableID] = o.ID

	undo := func() {
		l.mu.Lock()
		delete(l.orders, o.ID)
		delete(l.active, tableID)
		l.mu.Unlock()
		l.reg.restore(tableID, prev)
	}
	return o, undo, nil
}

// Continue appends lines to an order that is still open for service. The
// first extension moves a pending order to in-progress. Totals are recomputed
// from the stored snapshots only.
func (l *Ledger) Continue(orderID domain.OrderID, lines []domain.OrderLine) (*domain.Order, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[orderID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if o.Status != domain.OrderPending && o.Status != domain.OrderInProgress {
		return nil, nil, domain.ErrOrderClosed
	}

	snap := snapshotOrder(o)
	seq := len(o.Lines)
	for i := range lines {
		seq++
		lines[i].Seq = seq
		o.Lines = append(o.Lines, lines[i])
	}
	o.Status = domain.OrderInProgress
	o.RecalculateTotal()
	o.UpdatedAt = l.clock.Now()

	return o, l.restoreFn(orderID, snap), nil
}

// Complete marks every line served; the table stays occupied until
// settlement.
func (l *Ledger) Complete(orderID domain.OrderID) (*domain.Order, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[orderID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if o.Status != domain.OrderPending && o.Status != domain.OrderInProgress {
		return nil, nil, domain.ErrOrderClosed
	}

	snap := snapshotOrder(o)
	o.Status = domain.OrderCompleted
	for i := range o.Lines {
		o.Lines[i].Status = domain.LineReady
	}
	o.UpdatedAt = l.clock.Now()
	return o, l.restoreFn(orderID, snap), nil
}

// Settle closes the order for payment and moves its table to cleaning.
// Settling twice fails with ErrOrderAlreadySettled and never releases the
// table a second time.
func (l *Ledger) Settle(orderID domain.OrderID) (*domain.Order, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[orderID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	switch o.Status {
	case domain.OrderSettled:
		return nil, nil, domain.ErrOrderAlreadySettled
	case domain.OrderCancelled:
		return nil, nil, domain.ErrOrderClosed
	}

	if !l.reg.ReleaseToCleaning(o.TableID) {
		return nil, nil, domain.ErrTableUnavailable
	}

	snap := snapshotOrder(o)
	o.Status = domain.OrderSettled
	o.UpdatedAt = l.clock.Now()
	delete(l.active, o.TableID)

	tableID := o.TableID
	restore := l.restoreFn(orderID, snap)
	undo := func() {
		restore()
		l.mu.Lock()
		l.active[tableID] = orderID
		l.mu.Unlock()
		l.reg.restore(tableID, domain.TableOccupied)
	}
	return o, undo, nil
}

// Cancel voids an order that never got past pending and returns its table
// straight to free, since nothing was served.
func (l *Ledger) Cancel(orderID domain.OrderID) (*domain.Order, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[orderID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if o.Status != domain.OrderPending {
		return nil, nil, domain.ErrOrderNotCancellable
	}

	if !l.reg.ReleaseToFree(o.TableID) {
		return nil, nil, domain.ErrTableUnavailable
	}

	snap := snapshotOrder(o)
	o.Status = domain.OrderCancelled
	o.UpdatedAt = l.clock.Now()
	delete(l.active, o.TableID)

	tableID := o.TableID
	restore := l.restoreFn(orderID, snap)
	undo := func() {
		restore()
		l.mu.Lock()
		l.active[tableID] = orderID
		l.mu.Unlock()
		l.reg.restore(tableID, domain.TableOccupied)
	}
	return o, undo, nil
}

// Restore seeds the ledger from persistence at startup. Non-terminal orders
// re-bind their tables.
func (l *Ledger) Restore(o domain.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := snapshotOrder(&o)
	l.orders[o.ID] = cp
	if !o.Status.Terminal() {
		l.active[o.TableID] = o.ID
	}
	if o.ID >= l.nextID {
		l.nextID = o.ID + 1
	}
}

// Get returns a copy of the order.
func (l *Ledger) Get(orderID domain.OrderID) (domain.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return *snapshotOrder(o), nil
}

// List returns copies of all orders matching the filter, ascending by id.
func (l *Ledger) List(f domain.OrderFilter) []domain.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Order, 0)
	for id := domain.OrderID(1); id < l.nextID; id++ {
		o, ok := l.orders[id]
		if !ok || !f.Matches(o) {
			continue
		}
		out = append(out, *snapshotOrder(o))
	}
	return out
}

// ActiveOrder reports the table's current non-terminal order, if any.
func (l *Ledger) ActiveOrder(tableID domain.TableID) (domain.OrderID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.active[tableID]
	return id, ok
}

func (l *Ledger) restoreFn(orderID domain.OrderID, snap *domain.Order) func() {
	return func() {
		l.mu.Lock()
		l.orders[orderID] = snap
		l.mu.Unlock()
	}
}

func snapshotOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Lines = make([]domain.OrderLine, len(o.Lines))
	copy(cp.Lines, o.Lines)
	return &cp
}
