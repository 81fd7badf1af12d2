package floor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"restaurant-pos/internal/domain"
)

// AssignPolicy orders the candidate tables for a reservation request. Tables
// arrive sorted by ascending id; the policy returns the ids worth attempting,
// best first. An empty result means no table can host the party.
type AssignPolicy func(tables []domain.Table, committed map[domain.TableID][]domain.Window, partySize int, win domain.Window) []domain.TableID

// DefaultAssignPolicy picks tables whose capacity fits the party and whose
// confirmed windows do not overlap the requested one, ties broken by
// ascending table id.
func DefaultAssignPolicy(tables []domain.Table, committed map[domain.TableID][]domain.Window, partySize int, win domain.Window) []domain.TableID {
	var out []domain.TableID
	for _, t := range tables {
		if t.Capacity < partySize {
			continue
		}
		if overlapsAny(committed[t.ID], win) {
			continue
		}
		out = append(out, t.ID)
	}
	return out
}

func overlapsAny(windows []domain.Window, win domain.Window) bool {
	for _, w := range windows {
		if w.Overlaps(win) {
			return true
		}
	}
	return false
}

type bookedWindow struct {
	resID domain.ReservationID
	win   domain.Window
}

// Book holds future reservations and checks them against the registry before
// confirming. Only confirmed reservations commit a window against a table.
type Book struct {
	mu          sync.Mutex
	reg         *Registry
	clock       Clock
	policy      AssignPolicy
	maxAttempts int
	grace       time.Duration

	res     map[domain.ReservationID]*domain.Reservation
	windows map[domain.TableID][]bookedWindow
}

// BookConfig carries the policy knobs. Zero values fall back to defaults.
type BookConfig struct {
	Policy      AssignPolicy
	MaxAttempts int
	Grace       time.Duration
}

func NewBook(reg *Registry, clock Clock, cfg BookConfig) *Book {
	if cfg.Policy == nil {
		cfg.Policy = DefaultAssignPolicy
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 15 * time.Minute
	}
	return &Book{
		reg:         reg,
		clock:       clock,
		policy:      cfg.Policy,
		maxAttempts: cfg.MaxAttempts,
		grace:       cfg.Grace,
		res:         make(map[domain.ReservationID]*domain.Reservation),
		windows:     make(map[domain.TableID][]bookedWindow),
	}
}

// Request assigns a table to the reservation and confirms it. If the policy
// yields no candidate the request is rejected with ErrNoCapacity. A candidate
// that fails the registry claim (raced by another path) is skipped and the
// next one tried, up to the attempt bound, after which the request fails with
// ErrAssignmentConflict.
func (b *Book) Request(req domain.RequestReservationRequest) (*domain.Reservation, func(), error) {
	win := domain.Window{Start: req.Start, Duration: time.Duration(req.DurationMins) * time.Minute}

	b.mu.Lock()
	defer b.mu.Unlock()

	committed := b.committedWindows()
	candidates := b.policy(b.reg.Snapshot(), committed, req.PartySize, win)
	if len(candidates) == 0 {
		return nil, nil, domain.ErrNoCapacity
	}
	if len(candidates) > b.maxAttempts {
		candidates = candidates[:b.maxAttempts]
	}

	for _, tableID := range candidates {
		// A table already reserved for another confirmed booking may take a
		// further non-overlapping window without a new registry claim.
		claimed := false
		switch st, _ := b.reg.StatusOf(tableID); st {
		case domain.TableFree:
			if !b.reg.TryReserve(tableID) {
				continue
			}
			claimed = true
		case domain.TableReserved:
		default:
			continue
		}
		now := b.clock.Now()
		r := &domain.Reservation{
			ID:           uuid.New(),
			TableID:      tableID,
			CustomerID:   req.CustomerID,
			PartySize:    req.PartySize,
			Window:       win,
			ContactName:  req.ContactName,
			ContactPhone: req.ContactPhone,
			Notes:        req.Notes,
			Status:       domain.ReservationConfirmed,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		b.res[r.ID] = r
		b.windows[tableID] = append(b.windows[tableID], bookedWindow{resID: r.ID, win: win})

		id := r.ID
		undo := func() {
			b.mu.Lock()
			delete(b.res, id)
			b.removeWindow(tableID, id)
			b.mu.Unlock()
			// Guarded release: if the table moved on since the claim (a
			// released-hold booking was seated meanwhile), leave it alone.
			if claimed {
				b.reg.cas(tableID, domain.TableFree, domain.TableReserved)
			}
		}
		return r, undo, nil
	}
	return nil, nil, domain.ErrAssignmentConflict
}

// Seat marks a confirmed reservation as seated and releases its committed
// window; from here on occupancy governs the table.
func (b *Book) Seat(resID domain.ReservationID) (*domain.Reservation, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.res[resID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	switch r.Status {
	case domain.ReservationSeated:
		return nil, nil, domain.ErrAlreadySeated
	case domain.ReservationCancelled, domain.ReservationExpired:
		return nil, nil, domain.ErrTableUnavailable
	}

	win := b.takeWindow(r.TableID, resID)
	prev := r.Status
	prevUpdated := r.UpdatedAt
	r.Status = domain.ReservationSeated
	r.UpdatedAt = b.clock.Now()

	undo := func() {
		b.mu.Lock()
		r.Status = prev
		r.UpdatedAt = prevUpdated
		b.windows[r.TableID] = append(b.windows[r.TableID], bookedWindow{resID: resID, win: win})
		b.mu.Unlock()
	}
	return r, undo, nil
}

// Cancel voids a reservation before seating. The table hold is released back
// to free unless another confirmed booking claims the table soon enough that
// the hold should stand.
func (b *Book) Cancel(resID domain.ReservationID) (*domain.Reservation, bool, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.res[resID]
	if !ok {
		return nil, false, nil, domain.ErrNotFound
	}
	switch r.Status {
	case domain.ReservationSeated:
		return nil, false, nil, domain.ErrAlreadySeated
	case domain.ReservationCancelled, domain.ReservationExpired:
		return nil, false, nil, domain.ErrNotFound
	}

	return b.close(r, domain.ReservationCancelled)
}

// Expire transitions an unclaimed reservation past its grace period.
func (b *Book) Expire(resID domain.ReservationID) (*domain.Reservation, bool, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.res[resID]
	if !ok {
		return nil, false, nil, domain.ErrNotFound
	}
	if r.Status != domain.ReservationRequested && r.Status != domain.ReservationConfirmed {
		return nil, false, nil, domain.ErrNotFound
	}
	if b.clock.Now().Before(r.Window.Start.Add(b.grace)) {
		return nil, false, nil, domain.ErrNotFound
	}

	return b.close(r, domain.ReservationExpired)
}

// DueForExpiry lists reservations whose grace period has lapsed unclaimed.
func (b *Book) DueForExpiry() []domain.ReservationID {
	b.mu.Lock()
	defer b.mu.Unlock()

	deadline := b.clock.Now()
	var out []domain.ReservationID
	for id, r := range b.res {
		if r.Status != domain.ReservationRequested && r.Status != domain.ReservationConfirmed {
			continue
		}
		if !deadline.Before(r.Window.Start.Add(b.grace)) {
			out = append(out, id)
		}
	}
	return out
}

// Restore seeds the book from persistence at startup. Confirmed reservations
// re-commit their windows.
func (b *Book) Restore(r domain.Reservation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := r
	b.res[r.ID] = &cp
	if r.Status == domain.ReservationConfirmed && r.TableID != 0 {
		b.windows[r.TableID] = append(b.windows[r.TableID], bookedWindow{resID: r.ID, win: r.Window})
	}
}

// Get returns a copy of the reservation.
func (b *Book) Get(resID domain.ReservationID) (domain.Reservation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.res[resID]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return *r, nil
}

// close is the shared cancel/expire path. Caller holds b.mu.
func (b *Book) close(r *domain.Reservation, to domain.ReservationStatus) (*domain.Reservation, bool, func(), error) {
	win := b.takeWindow(r.TableID, r.ID)
	prev := r.Status
	prevUpdated := r.UpdatedAt
	r.Status = to
	r.UpdatedAt = b.clock.Now()

	released := false
	if !b.holdStillNeeded(r.TableID) {
		_, released = b.reg.cas(r.TableID, domain.TableFree, domain.TableReserved)
	}

	tableID := r.TableID
	resID := r.ID
	undo := func() {
		b.mu.Lock()
		r.Status = prev
		r.UpdatedAt = prevUpdated
		b.windows[tableID] = append(b.windows[tableID], bookedWindow{resID: resID, win: win})
		b.mu.Unlock()
		// Re-assert the hold only if nothing claimed the table in between.
		if released {
			b.reg.cas(tableID, domain.TableReserved, domain.TableFree)
		}
	}
	return r, released, undo, nil
}

// holdStillNeeded reports whether another confirmed booking on the table
// starts soon enough (within the grace period from now) that the reserved
// hold must not be dropped. Caller holds b.mu.
func (b *Book) holdStillNeeded(tableID domain.TableID) bool {
	horizon := b.clock.Now().Add(b.grace)
	for _, bw := range b.windows[tableID] {
		if bw.win.Start.Before(horizon) {
			return true
		}
	}
	return false
}

// committedWindows maps each table to its confirmed windows. Caller holds
// b.mu.
func (b *Book) committedWindows() map[domain.TableID][]domain.Window {
	out := make(map[domain.TableID][]domain.Window, len(b.windows))
	for id, bws := range b.windows {
		for _, bw := range bws {
			out[id] = append(out[id], bw.win)
		}
	}
	return out
}

func (b *Book) removeWindow(tableID domain.TableID, resID domain.ReservationID) {
	bws := b.windows[tableID]
	for i, bw := range bws {
		if bw.resID == resID {
			b.windows[tableID] = append(bws[:i], bws[i+1:]...)
			return
		}
	}
}

// takeWindow removes and returns the reservation's window. Caller holds b.mu.
func (b *Book) takeWindow(tableID domain.TableID, resID domain.ReservationID) domain.Window {
	bws := b.windows[tableID]
	for i, bw := range bws {
		if bw.resID == resID {
			b.windows[tableID] = append(bws[:i], bws[i+1:]...)
			return bw.win
		}
	}
	return domain.Window{}
}
