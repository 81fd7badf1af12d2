package floor

import (
	"sort"
	"sync"

	"restaurant-pos/internal/domain"
)

// Registry is the authoritative in-memory view of every table's occupancy
// state. All transitions are compare-and-swap: they check the current status
// under the table's own lock and either move it or report failure. Nothing
// else in the process writes table status.
type Registry struct {
	mu     sync.RWMutex
	tables map[domain.TableID]*tableEntry
}

type tableEntry struct {
	mu    sync.Mutex
	table domain.Table
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[domain.TableID]*tableEntry)}
}

// AddTable registers a table at floor setup. A new table starts free unless
// the caller supplies a status (restoring from persistence).
func (r *Registry) AddTable(t domain.Table) error {
	if t.Status == "" {
		t.Status = domain.TableFree
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[t.ID]; ok {
		return domain.ErrTableUnavailable
	}
	r.tables[t.ID] = &tableEntry{table: t}
	return nil
}

func (r *Registry) entry(id domain.TableID) (*tableEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tables[id]
	return e, ok
}

// cas moves the table from one of the given source states to the target. It
// returns the status the table held before the call and whether the
// transition happened.
func (r *Registry) cas(id domain.TableID, to domain.TableStatus, from ...domain.TableStatus) (domain.TableStatus, bool) {
	e, ok := r.entry(id)
	if !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.table.Status
	for _, f := range from {
		if prev == f {
			e.table.Status = to
			return prev, true
		}
	}
	return prev, false
}

// TryReserve claims a free table for a confirmed reservation.
func (r *Registry) TryReserve(id domain.TableID) bool {
	_, ok := r.cas(id, domain.TableReserved, domain.TableFree)
	return ok
}

// TryOccupy seats a walk-in on a free table.
func (r *Registry) TryOccupy(id domain.TableID) bool {
	_, ok := r.cas(id, domain.TableOccupied, domain.TableFree)
	return ok
}

// SeatReserved seats the guest a reservation was holding the table for. A
// free table is accepted too: a far-future booking does not keep the hold, so
// the table may have been released back to free in the meantime.
func (r *Registry) SeatReserved(id domain.TableID) bool {
	_, ok := r.cas(id, domain.TableOccupied, domain.TableReserved, domain.TableFree)
	return ok
}

// ReleaseToCleaning frees an occupied table into the cleaning state after
// settlement. The table is not bookable again until MarkCleaned.
func (r *Registry) ReleaseToCleaning(id domain.TableID) bool {
	_, ok := r.cas(id, domain.TableCleaning, domain.TableOccupied)
	return ok
}

// ReleaseToFree returns a table straight to free: a cancelled pending order
// (nothing was served) or a released reservation hold.
func (r *Registry) ReleaseToFree(id domain.TableID) bool {
	_, ok := r.cas(id, domain.TableFree, domain.TableOccupied, domain.TableReserved)
	return ok
}

// MarkCleaned is the housekeeping signal that the table is ready again.
func (r *Registry) MarkCleaned(id domain.TableID) bool {
	_, ok := r.cas(id, domain.TableFree, domain.TableCleaning)
	return ok
}

func (r *Registry) StatusOf(id domain.TableID) (domain.TableStatus, error) {
	e, ok := r.entry(id)
	if !ok {
		return "", domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Status, nil
}

// View returns a copy of the table including its current status.
func (r *Registry) View(id domain.TableID) (domain.Table, error) {
	e, ok := r.entry(id)
	if !ok {
		return domain.Table{}, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table, nil
}

// Snapshot returns every table sorted by ascending id.
func (r *Registry) Snapshot() []domain.Table {
	r.mu.RLock()
	entries := make([]*tableEntry, 0, len(r.tables))
	for _, e := range r.tables {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]domain.Table, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.table)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// restore puts a table back into a previous status unconditionally. Only used
// to roll back a transition after a failed write-through.
func (r *Registry) restore(id domain.TableID, st domain.TableStatus) {
	e, ok := r.entry(id)
	if !ok {
		return
	}
	e.mu.Lock()
	e.table.Status = st
	e.mu.Unlock()
}
