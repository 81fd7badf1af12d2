package floor_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/floor"
	"restaurant-pos/pkg/metrics"
)

var errDown = errors.New("database unreachable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore records saves and can be switched into failure mode to exercise
// rollback paths.
type memStore struct {
	mu      sync.Mutex
	failing bool
	saves   []string
}

func (s *memStore) fail(on bool) {
	s.mu.Lock()
	s.failing = on
	s.mu.Unlock()
}

func (s *memStore) record(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errDown
	}
	s.saves = append(s.saves, kind)
	return nil
}

func (s *memStore) SaveOrder(context.Context, *domain.Order) error { return s.record("order") }
func (s *memStore) SaveTable(context.Context, domain.Table) error  { return s.record("table") }
func (s *memStore) SaveReservation(context.Context, *domain.Reservation) error {
	return s.record("reservation")
}

type stubCatalog struct {
	mu     sync.Mutex
	prices map[string]int64
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{prices: map[string]int64{
		"espresso":   300,
		"margherita": 1200,
		"house-red":  900,
	}}
}

func (c *stubCatalog) setPrice(itemID string, cents int64) {
	c.mu.Lock()
	c.prices[itemID] = cents
	c.mu.Unlock()
}

func (c *stubCatalog) PriceOf(_ context.Context, itemID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[itemID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return p, nil
}

type sinkEvents struct {
	mu   sync.Mutex
	keys []string
}

func (s *sinkEvents) Publish(_ context.Context, routingKey string, _ any) error {
	s.mu.Lock()
	s.keys = append(s.keys, routingKey)
	s.mu.Unlock()
	return nil
}

func (s *sinkEvents) published() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

func testTable(id domain.TableID, capacity int) domain.Table {
	return domain.Table{ID: id, Label: "T", Area: "main", Capacity: capacity, StoreID: 1}
}

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("service", "test")
}

type fixture struct {
	reg     *floor.Registry
	ledger  *floor.Ledger
	book    *floor.Book
	store   *memStore
	catalog *stubCatalog
	events  *sinkEvents
	clock   *fakeClock
	coord   *floor.Coordinator
}

func newFixture(tables ...domain.Table) *fixture {
	f := &fixture{
		reg:     floor.NewRegistry(),
		store:   &memStore{},
		catalog: newStubCatalog(),
		events:  &sinkEvents{},
		clock:   newFakeClock(),
	}
	for _, t := range tables {
		_ = f.reg.AddTable(t)
	}
	f.ledger = floor.NewLedger(f.reg, f.clock)
	f.book = floor.NewBook(f.reg, f.clock, floor.BookConfig{MaxAttempts: 3, Grace: 15 * time.Minute})
	f.coord = floor.NewCoordinator(f.reg, f.ledger, f.book, f.store, f.catalog, f.events,
		f.clock, discardLog(), metrics.NewFloor(prometheus.NewRegistry()))
	return f
}
