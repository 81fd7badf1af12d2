package floor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/domain"
)

func TestCoordinatorOpenOrderSnapshotsPrices(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()

	resp, err := f.coord.OpenOrder(ctx, domain.OpenOrderRequest{
		TableID: 1,
		Lines:   []domain.LineInput{{ItemID: "espresso", Name: "Espresso", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(600), resp.TotalCents)

	// A later menu price change must not touch the captured line.
	f.catalog.setPrice("espresso", 999)

	order, err := f.coord.GetOrder(resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), order.Lines[0].UnitPriceCents)
	assert.Equal(t, int64(600), order.TotalCents)

	t.Run("new lines use the current price", func(t *testing.T) {
		updated, err := f.coord.ContinueOrder(ctx, resp.OrderID, []domain.LineInput{{ItemID: "espresso", Quantity: 1}})
		require.NoError(t, err)
		assert.Equal(t, int64(999), updated.Lines[1].UnitPriceCents)
		assert.Equal(t, int64(1599), updated.TotalCents)
	})
}

func TestCoordinatorOpenOrderValidation(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()

	t.Run("unknown item", func(t *testing.T) {
		_, err := f.coord.OpenOrder(ctx, domain.OpenOrderRequest{
			TableID: 1,
			Lines:   []domain.LineInput{{ItemID: "unicorn-steak", Quantity: 1}},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("zero quantity", func(t *testing.T) {
		_, err := f.coord.OpenOrder(ctx, domain.OpenOrderRequest{
			TableID: 1,
			Lines:   []domain.LineInput{{ItemID: "espresso", Quantity: 0}},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableFree, st, "rejected requests leave the table untouched")
}

func TestCoordinatorOpenOrderPersistenceRollback(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()
	f.store.fail(true)

	_, err := f.coord.OpenOrder(ctx, domain.OpenOrderRequest{TableID: 1})
	require.ErrorIs(t, err, domain.ErrPersistence)

	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableFree, st)
	assert.Empty(t, f.coord.ListOrders(domain.OrderFilter{}))
	assert.Empty(t, f.events.published(), "nothing committed, nothing announced")

	t.Run("retry succeeds once storage is back", func(t *testing.T) {
		f.store.fail(false)
		_, err := f.coord.OpenOrder(ctx, domain.OpenOrderRequest{TableID: 1})
		assert.NoError(t, err)
	})
}

func TestCoordinatorSettlePersistenceRollback(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()

	resp, err := f.coord.OpenOrder(ctx, domain.OpenOrderRequest{TableID: 1})
	require.NoError(t, err)

	f.store.fail(true)
	_, err = f.coord.SettleOrder(ctx, resp.OrderID)
	require.ErrorIs(t, err, domain.ErrPersistence)

	order, err := f.coord.GetOrder(resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, order.Status)
	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableOccupied, st)
}

func TestCoordinatorSettleLifecycle(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()

	resp, err := f.coord.OpenOrder(ctx, domain.OpenOrderRequest{
		TableID: 1,
		Lines:   []domain.LineInput{{ItemID: "margherita", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.coord.CompleteOrder(ctx, resp.OrderID)
	require.NoError(t, err)

	settled, err := f.coord.SettleOrder(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSettled, settled.Status)

	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableCleaning, st)

	_, err = f.coord.SettleOrder(ctx, resp.OrderID)
	assert.ErrorIs(t, err, domain.ErrOrderAlreadySettled)

	require.NoError(t, f.coord.MarkTableCleaned(ctx, 1))
	st, _ = f.reg.StatusOf(1)
	assert.Equal(t, domain.TableFree, st)

	assert.Equal(t, []string{
		domain.EventOrderOpened,
		domain.EventOrderCompleted,
		domain.EventOrderSettled,
		domain.EventTableCleaned,
	}, f.events.published())
}

func TestCoordinatorCancelOrder(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()

	resp, err := f.coord.OpenOrder(ctx, domain.OpenOrderRequest{TableID: 1})
	require.NoError(t, err)

	cancelled, err := f.coord.CancelOrder(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, cancelled.Status)

	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableFree, st)
}

func TestCoordinatorConcurrentOpenSingleWinner(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()

	const callers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.coord.OpenOrder(ctx, domain.OpenOrderRequest{TableID: 1}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Len(t, f.coord.ListOrders(domain.OrderFilter{}), 1)
}

func TestCoordinatorOpenOrUpdateOrder(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()

	first, err := f.coord.OpenOrUpdateOrder(ctx, domain.OpenOrderRequest{
		TableID: 1,
		Lines:   []domain.LineInput{{ItemID: "espresso", Quantity: 1}},
	})
	require.NoError(t, err)

	second, err := f.coord.OpenOrUpdateOrder(ctx, domain.OpenOrderRequest{
		TableID: 1,
		Lines:   []domain.LineInput{{ItemID: "house-red", Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID, "occupied table extends its order instead of opening a second one")
	assert.Equal(t, int64(1200), second.TotalCents)
	assert.Len(t, f.coord.ListOrders(domain.OrderFilter{}), 1)
}

func TestCoordinatorReservationSeatFlow(t *testing.T) {
	f := newFixture(testTable(1, 2), testTable(2, 4))
	ctx := context.Background()

	resResp, err := f.coord.RequestReservation(ctx, domain.RequestReservationRequest{
		PartySize:    3,
		ContactName:  "Ada",
		Start:        f.clock.Now().Add(time.Hour),
		DurationMins: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TableID(2), resResp.TableID)
	assert.Equal(t, domain.ReservationConfirmed, resResp.Status)

	orderResp, err := f.coord.SeatReservation(ctx, resResp.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.TableID(2), orderResp.TableID)
	assert.Equal(t, domain.OrderPending, orderResp.Status)

	st, _ := f.reg.StatusOf(2)
	assert.Equal(t, domain.TableOccupied, st)

	res, err := f.coord.GetReservation(resResp.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationSeated, res.Status)

	assert.Equal(t, []string{
		domain.EventReservationConfirmed,
		domain.EventReservationSeated,
		domain.EventOrderOpened,
	}, f.events.published())
}

func TestCoordinatorSeatReservationRollback(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()

	resResp, err := f.coord.RequestReservation(ctx, domain.RequestReservationRequest{
		PartySize:    2,
		ContactName:  "Ada",
		Start:        f.clock.Now().Add(time.Hour),
		DurationMins: 90,
	})
	require.NoError(t, err)

	f.store.fail(true)
	_, err = f.coord.SeatReservation(ctx, resResp.ReservationID)
	require.ErrorIs(t, err, domain.ErrPersistence)

	res, err := f.coord.GetReservation(resResp.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, res.Status, "failed seating leaves the booking claimable")
	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableReserved, st)
	assert.Empty(t, f.coord.ListOrders(domain.OrderFilter{}))

	t.Run("seating works after storage recovers", func(t *testing.T) {
		f.store.fail(false)
		_, err := f.coord.SeatReservation(ctx, resResp.ReservationID)
		assert.NoError(t, err)
	})
}

func TestCoordinatorReservationRollbackAfterConcurrentSeat(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()

	// Booking A is confirmed but holds no registry claim: its far-future hold
	// was released, as after a restart or a holdStillNeeded release.
	a := domain.Reservation{
		ID:          domain.ReservationID(mustUUID("6d1f7a52-0b3e-4f8c-9c2d-1e5a7b9c3d0f")),
		TableID:     1,
		PartySize:   2,
		ContactName: "Ada",
		Status:      domain.ReservationConfirmed,
		Window:      domain.Window{Start: f.clock.Now().Add(3 * time.Hour), Duration: time.Hour},
	}
	f.book.Restore(a)

	// A competing request claims the free table...
	resC, undoC, err := f.book.Request(reservationAt(f, 2, 30*time.Minute, 60))
	require.NoError(t, err)
	require.Equal(t, domain.TableID(1), resC.TableID)

	// ...and while its save is still in flight, A's guest arrives and is
	// seated on the reserved table.
	seatResp, err := f.coord.SeatReservation(ctx, a.ID)
	require.NoError(t, err)

	// The competing save fails and its rollback runs.
	undoC()

	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableOccupied, st, "rollback must not free a seated table")

	// The seated order is still settleable.
	settled, err := f.coord.SettleOrder(ctx, seatResp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSettled, settled.Status)
	st, _ = f.reg.StatusOf(1)
	assert.Equal(t, domain.TableCleaning, st)
}

func TestCoordinatorCancelReservation(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()

	resResp, err := f.coord.RequestReservation(ctx, domain.RequestReservationRequest{
		PartySize:    2,
		ContactName:  "Ada",
		Start:        f.clock.Now().Add(2 * time.Hour),
		DurationMins: 90,
	})
	require.NoError(t, err)

	require.NoError(t, f.coord.CancelReservation(ctx, resResp.ReservationID))

	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableFree, st)

	err = f.coord.CancelReservation(ctx, resResp.ReservationID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCoordinatorExpireReservations(t *testing.T) {
	f := newFixture(testTable(1, 4), testTable(2, 4))
	ctx := context.Background()

	early, err := f.coord.RequestReservation(ctx, domain.RequestReservationRequest{
		PartySize:    2,
		ContactName:  "Ada",
		Start:        f.clock.Now().Add(time.Hour),
		DurationMins: 60,
	})
	require.NoError(t, err)
	_, err = f.coord.RequestReservation(ctx, domain.RequestReservationRequest{
		PartySize:    2,
		ContactName:  "Grace",
		Start:        f.clock.Now().Add(6 * time.Hour),
		DurationMins: 60,
	})
	require.NoError(t, err)

	// Past the first booking's grace period, well before the second's start.
	f.clock.Advance(time.Hour + 20*time.Minute)

	n, err := f.coord.ExpireReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := f.coord.GetReservation(early.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationExpired, res.Status)

	st, _ := f.reg.StatusOf(early.TableID)
	assert.Equal(t, domain.TableFree, st)
}

func TestCoordinatorMarkTableCleanedErrors(t *testing.T) {
	f := newFixture(testTable(1, 4))
	ctx := context.Background()

	err := f.coord.MarkTableCleaned(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.coord.MarkTableCleaned(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrTableUnavailable, "a free table has nothing to clean")
}
