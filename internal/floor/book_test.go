package floor_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/floor"
)

func reservationAt(f *fixture, partySize int, startIn time.Duration, mins int) domain.RequestReservationRequest {
	return domain.RequestReservationRequest{
		CustomerID:   "cust-1",
		PartySize:    partySize,
		ContactName:  "Ada",
		ContactPhone: "+1-555-0100",
		Start:        f.clock.Now().Add(startIn),
		DurationMins: mins,
	}
}

func TestBookRequestPicksLowestFittingTable(t *testing.T) {
	f := newFixture(testTable(1, 2), testTable(2, 4), testTable(3, 6))

	res, _, err := f.book.Request(reservationAt(f, 4, time.Hour, 90))
	require.NoError(t, err)
	assert.Equal(t, domain.TableID(2), res.TableID, "smallest id among fitting tables wins")
	assert.Equal(t, domain.ReservationConfirmed, res.Status)

	st, _ := f.reg.StatusOf(2)
	assert.Equal(t, domain.TableReserved, st)
	st, _ = f.reg.StatusOf(1)
	assert.Equal(t, domain.TableFree, st)
}

func TestBookRequestNoCapacity(t *testing.T) {
	f := newFixture(testTable(1, 2))

	_, _, err := f.book.Request(reservationAt(f, 6, time.Hour, 90))
	assert.ErrorIs(t, err, domain.ErrNoCapacity)
}

func TestBookRequestOverlapRejected(t *testing.T) {
	f := newFixture(testTable(1, 4))

	_, _, err := f.book.Request(reservationAt(f, 2, time.Hour, 90))
	require.NoError(t, err)

	// Starts inside the first window on the only table.
	_, _, err = f.book.Request(reservationAt(f, 2, time.Hour+30*time.Minute, 60))
	assert.ErrorIs(t, err, domain.ErrNoCapacity)
}

func TestBookBackToBackWindowsBothConfirm(t *testing.T) {
	f := newFixture(testTable(1, 4))

	first, _, err := f.book.Request(reservationAt(f, 2, time.Hour, 90))
	require.NoError(t, err)

	// Second window begins exactly when the first ends. Half-open windows do
	// not overlap, so the same table hosts both.
	second, _, err := f.book.Request(reservationAt(f, 2, time.Hour+90*time.Minute, 60))
	require.NoError(t, err)

	assert.Equal(t, first.TableID, second.TableID)
	assert.Equal(t, domain.ReservationConfirmed, second.Status)
}

func TestBookRequestSkipsOccupiedTable(t *testing.T) {
	f := newFixture(testTable(1, 4), testTable(2, 4))
	require.True(t, f.reg.TryOccupy(1))

	res, _, err := f.book.Request(reservationAt(f, 2, time.Hour, 90))
	require.NoError(t, err)
	assert.Equal(t, domain.TableID(2), res.TableID)
}

func TestBookRequestAllCandidatesBusy(t *testing.T) {
	f := newFixture(testTable(1, 4), testTable(2, 4))
	require.True(t, f.reg.TryOccupy(1))
	require.True(t, f.reg.TryOccupy(2))

	_, _, err := f.book.Request(reservationAt(f, 2, time.Hour, 90))
	assert.ErrorIs(t, err, domain.ErrAssignmentConflict)
}

func TestBookRequestUndo(t *testing.T) {
	f := newFixture(testTable(1, 4))

	res, undo, err := f.book.Request(reservationAt(f, 2, time.Hour, 90))
	require.NoError(t, err)
	undo()

	_, err = f.book.Get(res.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableFree, st)

	// The window is gone too: the slot is takeable again.
	again, _, err := f.book.Request(reservationAt(f, 2, time.Hour, 90))
	require.NoError(t, err)
	assert.Equal(t, domain.TableID(1), again.TableID)
}

func TestBookRequestUndoSkipsSeatedTable(t *testing.T) {
	f := newFixture(testTable(1, 4))

	res, undo, err := f.book.Request(reservationAt(f, 2, time.Hour, 90))
	require.NoError(t, err)

	// Another booking's guest is seated on the claimed table before the
	// rollback runs. The undo must not free an occupied table.
	require.True(t, f.reg.SeatReserved(1))
	undo()

	_, err = f.book.Get(res.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableOccupied, st)
}

func TestBookCancelUndoSkipsReclaimedTable(t *testing.T) {
	f := newFixture(testTable(1, 4))
	res, _, err := f.book.Request(reservationAt(f, 2, 2*time.Hour, 90))
	require.NoError(t, err)

	_, released, undo, err := f.book.Cancel(res.ID)
	require.NoError(t, err)
	require.True(t, released)

	// A walk-in takes the freed table before the rollback runs.
	require.True(t, f.reg.TryOccupy(1))
	undo()

	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableOccupied, st, "undo must not re-assert the hold over a seated walk-in")
}

func TestBookSeat(t *testing.T) {
	f := newFixture(testTable(1, 4))
	res, _, err := f.book.Request(reservationAt(f, 2, time.Hour, 90))
	require.NoError(t, err)

	seated, _, err := f.book.Seat(res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationSeated, seated.Status)

	t.Run("seating twice fails", func(t *testing.T) {
		_, _, err := f.book.Seat(res.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadySeated)
	})
}

func TestBookCancelReleasesHold(t *testing.T) {
	f := newFixture(testTable(1, 4))
	res, _, err := f.book.Request(reservationAt(f, 2, 2*time.Hour, 90))
	require.NoError(t, err)

	cancelled, released, _, err := f.book.Cancel(res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, cancelled.Status)
	assert.True(t, released)

	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableFree, st)
}

func TestBookCancelKeepsHoldForImminentBooking(t *testing.T) {
	f := newFixture(testTable(1, 4))
	// One booking far out, one starting within the grace horizon.
	far, _, err := f.book.Request(reservationAt(f, 2, 3*time.Hour, 60))
	require.NoError(t, err)
	_, _, err = f.book.Request(reservationAt(f, 2, 10*time.Minute, 60))
	require.NoError(t, err)

	_, released, _, err := f.book.Cancel(far.ID)
	require.NoError(t, err)
	assert.False(t, released, "the imminent booking still needs the hold")

	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableReserved, st)
}

func TestBookCancelUndo(t *testing.T) {
	f := newFixture(testTable(1, 4))
	res, _, err := f.book.Request(reservationAt(f, 2, 2*time.Hour, 90))
	require.NoError(t, err)

	_, _, undo, err := f.book.Cancel(res.ID)
	require.NoError(t, err)
	undo()

	got, err := f.book.Get(res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, got.Status)
	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableReserved, st)
}

func TestBookExpiry(t *testing.T) {
	f := newFixture(testTable(1, 4))
	res, _, err := f.book.Request(reservationAt(f, 2, time.Hour, 90))
	require.NoError(t, err)

	assert.Empty(t, f.book.DueForExpiry(), "not due before start plus grace")

	f.clock.Advance(time.Hour + 14*time.Minute)
	assert.Empty(t, f.book.DueForExpiry(), "still inside the grace period")

	f.clock.Advance(2 * time.Minute)
	due := f.book.DueForExpiry()
	require.Len(t, due, 1)
	assert.Equal(t, res.ID, due[0])

	expired, released, _, err := f.book.Expire(res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationExpired, expired.Status)
	assert.True(t, released)

	st, _ := f.reg.StatusOf(1)
	assert.Equal(t, domain.TableFree, st)
}

func TestBookExpireNotYetDue(t *testing.T) {
	f := newFixture(testTable(1, 4))
	res, _, err := f.book.Request(reservationAt(f, 2, time.Hour, 90))
	require.NoError(t, err)

	_, _, _, err = f.book.Expire(res.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookConcurrentRequestsOneTable(t *testing.T) {
	f := newFixture(testTable(1, 4))

	const callers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.book.Request(reservationAt(f, 2, time.Hour, 90))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Len(t, errs, callers-1)
	for _, err := range errs {
		if !errors.Is(err, domain.ErrNoCapacity) && !errors.Is(err, domain.ErrAssignmentConflict) {
			t.Errorf("loser must fail with no-capacity or assignment-conflict, got %v", err)
		}
	}
}

func TestBookCustomPolicy(t *testing.T) {
	// Largest table first, the opposite of the default.
	policy := func(tables []domain.Table, committed map[domain.TableID][]domain.Window, partySize int, win domain.Window) []domain.TableID {
		var out []domain.TableID
		for i := len(tables) - 1; i >= 0; i-- {
			if tables[i].Capacity >= partySize {
				out = append(out, tables[i].ID)
			}
		}
		return out
	}

	reg := floor.NewRegistry()
	require.NoError(t, reg.AddTable(testTable(1, 4)))
	require.NoError(t, reg.AddTable(testTable(2, 6)))
	clock := newFakeClock()
	book := floor.NewBook(reg, clock, floor.BookConfig{Policy: policy, MaxAttempts: 3, Grace: 15 * time.Minute})

	res, _, err := book.Request(domain.RequestReservationRequest{
		PartySize:    2,
		ContactName:  "Ada",
		Start:        clock.Now().Add(time.Hour),
		DurationMins: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TableID(2), res.TableID)
}

func TestBookRestoreRecommitsWindow(t *testing.T) {
	f := newFixture(testTable(1, 4))
	require.True(t, f.reg.TryReserve(1))

	f.book.Restore(domain.Reservation{
		ID:      domain.ReservationID(mustUUID("3f1c2a04-8a21-4c1e-9a51-6a1f2b3c4d5e")),
		TableID: 1,
		Status:  domain.ReservationConfirmed,
		Window:  domain.Window{Start: f.clock.Now().Add(time.Hour), Duration: 90 * time.Minute},
	})

	// The restored window blocks an overlapping request on the only table.
	_, _, err := f.book.Request(reservationAt(f, 2, time.Hour+10*time.Minute, 30))
	assert.ErrorIs(t, err, domain.ErrNoCapacity)
}
