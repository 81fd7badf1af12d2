package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"restaurant-pos/internal/domain"
)

// Store is the Postgres write-through store consumed by the coordinator.
// Every save is transactional; order saves also append a status-log row.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) SaveOrder(ctx context.Context, o *domain.Order) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin order tx")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, table_id, customer_id, status, total_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET status = $4, total_cents = $5, updated_at = $7
	`, o.ID, o.TableID, o.CustomerID, o.Status, o.TotalCents, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "upsert order")
	}

	batch := &pgx.Batch{}
	for _, ln := range o.Lines {
		batch.Queue(`
			INSERT INTO order_lines (order_id, seq, item_id, name, quantity, unit_price_cents, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (order_id, seq) DO UPDATE SET status = $7
		`, o.ID, ln.Seq, ln.ItemID, ln.Name, ln.Quantity, ln.UnitPriceCents, ln.Status)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert order lines")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, 'coordinator', $3)
	`, o.ID, o.Status, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "insert order status log")
	}

	return errors.Wrap(tx.Commit(ctx), "commit order tx")
}

func (s *Store) SaveTable(ctx context.Context, t domain.Table) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tables (id, label, area, capacity, store_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = $6
	`, t.ID, t.Label, t.Area, t.Capacity, t.StoreID, t.Status)
	return errors.Wrap(err, "upsert table")
}

func (s *Store) SaveReservation(ctx context.Context, r *domain.Reservation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reservations
			(id, table_id, customer_id, party_size, window_start, window_seconds,
			 contact_name, contact_phone, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET table_id = $2, status = $10, updated_at = $12
	`, r.ID, r.TableID, r.CustomerID, r.PartySize, r.Window.Start, int64(r.Window.Duration.Seconds()),
		r.ContactName, r.ContactPhone, r.Notes, r.Status, r.CreatedAt, r.UpdatedAt)
	return errors.Wrap(err, "upsert reservation")
}

// LoadTables reads the floor plan for registry bootstrap.
func (s *Store) LoadTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, area, capacity, store_id, status
		FROM tables ORDER BY id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query tables")
	}
	defer rows.Close()

	var out []domain.Table
	for rows.Next() {
		var t domain.Table
		if err := rows.Scan(&t.ID, &t.Label, &t.Area, &t.Capacity, &t.StoreID, &t.Status); err != nil {
			return nil, errors.Wrap(err, "scan table")
		}
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "iterate tables")
}

// LoadOpenOrders reads non-terminal orders with their lines for ledger
// bootstrap.
func (s *Store) LoadOpenOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, table_id, customer_id, status, total_cents, created_at, updated_at
		FROM orders
		WHERE status IN ('pending', 'in_progress', 'completed')
		ORDER BY id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query open orders")
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.TableID, &o.CustomerID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orders")
	}

	for i := range out {
		lines, err := s.loadLines(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Lines = lines
	}
	return out, nil
}

func (s *Store) loadLines(ctx context.Context, orderID domain.OrderID) ([]domain.OrderLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, item_id, name, quantity, unit_price_cents, status
		FROM order_lines WHERE order_id = $1 ORDER BY seq
	`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "query order lines")
	}
	defer rows.Close()

	var out []domain.OrderLine
	for rows.Next() {
		var ln domain.OrderLine
		if err := rows.Scan(&ln.Seq, &ln.ItemID, &ln.Name, &ln.Quantity, &ln.UnitPriceCents, &ln.Status); err != nil {
			return nil, errors.Wrap(err, "scan order line")
		}
		out = append(out, ln)
	}
	return out, errors.Wrap(rows.Err(), "iterate order lines")
}

// LoadActiveReservations reads requested and confirmed reservations for book
// bootstrap.
func (s *Store) LoadActiveReservations(ctx context.Context) ([]domain.Reservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, table_id, customer_id, party_size, window_start, window_seconds,
		       contact_name, contact_phone, notes, status, created_at, updated_at
		FROM reservations
		WHERE status IN ('requested', 'confirmed')
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query reservations")
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var (
			r       domain.Reservation
			seconds int64
		)
		if err := rows.Scan(&r.ID, &r.TableID, &r.CustomerID, &r.PartySize, &r.Window.Start, &seconds,
			&r.ContactName, &r.ContactPhone, &r.Notes, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan reservation")
		}
		r.Window.Duration = time.Duration(seconds) * time.Second
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate reservations")
}
