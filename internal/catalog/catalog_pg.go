package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"restaurant-pos/internal/domain"
)

// PG resolves current menu prices from the menu_items table. The price is
// only consulted when a line is appended; the caller snapshots it.
type PG struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

func (c *PG) PriceOf(ctx context.Context, itemID string) (int64, error) {
	var cents int64
	err := c.pool.QueryRow(ctx, `
		SELECT price_cents FROM menu_items WHERE id = $1 AND available
	`, itemID).Scan(&cents)
	if err == pgx.ErrNoRows {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, pkgerrors.Wrap(err, "query menu price")
	}
	return cents, nil
}
