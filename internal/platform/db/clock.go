package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Clock reads the database server's transaction timestamp.
type Clock struct {
	pool *pgxpool.Pool
}

// NewClock returns a Clock backed by the pool.
func NewClock(pool *pgxpool.Pool) *Clock {
	return &Clock{pool: pool}
}

// CurrentServerTimestamp returns now() as seen by PostgreSQL, in UTC.
func (c *Clock) CurrentServerTimestamp(ctx context.Context) (time.Time, error) {
	var at time.Time
	if err := c.pool.QueryRow(ctx, `SELECT now()`).Scan(&at); err != nil {
		return time.Time{}, fmt.Errorf("platform/db: server timestamp: %w", err)
	}
	return at.UTC(), nil
}
