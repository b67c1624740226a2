package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/stockagg/internal/models"
)

// ObservationRepo archives raw price points fetched from the exchange.
type ObservationRepo struct {
	pool *pgxpool.Pool
}

func NewObservationRepo(pool *pgxpool.Pool) *ObservationRepo {
	return &ObservationRepo{pool: pool}
}

// Record inserts points for ticker in one batch. Points already archived
// for the same instant are skipped. Returns the number of new rows.
func (r *ObservationRepo) Record(ctx context.Context, ticker, source string, points []models.PricePoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(
			`INSERT INTO price_observations (ticker, price, observed_at, source)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (ticker, observed_at) DO NOTHING`,
			ticker, p.Price, p.LastUpdatedAt, source,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for range points {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("archive %s: %w", ticker, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// Since returns observations for ticker at or after since, oldest first.
func (r *ObservationRepo) Since(ctx context.Context, ticker string, since time.Time) ([]models.Observation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, ticker, price, observed_at, source, created_at
		 FROM price_observations
		 WHERE ticker = $1 AND observed_at >= $2
		 ORDER BY observed_at ASC`,
		ticker, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObservations(rows)
}

// Latest returns the most recent observation for ticker, or nil if none.
func (r *ObservationRepo) Latest(ctx context.Context, ticker string) (*models.Observation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, ticker, price, observed_at, source, created_at
		 FROM price_observations
		 WHERE ticker = $1
		 ORDER BY observed_at DESC LIMIT 1`,
		ticker,
	)
	o, err := scanObservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// PruneBefore deletes observations older than cutoff.
func (r *ObservationRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM price_observations WHERE observed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *ObservationRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanObservation(row scannable) (*models.Observation, error) {
	var o models.Observation
	if err := row.Scan(&o.ID, &o.Ticker, &o.Price, &o.ObservedAt, &o.Source, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectObservations(rows rowsIter) ([]models.Observation, error) {
	var out []models.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
