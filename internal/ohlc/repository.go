// Package ohlc stores daily price bars per trading pair and keeps them current.
package ohlc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/stakingcalc/internal/domain"
)

// ErrNotFound indicates that no bar exists for the exact (pair, day) key.
var ErrNotFound = errors.New("price bar not found")

// Repository defines persistent storage for OHLC bars keyed by (pair, day).
type Repository interface {
	// Upsert replaces the whole stored series for pair with bars, atomically.
	// When bars repeat a day, the last one for that day is kept.
	Upsert(ctx context.Context, pair string, bars []domain.PriceBar) error
	// Get returns the bar for the exact midnight-normalized day. There is no nearest-day fallback.
	Get(ctx context.Context, pair string, day time.Time) (domain.PriceBar, error)
	// List returns all bars for pair ordered by day ascending.
	List(ctx context.Context, pair string) ([]domain.PriceBar, error)
	// Pairs returns the coverage of every stored pair ordered by pair.
	Pairs(ctx context.Context) ([]domain.PairCoverage, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL OHLC repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

var _ Repository = (*PgRepository)(nil)

const insertBar = `INSERT INTO ohlc_bars (ticker, timestamp, open, high, low, close, vwap, volume, count)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (r *PgRepository) Upsert(ctx context.Context, pair string, bars []domain.PriceBar) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert for %s: %w", pair, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ohlc_bars WHERE ticker = $1`, pair); err != nil {
		return fmt.Errorf("clearing bars for %s: %w", pair, err)
	}

	batch := &pgx.Batch{}
	for _, b := range normalizeSeries(pair, bars) {
		batch.Queue(insertBar, pair, b.Day.Unix(),
			b.Open, b.High, b.Low, b.Close, b.VWAP, b.Volume, b.Count)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting bars for %s: %w", pair, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing bars for %s: %w", pair, err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, pair string, day time.Time) (domain.PriceBar, error) {
	day = domain.NormalizeDay(day)
	rows, err := r.pool.Query(ctx,
		`SELECT ticker, timestamp, open, high, low, close, vwap, volume, count
		 FROM ohlc_bars WHERE ticker = $1 AND timestamp = $2`, pair, day.Unix())
	if err != nil {
		return domain.PriceBar{}, fmt.Errorf("getting %s bar for %s: %w", pair, day.Format(domain.DateFormat), err)
	}

	bar, err := pgx.CollectExactlyOneRow(rows, scanBar)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PriceBar{}, fmt.Errorf("%s on %s: %w", pair, day.Format(domain.DateFormat), ErrNotFound)
		}
		return domain.PriceBar{}, fmt.Errorf("scanning %s bar: %w", pair, err)
	}
	return bar, nil
}

func (r *PgRepository) List(ctx context.Context, pair string) ([]domain.PriceBar, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ticker, timestamp, open, high, low, close, vwap, volume, count
		 FROM ohlc_bars WHERE ticker = $1 ORDER BY timestamp ASC`, pair)
	if err != nil {
		return nil, fmt.Errorf("listing bars for %s: %w", pair, err)
	}

	bars, err := pgx.CollectRows(rows, scanBar)
	if err != nil {
		return nil, fmt.Errorf("scanning bars for %s: %w", pair, err)
	}
	return bars, nil
}

func (r *PgRepository) Pairs(ctx context.Context) ([]domain.PairCoverage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ticker, MIN(timestamp), MAX(timestamp), COUNT(*)
		 FROM ohlc_bars GROUP BY ticker ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("listing stored pairs: %w", err)
	}
	defer rows.Close()

	var out []domain.PairCoverage
	for rows.Next() {
		var (
			c           domain.PairCoverage
			first, last int64
		)
		if err := rows.Scan(&c.Pair, &first, &last, &c.Bars); err != nil {
			return nil, fmt.Errorf("scanning pair coverage: %w", err)
		}
		c.First = domain.DayFromUnix(first)
		c.Last = domain.DayFromUnix(last)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pair coverage: %w", err)
	}
	return out, nil
}

// normalizeSeries stamps bars with pair, truncates them to midnight UTC and
// keeps one bar per day (the last given), ascending by day.
func normalizeSeries(pair string, bars []domain.PriceBar) []domain.PriceBar {
	byDay := make(map[int64]domain.PriceBar, len(bars))
	for _, b := range bars {
		b.Pair = pair
		b.Day = domain.NormalizeDay(b.Day)
		byDay[b.Day.Unix()] = b
	}

	series := make([]domain.PriceBar, 0, len(byDay))
	for _, b := range byDay {
		series = append(series, b)
	}
	slices.SortFunc(series, func(a, b domain.PriceBar) int { return a.Day.Compare(b.Day) })
	return series
}

func scanBar(row pgx.CollectableRow) (domain.PriceBar, error) {
	var (
		b  domain.PriceBar
		ts int64
	)
	err := row.Scan(&b.Pair, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.VWAP, &b.Volume, &b.Count)
	b.Day = domain.DayFromUnix(ts)
	return b, err
}
