package ohlc

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mtlprog/stakingcalc/internal/domain"
)

// MemoryRepository is an in-memory Repository. The write lock is held for a whole
// replace, so readers never see a half-written series.
type MemoryRepository struct {
	mu     sync.RWMutex
	series map[string][]domain.PriceBar // ascending by day
}

// NewMemoryRepository creates an empty in-memory OHLC repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{series: make(map[string][]domain.PriceBar)}
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Upsert(_ context.Context, pair string, bars []domain.PriceBar) error {
	series := normalizeSeries(pair, bars)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.series[pair] = series
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, pair string, day time.Time) (domain.PriceBar, error) {
	day = domain.NormalizeDay(day)

	r.mu.RLock()
	defer r.mu.RUnlock()

	series := r.series[pair]
	i, found := slices.BinarySearchFunc(series, day, func(b domain.PriceBar, d time.Time) int {
		return b.Day.Compare(d)
	})
	if !found {
		return domain.PriceBar{}, fmt.Errorf("%s on %s: %w", pair, day.Format(domain.DateFormat), ErrNotFound)
	}
	return series[i], nil
}

func (r *MemoryRepository) List(_ context.Context, pair string) ([]domain.PriceBar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.series[pair]), nil
}

func (r *MemoryRepository) Pairs(_ context.Context) ([]domain.PairCoverage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.PairCoverage, 0, len(r.series))
	for pair, series := range r.series {
		if len(series) == 0 {
			continue
		}
		out = append(out, domain.PairCoverage{
			Pair:  pair,
			First: series[0].Day,
			Last:  series[len(series)-1].Day,
			Bars:  len(series),
		})
	}
	slices.SortFunc(out, func(a, b domain.PairCoverage) int { return strings.Compare(a.Pair, b.Pair) })
	return out, nil
}
