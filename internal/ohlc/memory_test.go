package ohlc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/stakingcalc/internal/domain"
)

func day(s string) time.Time {
	d, err := domain.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func bar(d string, closePrice string) domain.PriceBar {
	c := decimal.RequireFromString(closePrice)
	return domain.PriceBar{Day: day(d), Open: c, High: c, Low: c, Close: c, VWAP: c, Volume: decimal.NewFromInt(1), Count: 1}
}

func TestMemoryGetExactDay(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Upsert(ctx, "ETH2EUR", []domain.PriceBar{bar("2023-01-05", "2000"), bar("2023-01-04", "1900")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.Get(ctx, "ETH2EUR", time.Date(2023, 1, 5, 17, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Day.Equal(day("2023-01-05")) {
		t.Errorf("Day = %v, want midnight 2023-01-05", got.Day)
	}
	if got.Pair != "ETH2EUR" {
		t.Errorf("Pair = %q, want ETH2EUR", got.Pair)
	}
	if !got.Close.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Close = %s, want 2000", got.Close)
	}
}

func TestMemoryGetMissingDayHasNoFallback(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Upsert(ctx, "ETH2EUR", []domain.PriceBar{bar("2023-01-04", "1900"), bar("2023-01-06", "2100")})

	_, err := repo.Get(ctx, "ETH2EUR", day("2023-01-05"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = repo.Get(ctx, "DOTEUR", day("2023-01-04"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown pair, got %v", err)
	}
}

func TestMemoryUpsertReplacesSeries(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_ = repo.Upsert(ctx, "ETH2EUR", []domain.PriceBar{bar("2023-01-01", "1000"), bar("2023-01-02", "1100")})
	_ = repo.Upsert(ctx, "ETH2EUR", []domain.PriceBar{bar("2023-01-02", "1150"), bar("2023-01-03", "1200")})

	bars, _ := repo.List(ctx, "ETH2EUR")
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2 after replace", len(bars))
	}
	if !bars[0].Day.Equal(day("2023-01-02")) || !bars[0].Close.Equal(decimal.NewFromInt(1150)) {
		t.Errorf("first bar = %+v, want 2023-01-02 @ 1150", bars[0])
	}
	if _, err := repo.Get(ctx, "ETH2EUR", day("2023-01-01")); !errors.Is(err, ErrNotFound) {
		t.Errorf("replaced day still present: %v", err)
	}
}

func TestMemoryPairs(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Upsert(ctx, "DOTEUR", []domain.PriceBar{bar("2023-02-01", "5"), bar("2023-02-03", "6")})
	_ = repo.Upsert(ctx, "ADAEUR", []domain.PriceBar{bar("2023-01-10", "0.3")})
	_ = repo.Upsert(ctx, "EMPTY", nil)

	pairs, err := repo.Pairs(ctx)
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(pairs))
	}
	if pairs[0].Pair != "ADAEUR" || pairs[1].Pair != "DOTEUR" {
		t.Errorf("pairs order = %s, %s", pairs[0].Pair, pairs[1].Pair)
	}
	if pairs[1].Bars != 2 || !pairs[1].First.Equal(day("2023-02-01")) || !pairs[1].Last.Equal(day("2023-02-03")) {
		t.Errorf("DOTEUR coverage = %+v", pairs[1])
	}
}

func TestMemoryUpsertDuplicateDayKeepsLast(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	dup := []domain.PriceBar{bar("2023-01-06", "10"), bar("2023-01-05", "1"), bar("2023-01-05", "2")}
	if err := repo.Upsert(ctx, "DOTEUR", dup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bars, _ := repo.List(ctx, "DOTEUR")
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if !bars[0].Day.Equal(day("2023-01-05")) || !bars[0].Close.Equal(decimal.NewFromInt(2)) {
		t.Errorf("first bar = %+v, want 2023-01-05 close 2", bars[0])
	}
}
