package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/stakingcalc/internal/config"
	"github.com/mtlprog/stakingcalc/internal/database"
	"github.com/mtlprog/stakingcalc/internal/kraken"
	"github.com/mtlprog/stakingcalc/internal/ohlc"
	"github.com/mtlprog/stakingcalc/internal/report"
	"github.com/mtlprog/stakingcalc/internal/valuation"
)

// services holds the wired components shared by all commands.
type services struct {
	pool      *pgxpool.Pool
	cache     *ohlc.Service
	generator *report.Generator
}

func (s *services) Close() {
	s.pool.Close()
}

// connect opens the database, applies migrations and wires the services.
func connect(c *cli.Context, cfg *config.Config) (*services, error) {
	pool, err := openDatabase(c.Context, c.String("database-url"))
	if err != nil {
		return nil, err
	}

	client := kraken.NewClient(cfg.KrakenURL, cfg.KrakenTimeout, cfg.KrakenRateLimit, cfg.KrakenRetryMax, cfg.KrakenRetryBaseDelay)
	repo := ohlc.NewPgRepository(pool)
	cache := ohlc.NewService(client, repo)
	generator := report.NewGenerator(cache, valuation.NewService(repo), cfg.FetchBuffer)

	return &services{pool: pool, cache: cache, generator: generator}, nil
}

func openDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return pool, nil
}
