package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/stakingcalc/internal/api"
	"github.com/mtlprog/stakingcalc/internal/config"
	"github.com/mtlprog/stakingcalc/internal/domain"
	"github.com/mtlprog/stakingcalc/internal/export"
	"github.com/mtlprog/stakingcalc/internal/ledger"
	"github.com/mtlprog/stakingcalc/internal/report"
)

func fiatFlag(cfg *config.Config) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "fiat",
		Usage: "quote currency (EUR or USD)",
		Value: string(cfg.DefaultFiat),
	}
}

func ledgerFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "ledger",
		Aliases:  []string{"l"},
		Usage:    "ledger export file (.csv or .xlsx)",
		Required: true,
	}
}

func serveCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "HTTP port", Value: cfg.HTTPPort},
		},
		Action: func(c *cli.Context) error {
			svc, err := connect(c, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			if cfg.AdminAPIKey == "" {
				slog.Warn("ADMIN_API_KEY not set, price refresh endpoint is unprotected")
			}

			handler := api.NewHandler(svc.generator, svc.cache, cfg.DefaultFiat)
			srv := api.NewServer(c.String("port"), handler, cfg.AdminAPIKey)

			ctx, stop := context.WithCancel(c.Context)
			defer stop()

			go func() {
				log.Printf("HTTP server listening on :%s", c.String("port"))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Printf("HTTP server error: %v", err)
					stop()
				}
			}()

			<-ctx.Done()
			log.Println("Shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
			}

			log.Println("Shutdown complete")
			return nil
		},
	}
}

func migrateCommand(_ *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply database migrations and exit",
		Action: func(c *cli.Context) error {
			pool, err := openDatabase(c.Context, c.String("database-url"))
			if err != nil {
				return err
			}
			pool.Close()
			return nil
		},
	}
}

func refreshCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "update stored daily prices for the reward assets of a ledger",
		Flags: []cli.Flag{ledgerFlag(), fiatFlag(cfg)},
		Action: func(c *cli.Context) error {
			fiat, err := domain.ParseFiat(c.String("fiat"))
			if err != nil {
				return err
			}
			table, err := ledger.ReadFile(c.String("ledger"))
			if err != nil {
				return err
			}
			matrix, err := ledger.Normalize(table)
			if err != nil {
				return fmt.Errorf("normalizing ledger: %w", err)
			}

			svc, err := connect(c, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.generator.RefreshFor(c.Context, matrix, fiat)
			if err != nil {
				return err
			}

			for _, pair := range result.Updated {
				fmt.Fprintf(c.App.Writer, "updated %s\n", pair)
			}
			for _, f := range result.Failed {
				fmt.Fprintf(c.App.Writer, "failed  %s: %v\n", f.Pair, f.Err)
			}
			return result.Err()
		},
	}
}

func reportCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "value the staking rewards of a ledger",
		Flags: []cli.Flag{
			ledgerFlag(),
			fiatFlag(cfg),
			&cli.StringFlag{Name: "from", Usage: "first reward day to include (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "to", Usage: "first reward day to exclude (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "xlsx", Usage: "also write the report to this Excel file"},
			&cli.BoolFlag{Name: "sheets", Usage: "also write the report to the configured Google Sheet"},
		},
		Action: func(c *cli.Context) error {
			opts, err := reportOptions(c)
			if err != nil {
				return err
			}
			table, err := ledger.ReadFile(c.String("ledger"))
			if err != nil {
				return err
			}

			svc, err := connect(c, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			rep, err := svc.generator.Generate(c.Context, table, opts)
			if err != nil {
				return err
			}

			writers, err := reportWriters(c, cfg)
			if err != nil {
				return err
			}
			if len(writers) > 0 {
				if err := export.NewService(writers...).Export(c.Context, rep); err != nil {
					return fmt.Errorf("exporting report: %w", err)
				}
			}

			return printSummaries(c, rep)
		},
	}
}

func pricesCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "prices",
		Usage: "list stored daily bars of a pair, or the stored pairs when none is given",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pair", Usage: "trading pair, e.g. ETH2EUR"},
		},
		Action: func(c *cli.Context) error {
			svc, err := connect(c, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			repo := svc.cache.Repository()
			if symbol := c.String("pair"); symbol != "" {
				pair, err := domain.PairFromSymbol(symbol)
				if err != nil {
					return err
				}
				bars, err := repo.List(c.Context, pair.Symbol)
				if err != nil {
					return err
				}
				return printJSON(c, bars)
			}

			pairs, err := repo.Pairs(c.Context)
			if err != nil {
				return err
			}
			return printJSON(c, pairs)
		},
	}
}

func ledgerCommand() *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "validate a ledger export and print its typed rows",
		Flags: []cli.Flag{ledgerFlag()},
		Action: func(c *cli.Context) error {
			table, err := ledger.ReadFile(c.String("ledger"))
			if err != nil {
				return err
			}
			rows, err := ledger.ParseRows(table)
			if err != nil {
				return err
			}
			return printJSON(c, rows)
		},
	}
}

func reportOptions(c *cli.Context) (report.Options, error) {
	fiat, err := domain.ParseFiat(c.String("fiat"))
	if err != nil {
		return report.Options{}, err
	}
	opts := report.Options{Fiat: fiat}

	if s := c.String("from"); s != "" {
		if opts.From, err = domain.ParseDay(s); err != nil {
			return report.Options{}, err
		}
	}
	if s := c.String("to"); s != "" {
		if opts.To, err = domain.ParseDay(s); err != nil {
			return report.Options{}, err
		}
	}
	return opts, nil
}

func reportWriters(c *cli.Context, cfg *config.Config) ([]export.Writer, error) {
	var writers []export.Writer
	if path := c.String("xlsx"); path != "" {
		writers = append(writers, export.NewXLSXWriter(path))
	}
	if c.Bool("sheets") {
		if !cfg.SheetsEnabled() {
			return nil, errors.New("--sheets needs GOOGLE_SHEETS_ID and GOOGLE_CREDENTIALS_JSON")
		}
		sw, err := export.NewSheetsWriter(c.Context, cfg.GoogleSheetsID, cfg.GoogleCredentialsJSON)
		if err != nil {
			return nil, err
		}
		writers = append(writers, sw)
	}
	return writers, nil
}

type summaryLine struct {
	domain.AssetSummary
	Held string `json:"held"`
	Sold string `json:"soldOnReceipt"`
}

func printSummaries(c *cli.Context, rep report.Report) error {
	lines := make([]summaryLine, 0, len(rep.Summaries))
	for _, s := range rep.Summaries {
		lines = append(lines, summaryLine{
			AssetSummary: s,
			Held:         domain.FormatFiat(s.LatestHeldValue, rep.Fiat),
			Sold:         domain.FormatFiat(s.LatestSoldValue, rep.Fiat),
		})
	}
	return printJSON(c, lines)
}

func printJSON(c *cli.Context, v any) error {
	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
