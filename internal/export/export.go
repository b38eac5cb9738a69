// Package export writes generated reports to spreadsheet destinations.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/stakingcalc/internal/domain"
	"github.com/mtlprog/stakingcalc/internal/report"
)

// Sheet names shared by every destination.
const (
	SheetRewards     = "Rewards"
	SheetAccumulated = "Accumulated"
	SheetSummary     = "Summary"
)

// Writer writes a report to a spreadsheet destination.
type Writer interface {
	Write(ctx context.Context, rep report.Report) error
}

// Service fans a report out to every configured writer.
type Service struct {
	writers []Writer
}

// NewService creates a new export Service.
func NewService(writers ...Writer) *Service {
	return &Service{writers: writers}
}

// Export writes the report to all writers. A failing writer does not stop the others.
func (s *Service) Export(ctx context.Context, rep report.Report) error {
	var errs []error
	for i, w := range s.writers {
		if err := w.Write(ctx, rep); err != nil {
			slog.Warn("export: writer failed", "writer", fmt.Sprintf("%T", w), "error", err)
			errs = append(errs, fmt.Errorf("writer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// sheetData is the content of one named sheet.
type sheetData struct {
	name   string
	values [][]any
}

func buildSheets(rep report.Report) []sheetData {
	return []sheetData{
		{name: SheetRewards, values: buildRewards(rep)},
		{name: SheetAccumulated, values: buildAccumulated(rep)},
		{name: SheetSummary, values: buildSummary(rep)},
	}
}

// buildRewards builds the per-event sheet.
// Columns: Date | Asset | Pair | Amount | Close | Value
func buildRewards(rep report.Report) [][]any {
	rows := rep.Valuation.Rows()
	data := make([][]any, 0, len(rows)+1)
	data = append(data, []any{"Date", "Asset", "Pair", "Amount", "Close", "Value " + string(rep.Fiat)})

	for _, r := range rows {
		data = append(data, []any{
			r.Day.Format(domain.DateFormat),
			r.Asset,
			r.Pair,
			toFloat(r.Amount),
			toFloat(r.Close),
			fiatFloat(r.Value),
		})
	}
	return data
}

// buildAccumulated builds the cumulative held versus sold-on-receipt sheet.
// Columns: Date | Asset | Accumulated | Held | Sold on receipt | Difference
func buildAccumulated(rep report.Report) [][]any {
	rows := rep.Valuation.Rows()
	data := make([][]any, 0, len(rows)+1)
	data = append(data, []any{"Date", "Asset", "Accumulated", "Held", "Sold on receipt", "Difference"})

	for _, r := range rows {
		data = append(data, []any{
			r.Day.Format(domain.DateFormat),
			r.Asset,
			toFloat(r.CumulativeAmount),
			fiatFloat(r.CumulativeHeldValue),
			fiatFloat(r.CumulativeSoldValue),
			fiatFloat(r.Difference),
		})
	}
	return data
}

// buildSummary builds the per-asset headline sheet.
// Columns: Asset | Pair | Events | From | To | Total | Held | Sold on receipt | Difference | Held (display)
func buildSummary(rep report.Report) [][]any {
	data := make([][]any, 0, len(rep.Summaries)+1)
	data = append(data, []any{
		"Asset", "Pair", "Events", "From", "To",
		"Total", "Held", "Sold on receipt", "Difference", "Held (display)",
	})

	for _, s := range rep.Summaries {
		data = append(data, []any{
			s.Asset,
			s.Pair,
			s.Events,
			formatDay(s.From),
			formatDay(s.To),
			domain.FormatQuantity(s.TotalAmount),
			fiatFloat(s.LatestHeldValue),
			fiatFloat(s.LatestSoldValue),
			fiatFloat(s.LatestDifference),
			domain.FormatFiat(s.LatestHeldValue, rep.Fiat),
		})
	}
	return data
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateFormat)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func fiatFloat(d decimal.Decimal) float64 {
	return toFloat(domain.RoundFiat(d))
}
