package ledger

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/stakingcalc/internal/domain"
)

// RequiredColumns are the ledger export columns every upload must carry.
var RequiredColumns = []string{"txid", "refid", "time", "type", "subtype", "aclass", "asset", "amount", "fee", "balance"}

// timeLayouts are tried in order. Values without a zone are UTC.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize validates a ledger and pivots its staking rows into a reward matrix.
//
// A row is a reward when its type contains "staking" (literal, case-sensitive).
// Rewards are summed per (midnight UTC day, asset). Every asset with a reward row
// becomes a column; only columns whose identifier carries the ".S" marker are
// reward derivatives and get valued downstream.
func Normalize(t Table) (domain.RewardMatrix, error) {
	rows, err := parseRows(t, isRewardType)
	if err != nil {
		return domain.RewardMatrix{}, err
	}

	rewards := lo.Filter(rows, func(r domain.LedgerRow, _ int) bool {
		return isRewardType(r.Type)
	})

	events := lo.Map(rewards, func(r domain.LedgerRow, _ int) domain.RewardEvent {
		return domain.RewardEvent{
			Day:    domain.NormalizeDay(r.Time),
			Asset:  domain.ParseAsset(r.Asset),
			Amount: r.Amount,
		}
	})

	return domain.NewRewardMatrix(events), nil
}

// ParseRows validates a ledger and returns every row typed.
func ParseRows(t Table) ([]domain.LedgerRow, error) {
	return parseRows(t, func(string) bool { return true })
}

func isRewardType(typ string) bool {
	return strings.Contains(typ, domain.RewardTypeMarker)
}

// parseRows checks the schema, parses every timestamp, and parses amounts of rows accepted by needAmount.
func parseRows(t Table, needAmount func(typ string) bool) ([]domain.LedgerRow, error) {
	idx, err := indexColumns(t.Header)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.LedgerRow, 0, len(t.Rows))
	for i, rec := range t.Rows {
		if isBlank(rec) {
			continue
		}
		get := func(col string) string { return cell(rec, idx[col]) }

		rawTime := get("time")
		ts, err := parseTime(rawTime)
		if err != nil {
			return nil, &domain.ParseError{Column: "time", Row: i + 1, Value: rawTime, Err: err}
		}

		row := domain.LedgerRow{
			TxID:    get("txid"),
			RefID:   get("refid"),
			Time:    ts,
			Type:    get("type"),
			Subtype: get("subtype"),
			AClass:  get("aclass"),
			Asset:   get("asset"),
			Fee:     get("fee"),
			Balance: get("balance"),
		}

		if needAmount(row.Type) {
			rawAmount := get("amount")
			amount, err := decimal.NewFromString(rawAmount)
			if err != nil {
				return nil, &domain.ParseError{Column: "amount", Row: i + 1, Value: rawAmount, Err: err}
			}
			row.Amount = amount
		}

		rows = append(rows, row)
	}
	return rows, nil
}

func indexColumns(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}

	missing := lo.Filter(RequiredColumns, func(col string, _ int) bool {
		_, ok := idx[col]
		return !ok
	})
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &domain.SchemaError{Missing: missing}
	}
	return idx, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	var firstErr error
	for _, layout := range timeLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func isBlank(rec []string) bool {
	return lo.EveryBy(rec, func(v string) bool { return strings.TrimSpace(v) == "" })
}
