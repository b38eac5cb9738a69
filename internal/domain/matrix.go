package domain

import (
	"cmp"
	"encoding/json"
	"iter"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// RewardMatrix is a sparse day × asset table of summed reward amounts.
// Days are ascending midnight UTC instants; a cell is absent when no reward was received.
// A matrix is immutable once built.
type RewardMatrix struct {
	days   []time.Time
	assets []Asset
	cells  map[int64]map[string]decimal.Decimal // unix day -> asset ID -> amount
}

// NewRewardMatrix pivots reward events into a matrix. Events sharing (day, asset) are summed.
// Columns are ordered by asset ID.
func NewRewardMatrix(events []RewardEvent) RewardMatrix {
	m := RewardMatrix{cells: make(map[int64]map[string]decimal.Decimal)}
	seenAsset := make(map[string]bool)

	for _, e := range events {
		day := NormalizeDay(e.Day)
		key := day.Unix()
		row, ok := m.cells[key]
		if !ok {
			row = make(map[string]decimal.Decimal)
			m.cells[key] = row
			m.days = append(m.days, day)
		}
		row[e.Asset.ID] = row[e.Asset.ID].Add(e.Amount)

		if !seenAsset[e.Asset.ID] {
			seenAsset[e.Asset.ID] = true
			m.assets = append(m.assets, e.Asset)
		}
	}

	slices.SortFunc(m.days, func(a, b time.Time) int { return a.Compare(b) })
	slices.SortFunc(m.assets, func(a, b Asset) int { return cmp.Compare(a.ID, b.ID) })
	return m
}

// Days returns the ascending reward days.
func (m RewardMatrix) Days() []time.Time {
	return slices.Clone(m.days)
}

// Assets returns every column of the matrix.
func (m RewardMatrix) Assets() []Asset {
	return slices.Clone(m.assets)
}

// RewardAssets returns the columns that are reward derivatives; only these are valued.
func (m RewardMatrix) RewardAssets() []Asset {
	var out []Asset
	for _, a := range m.assets {
		if a.IsRewardDerivative {
			out = append(out, a)
		}
	}
	return out
}

// Cell returns the amount for (day, asset) and whether it is present.
func (m RewardMatrix) Cell(day time.Time, assetID string) (decimal.Decimal, bool) {
	row, ok := m.cells[NormalizeDay(day).Unix()]
	if !ok {
		return decimal.Zero, false
	}
	v, ok := row[assetID]
	return v, ok
}

// Column yields the present (day, amount) cells of one asset in ascending day order.
func (m RewardMatrix) Column(assetID string) iter.Seq2[time.Time, decimal.Decimal] {
	return func(yield func(time.Time, decimal.Decimal) bool) {
		for _, day := range m.days {
			v, ok := m.cells[day.Unix()][assetID]
			if !ok {
				continue
			}
			if !yield(day, v) {
				return
			}
		}
	}
}

// Events flattens the matrix back into reward events, ordered by day then asset.
func (m RewardMatrix) Events() []RewardEvent {
	var out []RewardEvent
	for _, day := range m.days {
		for _, a := range m.assets {
			if v, ok := m.cells[day.Unix()][a.ID]; ok {
				out = append(out, RewardEvent{Day: day, Asset: a, Amount: v})
			}
		}
	}
	return out
}

// Earliest returns the first reward day, or false for an empty matrix.
func (m RewardMatrix) Earliest() (time.Time, bool) {
	if len(m.days) == 0 {
		return time.Time{}, false
	}
	return m.days[0], true
}

// EarliestReward returns the first day on which any reward derivative column
// has a cell, or false when no such cell exists. Columns that are not valued
// do not count.
func (m RewardMatrix) EarliestReward() (time.Time, bool) {
	var (
		earliest time.Time
		found    bool
	)
	for _, a := range m.RewardAssets() {
		for day := range m.Column(a.ID) {
			if !found || day.Before(earliest) {
				earliest, found = day, true
			}
			break
		}
	}
	return earliest, found
}

// Latest returns the last reward day, or false for an empty matrix.
func (m RewardMatrix) Latest() (time.Time, bool) {
	if len(m.days) == 0 {
		return time.Time{}, false
	}
	return m.days[len(m.days)-1], true
}

// Window returns a matrix restricted to from <= day < to. A zero bound is open.
// All columns are kept so that assets without rewards in the window still appear.
func (m RewardMatrix) Window(from, to time.Time) RewardMatrix {
	out := RewardMatrix{
		assets: slices.Clone(m.assets),
		cells:  make(map[int64]map[string]decimal.Decimal),
	}
	for _, day := range m.days {
		if !from.IsZero() && day.Before(NormalizeDay(from)) {
			continue
		}
		if !to.IsZero() && !day.Before(NormalizeDay(to)) {
			continue
		}
		out.days = append(out.days, day)
		out.cells[day.Unix()] = m.cells[day.Unix()]
	}
	return out
}

// Len returns the number of days.
func (m RewardMatrix) Len() int {
	return len(m.days)
}

type matrixRowJSON struct {
	Day     time.Time                  `json:"day"`
	Amounts map[string]decimal.Decimal `json:"amounts"`
}

type matrixJSON struct {
	Assets []Asset         `json:"assets"`
	Rows   []matrixRowJSON `json:"rows"`
}

// MarshalJSON renders the matrix as rows of per-asset amounts.
func (m RewardMatrix) MarshalJSON() ([]byte, error) {
	out := matrixJSON{Assets: m.assets, Rows: make([]matrixRowJSON, 0, len(m.days))}
	if out.Assets == nil {
		out.Assets = []Asset{}
	}
	for _, day := range m.days {
		out.Rows = append(out.Rows, matrixRowJSON{Day: day, Amounts: m.cells[day.Unix()]})
	}
	return json.Marshal(out)
}
