package api

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/stakingcalc/internal/domain"
	"github.com/mtlprog/stakingcalc/internal/report"
)

// reportView is the JSON shape of a report. Fiat amounts are rounded to cents here
// and nowhere earlier, and rendered with both decimals ("60.00").
type reportView struct {
	Fiat        domain.Fiat         `json:"fiat"`
	From        time.Time           `json:"from,omitzero"`
	To          time.Time           `json:"to,omitzero"`
	GeneratedAt time.Time           `json:"generatedAt"`
	Rewards     domain.RewardMatrix `json:"rewards"`
	Rows        []rowView           `json:"rows"`
	Summaries   []summaryView       `json:"summaries"`
}

type rowView struct {
	Day                 string          `json:"day"`
	Asset               string          `json:"asset"`
	Pair                string          `json:"pair"`
	Amount              decimal.Decimal `json:"amount"`
	Close               decimal.Decimal `json:"close"`
	Value               string          `json:"value"`
	CumulativeAmount    decimal.Decimal `json:"cumulativeAmount"`
	CumulativeHeldValue string          `json:"cumulativeHeldValue"`
	CumulativeSoldValue string          `json:"cumulativeSoldValue"`
	Difference          string          `json:"difference"`
}

type summaryView struct {
	Asset            string          `json:"asset"`
	Pair             string          `json:"pair"`
	Events           int             `json:"events"`
	From             string          `json:"from,omitempty"`
	To               string          `json:"to,omitempty"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	LatestHeldValue  string          `json:"latestHeldValue"`
	LatestSoldValue  string          `json:"latestSoldValue"`
	LatestDifference string          `json:"latestDifference"`
	Display          string          `json:"display"`
}

func newReportView(rep report.Report) reportView {
	return reportView{
		Fiat:        rep.Fiat,
		From:        rep.From,
		To:          rep.To,
		GeneratedAt: rep.GeneratedAt,
		Rewards:     rep.Matrix,
		Rows: lo.Map(rep.Valuation.Rows(), func(r domain.ValuationRow, _ int) rowView {
			return rowView{
				Day:                 r.Day.Format(domain.DateFormat),
				Asset:               r.Asset,
				Pair:                r.Pair,
				Amount:              r.Amount,
				Close:               r.Close,
				Value:               fiatAmount(r.Value),
				CumulativeAmount:    r.CumulativeAmount,
				CumulativeHeldValue: fiatAmount(r.CumulativeHeldValue),
				CumulativeSoldValue: fiatAmount(r.CumulativeSoldValue),
				Difference:          fiatAmount(r.Difference),
			}
		}),
		Summaries: lo.Map(rep.Summaries, func(s domain.AssetSummary, _ int) summaryView {
			v := summaryView{
				Asset:            s.Asset,
				Pair:             s.Pair,
				Events:           s.Events,
				TotalAmount:      s.TotalAmount,
				LatestHeldValue:  fiatAmount(s.LatestHeldValue),
				LatestSoldValue:  fiatAmount(s.LatestSoldValue),
				LatestDifference: fiatAmount(s.LatestDifference),
				Display:          domain.FormatFiat(s.LatestHeldValue, rep.Fiat),
			}
			if s.Events > 0 {
				v.From = s.From.Format(domain.DateFormat)
				v.To = s.To.Format(domain.DateFormat)
			}
			return v
		}),
	}
}

func fiatAmount(d decimal.Decimal) string {
	return domain.RoundFiat(d).StringFixed(2)
}
