package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/mtlprog/stakingcalc/internal/domain"
	"github.com/mtlprog/stakingcalc/internal/export"
	"github.com/mtlprog/stakingcalc/internal/ledger"
	"github.com/mtlprog/stakingcalc/internal/ohlc"
	"github.com/mtlprog/stakingcalc/internal/report"
)

const (
	maxLedgerBytes = 32 << 20
	xlsxMediaType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler provides HTTP endpoints for reports and the price store.
type Handler struct {
	reports     *report.Generator
	cache       *ohlc.Service
	defaultFiat domain.Fiat
}

// NewHandler creates a new API handler.
func NewHandler(reports *report.Generator, cache *ohlc.Service, defaultFiat domain.Fiat) *Handler {
	return &Handler{reports: reports, cache: cache, defaultFiat: defaultFiat}
}

// GenerateReport handles POST /api/v1/reports?fiat=EUR&from=YYYY-MM-DD&to=YYYY-MM-DD&format=json|xlsx.
// The body is a CSV ledger or a multipart form with the ledger in field "file".
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	fiat, err := h.parseFiat(q.Get("fiat"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseOptionalDay(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseOptionalDay(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	table, err := readLedger(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := h.reports.Generate(r.Context(), table, report.Options{Fiat: fiat, From: from, To: to})
	if err != nil {
		writeDomainError(w, "failed to generate report", err)
		return
	}

	if q.Get("format") == "xlsx" {
		w.Header().Set("Content-Type", xlsxMediaType)
		w.Header().Set("Content-Disposition", `attachment; filename="staking-rewards.xlsx"`)
		if err := export.WriteXLSX(r.Context(), w, rep); err != nil {
			slog.Error("failed to write xlsx report", "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, newReportView(rep))
}

type refreshRequest struct {
	Assets []string `json:"assets"`
	Fiat   string   `json:"fiat"`
	Since  string   `json:"since"`
}

// RefreshPrices handles POST /api/v1/prices/refresh.
func (h *Handler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	fiat, err := h.parseFiat(req.Fiat)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since, err := domain.ParseDay(req.Since)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	assets := lo.Filter(lo.Map(req.Assets, func(a string, _ int) domain.Asset { return domain.ParseAsset(a) }),
		func(a domain.Asset, _ int) bool { return a.Base != "" })
	if len(assets) == 0 {
		writeError(w, http.StatusBadRequest, "assets must not be empty")
		return
	}
	pairs := lo.UniqBy(lo.Map(assets, func(a domain.Asset, _ int) domain.TradingPair {
		return domain.NewTradingPair(a, fiat)
	}), func(p domain.TradingPair) string { return p.Symbol })

	result, err := h.cache.Refresh(r.Context(), pairs, since)
	if err != nil {
		writeDomainError(w, "failed to refresh prices", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListPairs handles GET /api/v1/prices.
func (h *Handler) ListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.cache.Repository().Pairs(r.Context())
	if err != nil {
		slog.Error("failed to list stored pairs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if pairs == nil {
		pairs = []domain.PairCoverage{}
	}
	writeJSON(w, http.StatusOK, pairs)
}

// ListPrices handles GET /api/v1/prices/{pair}.
func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	pair, err := domain.PairFromSymbol(r.PathValue("pair"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bars, err := h.cache.Repository().List(r.Context(), pair.Symbol)
	if err != nil {
		slog.Error("failed to list prices", "pair", pair.Symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(bars) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no prices stored for %s", pair.Symbol))
		return
	}
	writeJSON(w, http.StatusOK, bars)
}

// GetPrice handles GET /api/v1/prices/{pair}/{date}.
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	pair, err := domain.PairFromSymbol(r.PathValue("pair"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	day, err := domain.ParseDay(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	bar, err := h.cache.Repository().Get(r.Context(), pair.Symbol, day)
	if err != nil {
		if errors.Is(err, ohlc.ErrNotFound) {
			writeError(w, http.StatusNotFound, "price not found for date")
			return
		}
		slog.Error("failed to get price", "pair", pair.Symbol, "date", day.Format(domain.DateFormat), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, bar)
}

func (h *Handler) parseFiat(s string) (domain.Fiat, error) {
	if s == "" {
		return h.defaultFiat, nil
	}
	return domain.ParseFiat(s)
}

func parseOptionalDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseDay(s)
}

// readLedger reads a CSV body, or the "file" part of a multipart form (CSV or XLSX by extension).
func readLedger(w http.ResponseWriter, r *http.Request) (ledger.Table, error) {
	body := http.MaxBytesReader(w, r.Body, maxLedgerBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return ledger.ReadCSV(body)
	}

	r.Body = body
	file, header, err := r.FormFile("file")
	if err != nil {
		return ledger.Table{}, fmt.Errorf("reading uploaded file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		return ledger.ReadXLSX(file)
	}
	return ledger.ReadCSV(file)
}

// writeDomainError maps the error taxonomy to HTTP statuses.
func writeDomainError(w http.ResponseWriter, logMsg string, err error) {
	var (
		schemaErr  *domain.SchemaError
		parseErr   *domain.ParseError
		windowErr  *domain.WindowError
		missingErr *domain.PriceMissingError
	)
	switch {
	case errors.As(err, &schemaErr), errors.As(err, &parseErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &windowErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &missingErr):
		writeError(w, http.StatusConflict, missingErr.Error())
	default:
		slog.Error(logMsg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
