package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mtlprog/stakingcalc/internal/domain"
	"github.com/mtlprog/stakingcalc/internal/ohlc"
	"github.com/mtlprog/stakingcalc/internal/report"
	"github.com/mtlprog/stakingcalc/internal/valuation"
)

const ledgerCSV = `txid,refid,time,type,subtype,aclass,asset,amount,fee,balance
L1,R1,2023-01-05 02:14:31,staking,,currency,ETH2.S,0.01,0,0.01
L2,R2,2023-01-05 09:00:00,staking,,currency,ETH2.S,0.02,0,0.03
`

type mockFetcher struct {
	lookback time.Duration
	calls    int
}

func (m *mockFetcher) FetchOHLC(_ context.Context, pair domain.TradingPair, since time.Time, _ int) ([]domain.PriceBar, error) {
	m.calls++
	return []domain.PriceBar{{Day: domain.NormalizeDay(since), Close: decimal.NewFromInt(10)}}, nil
}

func (m *mockFetcher) MaxLookback(int) time.Duration { return m.lookback }

func newTestHandler(t *testing.T, lookback time.Duration) (*Handler, *ohlc.MemoryRepository, *mockFetcher) {
	t.Helper()
	repo := ohlc.NewMemoryRepository()
	err := repo.Upsert(context.Background(), "ETH2EUR", []domain.PriceBar{{
		Day:   time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC),
		Close: decimal.NewFromInt(2000),
	}})
	if err != nil {
		t.Fatal(err)
	}

	fetcher := &mockFetcher{lookback: lookback}
	cache := ohlc.NewService(fetcher, repo)
	gen := report.NewGenerator(cache, valuation.NewService(repo), 48*time.Hour)
	return NewHandler(gen, cache, domain.FiatEUR), repo, fetcher
}

const longLookback = 100 * 365 * domain.Day

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body["error"]
}

func TestGenerateReportCSV(t *testing.T) {
	h, _, _ := newTestHandler(t, longLookback)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports?fiat=eur", strings.NewReader(ledgerCSV))
	w := httptest.NewRecorder()
	h.GenerateReport(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var view reportView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if len(view.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(view.Rows))
	}
	if got := view.Rows[0].Value; got != "60.00" {
		t.Errorf("value = %s, want 60.00", got)
	}
	if !strings.Contains(w.Body.String(), `"value":"60.00"`) {
		t.Errorf("body does not carry two-decimal fiat value: %s", w.Body.String())
	}
	if got := view.Summaries[0].LatestHeldValue; got != "60.00" {
		t.Errorf("held = %s, want 60.00", got)
	}
	if len(view.Summaries) != 1 || view.Summaries[0].Display != "€60.00" {
		t.Errorf("summaries = %+v", view.Summaries)
	}
}

func TestGenerateReportMultipartXLSXOutput(t *testing.T) {
	h, _, _ := newTestHandler(t, longLookback)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "ledgers.csv")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(ledgerCSV))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports?format=xlsx", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.GenerateReport(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxMediaType {
		t.Errorf("content type = %q", ct)
	}
	f, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatalf("response is not a workbook: %v", err)
	}
	defer f.Close()
	if len(f.GetSheetList()) != 3 {
		t.Errorf("sheets = %v", f.GetSheetList())
	}
}

func TestGenerateReportErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		body     string
		lookback time.Duration
		want     int
	}{
		{"bad fiat", "?fiat=JPY", ledgerCSV, longLookback, http.StatusBadRequest},
		{"bad from", "?from=05-01-2023", ledgerCSV, longLookback, http.StatusBadRequest},
		{"empty body", "", "", longLookback, http.StatusBadRequest},
		{"schema", "", "txid,time\nL1,2023-01-05\n", longLookback, http.StatusUnprocessableEntity},
		{"parse", "", strings.Replace(ledgerCSV, "2023-01-05 02:14:31", "yesterday", 1), longLookback, http.StatusUnprocessableEntity},
		{"window", "", ledgerCSV, domain.Day, http.StatusBadRequest},
		{"price missing", "?fiat=USD", ledgerCSV, longLookback, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTestHandler(t, tt.lookback)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/reports"+tt.query, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.GenerateReport(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			if decodeError(t, w) == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestGenerateReportPriceMissingMessage(t *testing.T) {
	h, _, _ := newTestHandler(t, longLookback)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports?fiat=USD", strings.NewReader(ledgerCSV))
	w := httptest.NewRecorder()
	h.GenerateReport(w, req)

	msg := decodeError(t, w)
	if !strings.Contains(msg, "out of date") || !strings.Contains(msg, "ETH2USD") || !strings.Contains(msg, "2023-01-05") {
		t.Errorf("message = %q", msg)
	}
}

func TestRefreshPrices(t *testing.T) {
	h, repo, fetcher := newTestHandler(t, longLookback)

	body := `{"assets":["DOT.S","DOT.S","ADA.S"],"fiat":"EUR","since":"2024-03-01"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prices/refresh", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.RefreshPrices(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if fetcher.calls != 2 {
		t.Errorf("fetch calls = %d, want 2 (deduplicated)", fetcher.calls)
	}

	var res struct {
		Updated []string `json:"updated"`
		Failed  []any    `json:"failed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if strings.Join(res.Updated, ",") != "DOTEUR,ADAEUR" || len(res.Failed) != 0 {
		t.Errorf("result = %+v", res)
	}
	if _, err := repo.Get(context.Background(), "ADAEUR", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Errorf("ADAEUR not stored: %v", err)
	}
}

func TestRefreshPricesErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		lookback time.Duration
		want     int
	}{
		{"invalid json", `{`, longLookback, http.StatusBadRequest},
		{"no assets", `{"assets":[],"since":"2024-03-01"}`, longLookback, http.StatusBadRequest},
		{"bad since", `{"assets":["DOT.S"],"since":"March"}`, longLookback, http.StatusBadRequest},
		{"window", `{"assets":["DOT.S"],"since":"2020-01-01"}`, 30 * domain.Day, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, fetcher := newTestHandler(t, tt.lookback)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/prices/refresh", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.RefreshPrices(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if fetcher.calls != 0 {
				t.Errorf("fetch calls = %d, want 0", fetcher.calls)
			}
		})
	}
}

func TestPriceLookupRoutes(t *testing.T) {
	h, _, _ := newTestHandler(t, longLookback)
	router := NewRouter(h, "")

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/prices", http.StatusOK},
		{"/api/v1/prices/ETH2EUR", http.StatusOK},
		{"/api/v1/prices/eth2eur/2023-01-05", http.StatusOK},
		{"/api/v1/prices/ETH2EUR/2023-01-06", http.StatusNotFound},
		{"/api/v1/prices/ETH2EUR/not-a-date", http.StatusBadRequest},
		{"/api/v1/prices/DOTEUR", http.StatusNotFound},
		{"/api/v1/prices/DOTJPY", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestGetPriceBody(t *testing.T) {
	h, _, _ := newTestHandler(t, longLookback)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/prices/ETH2EUR/2023-01-05", nil)
	req.SetPathValue("pair", "ETH2EUR")
	req.SetPathValue("date", "2023-01-05")
	w := httptest.NewRecorder()
	h.GetPrice(w, req)

	var bar domain.PriceBar
	if err := json.Unmarshal(w.Body.Bytes(), &bar); err != nil {
		t.Fatal(err)
	}
	if bar.Pair != "ETH2EUR" || !bar.Close.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("bar = %+v", bar)
	}
}

func TestPriceLookupBitcoinAliases(t *testing.T) {
	h, repo, _ := newTestHandler(t, longLookback)
	err := repo.Upsert(context.Background(), "XBTEUR", []domain.PriceBar{{
		Day:   time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC),
		Close: decimal.NewFromInt(16000),
	}})
	if err != nil {
		t.Fatal(err)
	}
	router := NewRouter(h, "")

	for _, path := range []string{
		"/api/v1/prices/XXBTZEUR/2023-01-05",
		"/api/v1/prices/btceur/2023-01-05",
		"/api/v1/prices/XBTEUR/2023-01-05",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, w.Code)
			continue
		}
		var bar domain.PriceBar
		if err := json.Unmarshal(w.Body.Bytes(), &bar); err != nil {
			t.Fatal(err)
		}
		if bar.Pair != "XBTEUR" {
			t.Errorf("%s: pair = %q, want XBTEUR", path, bar.Pair)
		}
	}
}
