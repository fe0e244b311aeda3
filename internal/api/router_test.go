package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"momentum-backtest/internal/api/models"
	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/data"
	"momentum-backtest/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const historyRows = 70

type fakeStore struct {
	saved map[string]*backtest.Result
}

func (s *fakeStore) SaveRun(_ context.Context, id string, res *backtest.Result) error {
	s.saved[id] = res
	return nil
}

func testHistory(t *testing.T) *model.History {
	t.Helper()
	dates := make([]time.Time, historyRows)
	for i := range dates {
		dates[i] = time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	h, err := model.NewHistory(dates)
	if err != nil {
		t.Fatal(err)
	}
	prices := map[string]func(int) float64{
		"EUR_USD": func(i int) float64 { return 1.05 * math.Pow(1.002, float64(i)) * (1 + 0.0005*math.Pow(-1, float64(i))) },
		"SPX":     func(i int) float64 { return 4000 * math.Pow(0.995, float64(i)) * (1 + 0.002*math.Pow(-1, float64(i))) },
	}
	for _, id := range []string{"EUR_USD", "SPX"} {
		s := model.NewSeries(id, historyRows)
		for i := 0; i < historyRows; i++ {
			c := prices[id](i)
			s.Close[i], s.Open[i] = c, c
			s.High[i], s.Low[i] = c*1.003, c*0.997
		}
		data.Prepare(s, data.DefaultVolWindow)
		if err := h.Add(s); err != nil {
			t.Fatal(err)
		}
	}
	return h
}

func testRouter(t *testing.T, store *fakeStore) (*gin.Engine, *model.History) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		VolTarget:      0.2,
		InitialCapital: 10000,
		Data:           config.DataConfig{Source: config.SourceCSV, CSV: "ohlcv.csv"},
		Indicators:     config.IndicatorConfig{Pairs: [][2]int{{2, 5}, {3, 8}}},
		Strategies: []config.StrategyConfig{
			{Name: "lbmom", Signal: "lbmom", Currencies: []string{"EUR_USD"}, Indices: []string{"SPX"}},
			{Name: "lsmom", Signal: "lsmom", Currencies: []string{"EUR_USD"}, Indices: []string{"SPX"}},
		},
	}
	cache := backtest.NewResultCache(time.Hour)
	t.Cleanup(cache.Close)

	presets := t.TempDir()
	preset := "strategy:\n  name: fx\n  signal: lbmom\n  currencies: [EUR_USD]\n"
	if err := os.WriteFile(filepath.Join(presets, "fx.yaml"), []byte(preset), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(presets, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := testHistory(t)
	d := Deps{Config: cfg, History: h, Cache: cache, PresetDir: presets}
	if store != nil {
		d.Store = store
	}
	return NewRouter(d), h
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e models.ErrorResponse
	decode(t, w, &e)
	return e.Error.Code
}

func TestHealth(t *testing.T) {
	r, _ := testRouter(t, nil)
	w := do(t, r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	var body map[string]interface{}
	decode(t, w, &body)
	if body["status"] != "ok" || body["instruments"] != float64(2) || body["dates"] != float64(historyRows) {
		t.Errorf("GET /health = %v", body)
	}
}

func TestListEndpoints(t *testing.T) {
	r, _ := testRouter(t, nil)

	var strategies struct {
		Strategies []models.StrategyInfo `json:"strategies"`
	}
	decode(t, do(t, r, http.MethodGet, "/api/v1/strategies", ""), &strategies)
	if len(strategies.Strategies) != 2 || strategies.Strategies[1].Signal != "long_short" {
		t.Errorf("strategies = %+v", strategies.Strategies)
	}
	if got := strategies.Strategies[0].Instruments; len(got) != 2 || got[0] != "EUR_USD" {
		t.Errorf("lbmom instruments = %v", got)
	}

	var signals struct {
		Signals []models.SignalInfo `json:"signals"`
	}
	decode(t, do(t, r, http.MethodGet, "/api/v1/signals", ""), &signals)
	if len(signals.Signals) != 2 {
		t.Errorf("signals = %+v", signals.Signals)
	}

	var presets struct {
		Presets []models.PresetInfo `json:"presets"`
	}
	decode(t, do(t, r, http.MethodGet, "/api/v1/presets", ""), &presets)
	if len(presets.Presets) != 1 || presets.Presets[0].ID != "fx" || presets.Presets[0].Signal != "long_only" {
		t.Errorf("presets = %+v", presets.Presets)
	}

	var instruments struct {
		Instruments []models.InstrumentInfo `json:"instruments"`
	}
	decode(t, do(t, r, http.MethodGet, "/api/v1/instruments", ""), &instruments)
	if len(instruments.Instruments) != 2 {
		t.Fatalf("instruments = %+v", instruments.Instruments)
	}
	eur := instruments.Instruments[0]
	if eur.Kind != "pair" || eur.Quote != "USD" || eur.FirstDate != "2023-05-01" {
		t.Errorf("EUR_USD = %+v", eur)
	}

	if w := do(t, r, http.MethodGet, "/api/v1/nothing", ""); w.Code != http.StatusNotFound {
		t.Errorf("GET unknown route = %d, want 404", w.Code)
	}
}

func TestRunBacktest(t *testing.T) {
	r, h := testRouter(t, nil)

	w := do(t, r, http.MethodPost, "/api/v1/backtest", `{"strategy": "lsmom", "options": {"include_rows": true}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /backtest = %d: %s", w.Code, w.Body.String())
	}
	var resp models.BacktestResponse
	decode(t, w, &resp)
	rows := historyRows - 27
	if resp.ID == "" || resp.Status != "completed" || resp.Summary.Days != rows || len(resp.Rows) != rows {
		t.Fatalf("response id=%q status=%q days=%d rows=%d", resp.ID, resp.Status, resp.Summary.Days, len(resp.Rows))
	}
	if resp.Summary.InitialCapital != "10000.00" || !strings.HasPrefix(resp.Summary.Display, "$") {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if !resp.Summary.BacktestWindow.Start.Equal(h.Dates[27]) {
		t.Errorf("window start = %v, want %v", resp.Summary.BacktestWindow.Start, h.Dates[27])
	}
	first := resp.Rows[0]
	if first.Capital != 10000 || len(first.Units) != 2 || first.Weights["EUR_USD"]+first.Weights["SPX"] < 0.999 {
		t.Errorf("first row = %+v", first)
	}

	var page models.RowsResponse
	decode(t, do(t, r, http.MethodGet, "/api/v1/backtest/"+resp.ID+"/rows?offset=40&limit=10", ""), &page)
	if page.Total != rows || page.Offset != 40 || len(page.Rows) != rows-40 {
		t.Errorf("page total=%d offset=%d rows=%d", page.Total, page.Offset, len(page.Rows))
	}
	if page.Rows[0].Index != 40 {
		t.Errorf("page first index = %d, want 40", page.Rows[0].Index)
	}

	w = do(t, r, http.MethodGet, "/api/v1/backtest/"+resp.ID+"/csv", "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("GET csv = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	records, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != rows+1 || records[0][8] != "EUR_USD units" {
		t.Errorf("csv has %d records, header %v", len(records), records[0])
	}
}

func TestRunBacktestErrors(t *testing.T) {
	r, _ := testRouter(t, nil)
	testCases := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"missing strategy", `{}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown strategy", `{"strategy": "carry"}`, http.StatusNotFound, "UNKNOWN_STRATEGY"},
		{"start in warm-up", `{"strategy": "lbmom", "overrides": {"simulation_start": "2023-05-03"}}`, http.StatusUnprocessableEntity, "WARMUP"},
		{"bad override", `{"strategy": "lbmom", "overrides": {"vol_target": -1}}`, http.StatusBadRequest, "INVALID_CONFIG"},
		{"persist without database", `{"strategy": "lbmom", "options": {"persist": true}}`, http.StatusConflict, "NO_DATABASE"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/backtest", tc.body)
			if w.Code != tc.wantCode {
				t.Fatalf("POST /backtest = %d, want %d: %s", w.Code, tc.wantCode, w.Body.String())
			}
			if got := errorCode(t, w); got != tc.wantErr {
				t.Errorf("error code = %q, want %q", got, tc.wantErr)
			}
		})
	}

	w := do(t, r, http.MethodGet, "/api/v1/backtest/6ba7b810-9dad-11d1-80b4-00c04fd430c8/rows", "")
	if w.Code != http.StatusNotFound || errorCode(t, w) != "RUN_NOT_FOUND" {
		t.Errorf("GET rows of unknown run = %d %s", w.Code, w.Body.String())
	}
}

func TestRunBacktestPersist(t *testing.T) {
	store := &fakeStore{saved: map[string]*backtest.Result{}}
	r, _ := testRouter(t, store)
	w := do(t, r, http.MethodPost, "/api/v1/backtest", `{"strategy": "lbmom", "options": {"persist": true}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /backtest = %d: %s", w.Code, w.Body.String())
	}
	var resp models.BacktestResponse
	decode(t, w, &resp)
	if res := store.saved[resp.ID]; res == nil || res.Strategy != "lbmom" {
		t.Errorf("stored runs = %v, want run %s", store.saved, resp.ID)
	}
}

func TestCompareBacktests(t *testing.T) {
	r, _ := testRouter(t, nil)
	w := do(t, r, http.MethodPost, "/api/v1/backtest/compare", `{"strategies": ["lbmom", "lsmom", "lbmom"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /backtest/compare = %d: %s", w.Code, w.Body.String())
	}
	var resp models.CompareBacktestResponse
	decode(t, w, &resp)
	if len(resp.Comparison) != 2 {
		t.Fatalf("comparison has %d entries, want 2", len(resp.Comparison))
	}
	for i, c := range resp.Comparison {
		if c.Rank != i+1 || c.ID == "" {
			t.Errorf("entry %d = rank %d id %q", i, c.Rank, c.ID)
		}
	}
	if resp.Comparison[0].Summary.Sharpe < resp.Comparison[1].Summary.Sharpe {
		t.Errorf("comparison not sorted by Sharpe: %v then %v", resp.Comparison[0].Summary.Sharpe, resp.Comparison[1].Summary.Sharpe)
	}

	w = do(t, r, http.MethodPost, "/api/v1/backtest/compare", `{}`)
	decode(t, w, &resp)
	if w.Code != http.StatusOK || len(resp.Comparison) != 2 {
		t.Errorf("compare all = %d with %d entries", w.Code, len(resp.Comparison))
	}
}

func TestStreamRows(t *testing.T) {
	r, _ := testRouter(t, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	w := do(t, r, http.MethodPost, "/api/v1/backtest", `{"strategy": "lbmom"}`)
	var resp models.BacktestResponse
	decode(t, w, &resp)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/backtest/" + resp.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()

	n := 0
	for {
		var row models.PortfolioRow
		err := conn.ReadJSON(&row)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("read: %v", err)
			}
			break
		}
		if row.Index != n {
			t.Errorf("row %d has index %d", n, row.Index)
		}
		n++
	}
	if n != historyRows-27 {
		t.Errorf("streamed %d rows, want %d", n, historyRows-27)
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := testRouter(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/backtest", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("preflight response has no Access-Control-Allow-Origin")
	}
}
