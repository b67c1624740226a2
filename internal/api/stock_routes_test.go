package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kjannette/stockagg/internal/external"
	"github.com/kjannette/stockagg/internal/httputil"
	"github.com/kjannette/stockagg/internal/models"
	"github.com/kjannette/stockagg/internal/stocks"
)

const (
	t1 = "2025-05-08T04:10:00Z"
	t2 = "2025-05-08T04:20:00Z"
	t3 = "2025-05-08T04:30:00Z"
)

// newFakeExchange serves NVDA and PYPL, answers 404 for unknown tickers and
// 500 for FAIL.
func newFakeExchange(t *testing.T) *httptest.Server {
	t.Helper()
	windows := map[string]string{
		"NVDA": `[{"price":10,"lastUpdatedAt":"` + t3 + `"},{"price":20,"lastUpdatedAt":"` + t2 + `"},{"price":30,"lastUpdatedAt":"` + t1 + `"}]`,
		"PYPL": `[{"price":2,"lastUpdatedAt":"` + t3 + `"},{"price":4,"lastUpdatedAt":"` + t2 + `"},{"price":6,"lastUpdatedAt":"` + t1 + `"}]`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /stocks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stocks":{"Nvidia Corporation":"NVDA","PayPal Holdings, Inc.":"PYPL"}}`))
	})
	mux.HandleFunc("GET /stocks/{ticker}", func(w http.ResponseWriter, r *http.Request) {
		ticker := r.PathValue("ticker")
		if ticker == "FAIL" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		window, ok := windows[ticker]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("minutes") == "" {
			w.Write([]byte(`{"stock":{"price":231.5,"lastUpdatedAt":"` + t3 + `"}}`))
			return
		}
		w.Write([]byte(window))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestHandler(t *testing.T, fallback bool, checks map[string]Check) http.Handler {
	t.Helper()
	srv := newFakeExchange(t)
	live := external.NewExchangeClient(external.ExchangeOptions{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		Retry:   &httputil.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	svc := stocks.NewService(stocks.Options{
		Live:     live,
		Mock:     external.NewSeededMockSource(7, time.Date(2025, 5, 8, 5, 0, 0, 0, time.UTC)),
		Fallback: fallback,
	})
	s := NewServer(svc, Options{Port: 0, Checks: checks})
	return s.Handler("*")
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestAveragePrice_Latest(t *testing.T) {
	rr := get(t, newTestHandler(t, true, nil), "/api/stock/NVDA/price")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if src := rr.Header().Get("X-Data-Source"); src != "live" {
		t.Fatalf("expected live data source, got %q", src)
	}

	var body models.StockAggregate
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.AveragePrice != 231.5 || len(body.PriceHistory) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestAveragePrice_Window(t *testing.T) {
	rr := get(t, newTestHandler(t, true, nil), "/api/stock/NVDA/price?minutes=30&aggregation=average")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body models.StockAggregate
	json.NewDecoder(rr.Body).Decode(&body)
	if body.AveragePrice != 20 {
		t.Fatalf("expected average 20, got %v", body.AveragePrice)
	}
	if len(body.PriceHistory) != 3 || body.PriceHistory[0].Price != 10 {
		t.Fatalf("expected history in source order, got %+v", body.PriceHistory)
	}
}

func TestAveragePrice_BadRequests(t *testing.T) {
	h := newTestHandler(t, true, nil)
	for _, path := range []string{
		"/api/stock/NVDA/price?aggregation=median",
		"/api/stock/NVDA/price?minutes=abc",
		"/api/stock/NVDA/price?minutes=0",
		"/api/stock/.bad/price",
	} {
		if rr := get(t, h, path); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rr.Code)
		}
	}
}

func TestAveragePrice_UnknownTicker(t *testing.T) {
	rr := get(t, newTestHandler(t, true, nil), "/api/stock/ZZZZ/price?minutes=10")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAveragePrice_UpstreamFailure(t *testing.T) {
	rr := get(t, newTestHandler(t, false, nil), "/api/stock/FAIL/price?minutes=10")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 without fallback, got %d", rr.Code)
	}

	rr = get(t, newTestHandler(t, true, nil), "/api/stock/FAIL/price?minutes=10")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with fallback, got %d", rr.Code)
	}
	if src := rr.Header().Get("X-Data-Source"); src != "mock" {
		t.Fatalf("expected mock data source, got %q", src)
	}
	var body models.StockAggregate
	json.NewDecoder(rr.Body).Decode(&body)
	if len(body.PriceHistory) != 10 {
		t.Fatalf("expected 10 mock points, got %d", len(body.PriceHistory))
	}
}

func TestCorrelation_Live(t *testing.T) {
	rr := get(t, newTestHandler(t, true, nil), "/api/stock/correlation?tickers=NVDA,PYPL&minutes=30")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body correlationJSON
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Correlation != 1 {
		t.Fatalf("expected correlation 1, got %v", body.Correlation)
	}
	if body.Stocks["NVDA"].AveragePrice != 20 || body.Stocks["PYPL"].AveragePrice != 4 {
		t.Fatalf("unexpected stocks: %+v", body.Stocks)
	}
}

func TestCorrelation_RepeatedTickerParam(t *testing.T) {
	rr := get(t, newTestHandler(t, true, nil), "/api/stock/correlation?ticker=NVDA&ticker=PYPL")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCorrelation_TickerCount(t *testing.T) {
	h := newTestHandler(t, true, nil)
	for _, path := range []string{
		"/api/stock/correlation",
		"/api/stock/correlation?tickers=NVDA",
		"/api/stock/correlation?tickers=NVDA,PYPL,AMD",
		"/api/stock/correlation?tickers=NVDA,PYPL&minutes=-1",
	} {
		if rr := get(t, h, path); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rr.Code)
		}
	}
}

func TestCorrelation_FallbackSharesOrigin(t *testing.T) {
	rr := get(t, newTestHandler(t, true, nil), "/api/stock/correlation?tickers=NVDA,FAIL&minutes=30")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if src := rr.Header().Get("X-Data-Source"); src != "mock" {
		t.Fatalf("expected mock data source, got %q", src)
	}

	var body correlationJSON
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Correlation < -1 || body.Correlation > 1 {
		t.Fatalf("correlation out of range: %v", body.Correlation)
	}
	if n := len(body.Stocks["NVDA"].PriceHistory); n != 10 {
		t.Fatalf("expected NVDA replaced by 10 mock points, got %d", n)
	}
}

func TestListStocks(t *testing.T) {
	rr := get(t, newTestHandler(t, true, nil), "/api/stocks")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body struct {
		Stocks map[string]string `json:"stocks"`
	}
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Stocks["Nvidia Corporation"] != "NVDA" {
		t.Fatalf("unexpected stocks: %+v", body.Stocks)
	}
}

func TestHealth(t *testing.T) {
	checks := map[string]Check{
		"cache":   func(context.Context) error { return nil },
		"archive": func(context.Context) error { return errors.New("connection refused") },
	}
	rr := get(t, newTestHandler(t, true, checks), "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body healthResponse
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Status != "degraded" || body.Mode != "live" {
		t.Fatalf("unexpected health: %+v", body)
	}
	if body.Services["cache"] != "up" || body.Services["archive"] != "down" {
		t.Fatalf("unexpected services: %+v", body.Services)
	}
}

func TestHandler_RequiresAPIKey(t *testing.T) {
	svc := stocks.NewService(stocks.Options{Mock: external.NewMockSource()})
	h := NewServer(svc, Options{APIKey: "secret123"}).Handler("*")

	if rr := get(t, h, "/api/stocks"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stocks", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if src := rr.Header().Get("X-Data-Source"); src != "mock" {
		t.Fatalf("expected mock data source, got %q", src)
	}
}
