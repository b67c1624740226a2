package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kjannette/stockagg/internal/models"
	"github.com/kjannette/stockagg/internal/stocks"
)

var tickerRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]{0,14}$`)

// StockService is what the handlers need from the stocks package.
type StockService interface {
	AveragePrice(ctx context.Context, ticker string, minutes int) (models.StockAggregate, stocks.Origin, error)
	Correlation(ctx context.Context, tickerA, tickerB string, minutes int) (models.CorrelationResult, stocks.Origin, error)
	ListStocks(ctx context.Context) (map[string]string, stocks.Origin, error)
	Mode() string
}

// Check reports the health of one dependency; nil means up.
type Check func(ctx context.Context) error

type Options struct {
	Port                      int
	APIKey                    string
	CORSOrigin                string
	DefaultCorrelationMinutes int
	Checks                    map[string]Check
}

type Server struct {
	stocks         StockService
	checks         map[string]Check
	defaultMinutes int
	httpServer     *http.Server
	apiKey         string
}

func NewServer(svc StockService, opts Options) *Server {
	s := &Server{
		stocks:         svc,
		checks:         opts.Checks,
		defaultMinutes: opts.DefaultCorrelationMinutes,
		apiKey:         opts.APIKey,
	}
	if s.defaultMinutes <= 0 {
		s.defaultMinutes = 60
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.Handler(opts.CORSOrigin),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the full middleware-wrapped route table.
func (s *Server) Handler(corsOrigin string) http.Handler {
	mux := http.NewServeMux()

	// Stock routes
	mux.HandleFunc("GET /api/stock/{ticker}/price", s.handleAveragePrice)
	mux.HandleFunc("GET /api/stock/correlation", s.handleCorrelation)
	mux.HandleFunc("GET /api/stocks", s.handleListStocks)

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	return requestIDMiddleware(s.authMiddleware(corsMiddleware(mux, corsOrigin)))
}

func (s *Server) Start() error {
	fmt.Printf("[API] REST API server started on http://localhost%s\n", s.httpServer.Addr)
	fmt.Printf("[API] Health check: http://localhost%s/health\n", s.httpServer.Addr)
	if s.apiKey != "" {
		fmt.Println("[API] Authentication: enabled (Bearer token)")
	} else {
		fmt.Println("[API] Authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Data-Source")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func validateTicker(ticker string) bool {
	return tickerRegexp.MatchString(ticker)
}

// parseMinutes reads the minutes query parameter. An absent value yields
// fallback; anything but a positive integer is an error.
func parseMinutes(r *http.Request, fallback int) (int, error) {
	v := r.URL.Query().Get("minutes")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("minutes must be a positive integer")
	}
	return n, nil
}

// parseTickers accepts tickers=A,B, repeated tickers=A&tickers=B, or
// repeated ticker=A&ticker=B. Blank entries are dropped.
func parseTickers(r *http.Request) []string {
	q := r.URL.Query()
	raw := q["tickers"]
	if len(raw) == 0 {
		raw = q["ticker"]
	}

	var out []string
	for _, v := range raw {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
