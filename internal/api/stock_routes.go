package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kjannette/stockagg/internal/analytics"
	"github.com/kjannette/stockagg/internal/external"
	"github.com/kjannette/stockagg/internal/models"
	"github.com/kjannette/stockagg/internal/stocks"
)

type correlationJSON struct {
	Correlation float64                          `json:"correlation"`
	Stocks      map[string]models.StockAggregate `json:"stocks"`
}

func (s *Server) handleAveragePrice(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	if !validateTicker(ticker) {
		writeError(w, http.StatusBadRequest, "invalid ticker")
		return
	}
	if agg := r.URL.Query().Get("aggregation"); agg != "" && agg != "average" {
		writeError(w, http.StatusBadRequest, "Only average aggregation is supported")
		return
	}
	minutes, err := parseMinutes(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, origin, err := s.stocks.AveragePrice(r.Context(), ticker, minutes)
	if err != nil {
		fmt.Printf("[API] Error computing average price for %s: %v\n", ticker, err)
		writeServiceError(w, err, "Failed to get average stock price")
		return
	}

	w.Header().Set("X-Data-Source", string(origin))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	tickers := parseTickers(r)
	if len(tickers) != 2 {
		writeError(w, http.StatusBadRequest, "Exactly two tickers must be provided")
		return
	}
	for _, t := range tickers {
		if !validateTicker(t) {
			writeError(w, http.StatusBadRequest, "invalid ticker")
			return
		}
	}
	minutes, err := parseMinutes(r, s.defaultMinutes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tickerA, tickerB := tickers[0], tickers[1]
	result, origin, err := s.stocks.Correlation(r.Context(), tickerA, tickerB, minutes)
	if err != nil {
		fmt.Printf("[API] Error computing correlation %s/%s: %v\n", tickerA, tickerB, err)
		writeServiceError(w, err, "Failed to calculate stock correlation")
		return
	}

	w.Header().Set("X-Data-Source", string(origin))
	writeJSON(w, http.StatusOK, correlationJSON{
		Correlation: analytics.RoundCoefficient(result.Coefficient),
		Stocks: map[string]models.StockAggregate{
			tickerA: result.StockA,
			tickerB: result.StockB,
		},
	})
}

func (s *Server) handleListStocks(w http.ResponseWriter, r *http.Request) {
	list, origin, err := s.stocks.ListStocks(r.Context())
	if err != nil {
		fmt.Printf("[API] Error listing stocks: %v\n", err)
		writeServiceError(w, err, "Failed to list stocks")
		return
	}
	if list == nil {
		list = map[string]string{}
	}
	w.Header().Set("X-Data-Source", string(origin))
	writeJSON(w, http.StatusOK, map[string]map[string]string{"stocks": list})
}

func writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, external.ErrUnknownTicker):
		writeError(w, http.StatusNotFound, "unknown ticker")
	case errors.Is(err, stocks.ErrUpstream):
		writeError(w, http.StatusBadGateway, msg)
	default:
		writeError(w, http.StatusInternalServerError, msg)
	}
}
