// Package stocks serves average-price and correlation requests: it fetches
// raw series (live, archived or mock) and hands them to the analytics core.
package stocks

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kjannette/stockagg/internal/analytics"
	"github.com/kjannette/stockagg/internal/external"
	"github.com/kjannette/stockagg/internal/models"
)

// ErrUpstream wraps live fetch failures that were not replaced by
// fallback data.
var ErrUpstream = errors.New("price data unavailable")

// Origin says where the series behind a response came from.
type Origin string

const (
	OriginLive    Origin = "live"
	OriginArchive Origin = "archive"
	OriginMock    Origin = "mock"
)

// Archive is the read side of the observation archive.
type Archive interface {
	Window(ctx context.Context, ticker string, minutes int) ([]models.PricePoint, error)
}

type Alerts interface {
	Degraded(key, msg string) bool
}

type Options struct {
	Live     external.PriceSource
	Mock     external.PriceSource
	Archive  Archive // optional
	Alerts   Alerts  // optional
	UseMock  bool
	Fallback bool
}

type Service struct {
	live     external.PriceSource
	mock     external.PriceSource
	archive  Archive
	alerts   Alerts
	useMock  bool
	fallback bool
}

func NewService(opts Options) *Service {
	mock := opts.Mock
	if mock == nil {
		mock = external.NewMockSource()
	}
	return &Service{
		live:     opts.Live,
		mock:     mock,
		archive:  opts.Archive,
		alerts:   opts.Alerts,
		useMock:  opts.UseMock || opts.Live == nil,
		fallback: opts.Fallback,
	}
}

func (s *Service) Mode() string {
	if s.useMock {
		return "mock"
	}
	return "live"
}

// AveragePrice reduces the ticker's series over the last minutes minutes
// (0 = latest point only).
func (s *Service) AveragePrice(ctx context.Context, ticker string, minutes int) (models.StockAggregate, Origin, error) {
	if s.useMock {
		history, _ := s.mock.PriceHistory(ctx, ticker, minutes)
		return analytics.Reduce(history), OriginMock, nil
	}

	history, err := s.live.PriceHistory(ctx, ticker, minutes)
	if err == nil {
		return analytics.Reduce(history), OriginLive, nil
	}
	if !s.canFallBack(err) {
		return models.StockAggregate{}, "", s.upstreamErr(err)
	}

	pair, origin := s.fallbackSeries(ctx, minutes, err, ticker)
	return analytics.Reduce(pair[0]), origin, nil
}

// Correlation fetches both series concurrently and correlates them. Both
// series always share one origin: if either live fetch fails, fallback
// data replaces both or the request fails.
func (s *Service) Correlation(ctx context.Context, tickerA, tickerB string, minutes int) (models.CorrelationResult, Origin, error) {
	if s.useMock {
		a, _ := s.mock.PriceHistory(ctx, tickerA, minutes)
		b, _ := s.mock.PriceHistory(ctx, tickerB, minutes)
		return analytics.Correlate(a, b), OriginMock, nil
	}

	// Neither fetch cancels the other: a breaker probe on one side must be
	// allowed to finish even when the other side is rejected.
	var a, b []models.PricePoint
	var g errgroup.Group
	g.Go(func() error {
		var err error
		a, err = s.live.PriceHistory(ctx, tickerA, minutes)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = s.live.PriceHistory(ctx, tickerB, minutes)
		return err
	})

	err := g.Wait()
	if err == nil {
		return analytics.Correlate(a, b), OriginLive, nil
	}
	if !s.canFallBack(err) {
		return models.CorrelationResult{}, "", s.upstreamErr(err)
	}

	pair, origin := s.fallbackSeries(ctx, minutes, err, tickerA, tickerB)
	return analytics.Correlate(pair[0], pair[1]), origin, nil
}

func (s *Service) ListStocks(ctx context.Context) (map[string]string, Origin, error) {
	if s.useMock {
		stocks, err := s.mock.ListStocks(ctx)
		return stocks, OriginMock, err
	}

	stocks, err := s.live.ListStocks(ctx)
	if err == nil {
		return stocks, OriginLive, nil
	}
	if !s.canFallBack(err) {
		return nil, "", s.upstreamErr(err)
	}
	s.alert(fmt.Sprintf("Stock list unavailable (%v); serving mock list", err))
	stocks, err = s.mock.ListStocks(ctx)
	return stocks, OriginMock, err
}

// fallbackSeries returns archived series for every ticker when the archive
// has data for all of them, otherwise mock series for all of them.
func (s *Service) fallbackSeries(ctx context.Context, minutes int, cause error, tickers ...string) ([][]models.PricePoint, Origin) {
	if s.archive != nil {
		out := make([][]models.PricePoint, 0, len(tickers))
		for _, t := range tickers {
			points, err := s.archive.Window(ctx, t, minutes)
			if err != nil {
				fmt.Printf("[ARCHIVE] Read %s failed: %v\n", t, err)
				break
			}
			if len(points) == 0 {
				break
			}
			out = append(out, points)
		}
		if len(out) == len(tickers) {
			s.alert(fmt.Sprintf("Exchange unavailable (%v); serving archived data for %v", cause, tickers))
			return out, OriginArchive
		}
	}

	s.alert(fmt.Sprintf("Exchange unavailable (%v); serving mock data for %v", cause, tickers))
	out := make([][]models.PricePoint, len(tickers))
	for i, t := range tickers {
		out[i], _ = s.mock.PriceHistory(ctx, t, minutes)
	}
	return out, OriginMock
}

func (s *Service) canFallBack(err error) bool {
	if !s.fallback {
		return false
	}
	// a ticker the exchange does not know is a client error, not an outage
	if errors.Is(err, external.ErrUnknownTicker) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func (s *Service) upstreamErr(err error) error {
	if errors.Is(err, external.ErrUnknownTicker) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

func (s *Service) alert(msg string) {
	if s.alerts == nil {
		fmt.Printf("[STOCKS] %s\n", msg)
		return
	}
	s.alerts.Degraded("upstream", msg)
}
