package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kjannette/stockagg/internal/external"
	"github.com/kjannette/stockagg/internal/models"
)

var ErrOpen = errors.New("circuit open")

// Limits holds the breaker thresholds from config.
// A zero FailureThreshold disables the breaker.
type Limits struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// Breaker stops calling the exchange after FailureThreshold consecutive
// failures and lets a single probe through once Cooldown has passed.
type Breaker struct {
	limits Limits
	now    func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	probing   bool
}

func NewBreaker(limits Limits) *Breaker {
	if limits.Cooldown <= 0 {
		limits.Cooldown = 30 * time.Second
	}
	return &Breaker{limits: limits, now: time.Now}
}

// Allow returns nil if a request may go upstream, ErrOpen otherwise.
func (b *Breaker) Allow() error {
	if b.limits.FailureThreshold <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.limits.FailureThreshold {
		return nil
	}
	now := b.now()
	if now.Before(b.openUntil) || b.probing {
		return fmt.Errorf("%w: %d consecutive failures, retry after %s",
			ErrOpen, b.failures, b.openUntil.UTC().Format(time.RFC3339))
	}
	b.probing = true
	return nil
}

// Record feeds a request outcome back. Unknown tickers and cancelled
// requests say nothing about exchange health and are ignored.
func (b *Breaker) Record(err error) {
	if b.limits.FailureThreshold <= 0 {
		return
	}
	if errors.Is(err, external.ErrUnknownTicker) || errors.Is(err, context.Canceled) {
		b.mu.Lock()
		b.probing = false
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	if err == nil {
		if b.failures >= b.limits.FailureThreshold {
			fmt.Println("[GUARD] Exchange recovered, circuit closed")
		}
		b.failures = 0
		return
	}

	b.failures++
	if b.failures >= b.limits.FailureThreshold {
		b.openUntil = b.now().Add(b.limits.Cooldown)
		fmt.Printf("[GUARD] Circuit open after %d consecutive failures (cooldown %s)\n",
			b.failures, b.limits.Cooldown)
	}
}

// Open reports whether the breaker is currently rejecting requests.
func (b *Breaker) Open() bool {
	if b.limits.FailureThreshold <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.limits.FailureThreshold && b.now().Before(b.openUntil)
}

// GuardedSource wraps a price source with a Breaker.
type GuardedSource struct {
	next    external.PriceSource
	breaker *Breaker
}

func NewGuardedSource(next external.PriceSource, breaker *Breaker) *GuardedSource {
	return &GuardedSource{next: next, breaker: breaker}
}

func (g *GuardedSource) Name() string { return g.next.Name() }

func (g *GuardedSource) ListStocks(ctx context.Context) (map[string]string, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, err
	}
	stocks, err := g.next.ListStocks(ctx)
	g.breaker.Record(err)
	return stocks, err
}

func (g *GuardedSource) PriceHistory(ctx context.Context, ticker string, minutes int) ([]models.PricePoint, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, err
	}
	points, err := g.next.PriceHistory(ctx, ticker, minutes)
	g.breaker.Record(err)
	return points, err
}
