package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kjannette/stockagg/internal/httputil"
)

const defaultAlertInterval = 10 * time.Minute

// Alerter reports service degradation (for example serving fallback data)
// to a Slack or Discord webhook. Each key alerts at most once per interval;
// every event is still logged.
type Alerter struct {
	webhookURL  string
	serviceName string
	interval    time.Duration
	httpClient  *http.Client
	retry       httputil.RetryConfig

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time

	inflight sync.WaitGroup
}

func NewAlerter(webhookURL, serviceName string, interval time.Duration) *Alerter {
	if serviceName == "" {
		serviceName = "StockAggregator"
	}
	if interval <= 0 {
		interval = defaultAlertInterval
	}
	return &Alerter{
		webhookURL:  webhookURL,
		serviceName: serviceName,
		interval:    interval,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Degraded logs msg and, unless key alerted within the interval, posts it
// in the background. It reports whether a webhook post was started.
func (a *Alerter) Degraded(key, msg string) bool {
	formatted := fmt.Sprintf("[%s] %s", a.serviceName, msg)
	fmt.Printf("[ALERT] %s\n", formatted)

	if a.webhookURL == "" || !a.claim(key) {
		return false
	}

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.post(formatted)
	}()
	return true
}

// Wait blocks until every started webhook post has finished.
func (a *Alerter) Wait() {
	a.inflight.Wait()
}

func (a *Alerter) claim(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if last, ok := a.lastSent[key]; ok && now.Sub(last) < a.interval {
		return false
	}
	a.lastSent[key] = now
	return true
}

func (a *Alerter) post(msg string) {
	body, err := json.Marshal(a.formatPayload(msg))
	if err != nil {
		fmt.Printf("[ALERT ERROR] marshal: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, a.httpClient, a.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		fmt.Printf("[ALERT ERROR] Webhook delivery failed: %v\n", err)
		return
	}
	resp.Body.Close()
}

func (a *Alerter) formatPayload(msg string) map[string]string {
	if strings.Contains(a.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": a.serviceName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": a.serviceName,
	}
}

func (a *Alerter) Enabled() bool {
	return a.webhookURL != ""
}
