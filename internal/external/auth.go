package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kjannette/stockagg/internal/httputil"
)

var ErrNoToken = errors.New("no token in auth response")

// Credentials are posted to the token endpoint as JSON. Either the
// email/password pair or the client id/secret pair is expected.
type Credentials struct {
	Email        string `json:"email,omitempty"`
	Password     string `json:"password,omitempty"`
	ClientID     string `json:"clientID,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

func (c Credentials) Empty() bool {
	return c == Credentials{}
}

// CanAuthenticate reports whether RefreshToken has what it needs.
func (c *ExchangeClient) CanAuthenticate() bool {
	return c.tokenURL != "" && !c.creds.Empty()
}

// RefreshToken requests a new bearer token and uses it for all subsequent
// requests. The previous token, if any, is kept when the refresh fails.
func (c *ExchangeClient) RefreshToken(ctx context.Context) error {
	if !c.CanAuthenticate() {
		return fmt.Errorf("token refresh: no token URL or credentials configured")
	}

	body, err := json.Marshal(c.creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	fmt.Printf("[EXCHANGE] Requesting token from %s\n", c.tokenURL)

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("token request: status %d: %s", resp.StatusCode, string(snippet))
	}

	var data struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}

	token := data.Token
	if token == "" {
		token = data.AccessToken
	}
	if token == "" {
		return ErrNoToken
	}

	c.mu.Lock()
	c.token = token
	c.tokenAt = time.Now()
	c.mu.Unlock()

	fmt.Println("[EXCHANGE] Token received successfully")
	return nil
}

func (c *ExchangeClient) HasToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// TokenAge is zero when no token is held.
func (c *ExchangeClient) TokenAge() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return 0
	}
	return time.Since(c.tokenAt)
}
