package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// tokenStore guards the cached bearer credential. Read path is a fast-exit
// when the cached token is still fresh, per the backend token being a
// process-wide value owned by the client rather than a free-standing
// singleton.
type tokenStore struct {
	mu          sync.Mutex
	httpClient  *http.Client
	baseURL     string
	password    string
	token       string
	acquiredAt  time.Time
	refreshAfter time.Duration
	validFor     time.Duration
}

func newTokenStore(baseURL, password string, refreshAfter, validFor time.Duration) *tokenStore {
	return &tokenStore{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		baseURL:      baseURL,
		password:     password,
		refreshAfter: refreshAfter,
		validFor:     validFor,
	}
}

// Token returns the current bearer token, fetching one if none has been
// acquired yet.
func (t *tokenStore) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token == "" {
		if err := t.fetchLocked(ctx); err != nil {
			return "", err
		}
	}
	return t.token, nil
}

// RefreshIfStale fetches a new token when age exceeds refreshAfter. Called
// on reconnect. A fetch failure is never fatal: the stale token is kept and
// the next reconnect tries again (defer-to-next-reconnect policy).
func (t *tokenStore) RefreshIfStale(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Since(t.acquiredAt) < t.refreshAfter {
		return nil
	}
	return t.fetchLocked(ctx)
}

// Age reports how long the cached token has been held, for diagnostics.
func (t *tokenStore) Age() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token == "" {
		return 0
	}
	return time.Since(t.acquiredAt)
}

func (t *tokenStore) fetchLocked(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"password": t.password})
	if err != nil {
		return fmt.Errorf("backend: encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend: login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend: login returned status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend: read login response: %w", err)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return fmt.Errorf("backend: decode login response: %w", err)
	}
	if out.Token == "" {
		return fmt.Errorf("backend: login response carried no token")
	}

	t.token = out.Token
	t.acquiredAt = time.Now()
	return nil
}
