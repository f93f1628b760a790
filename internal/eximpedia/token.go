package eximpedia

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"hectar-intel/internal/logger"
)

// ErrTokenRefresh is returned when the OAuth2 endpoint cannot be reached or
// keeps failing after all retry attempts.
var ErrTokenRefresh = errors.New("eximpedia: token refresh failed")

const (
	tokenTTL            = 3600 * time.Second
	tokenRefreshTimeout = 30 * time.Second
	refreshAttempts     = 4
	refreshInitialWait  = 2 * time.Second
)

// PlanConstraints is the plan metadata carried in the token response. The
// budget tracker synchronizes its counters against it.
type PlanConstraints struct {
	CreditPoints struct {
		TotalConsumedCredits int64 `json:"total_consumed_credits"`
		TotalAllotedCredits  int64 `json:"total_alloted_credits"`
	} `json:"credit_points"`
	DailyLimitAPI struct {
		ConsumedDailyLimitAPI int `json:"consumed_daily_limit_api"`
	} `json:"daily_limit_api"`
}

type tokenResponse struct {
	AccessToken     string           `json:"AccessToken"`
	PlanConstraints *PlanConstraints `json:"plan_constraints"`
}

// PlanObserver receives plan constraints whenever a token refresh returns
// them. Implemented by the budget tracker.
type PlanObserver interface {
	UpdateFromToken(pc *PlanConstraints)
}

// TokenManager caches the upstream access credential and refreshes it before
// expiry. One instance per process; all callers share the cached token.
type TokenManager struct {
	baseURL       string
	clientID      string
	clientSecret  string
	refreshBuffer time.Duration
	observer      PlanObserver

	http *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewTokenManager creates a token manager for the given credentials.
// observer may be nil.
func NewTokenManager(baseURL, clientID, clientSecret string, refreshBuffer time.Duration, observer PlanObserver) *TokenManager {
	return &TokenManager{
		baseURL:       baseURL,
		clientID:      clientID,
		clientSecret:  clientSecret,
		refreshBuffer: refreshBuffer,
		observer:      observer,
		http:          &http.Client{Timeout: tokenRefreshTimeout},
		now:           time.Now,
	}
}

// GetToken returns a valid access token, refreshing when the cached one is
// within the refresh buffer of its expiry. At most one refresh runs at a
// time; waiters re-check the cache after acquiring the lock.
func (tm *TokenManager) GetToken() (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token != "" && tm.now().Before(tm.expiry.Add(-tm.refreshBuffer)) {
		return tm.token, nil
	}
	return tm.refreshLocked()
}

// Invalidate forces a refresh on the next GetToken call. Used when the
// upstream rejects a request with 401 mid-flight.
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.token = ""
	tm.expiry = time.Time{}
}

// refreshLocked requests a new token, retrying with 2s/4s/8s backoff.
// Caller holds tm.mu.
func (tm *TokenManager) refreshLocked() (string, error) {
	logger.Info("Token", "Refreshing Eximpedia API token...")

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = refreshInitialWait
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	var resp tokenResponse
	op := func() error {
		return tm.requestToken(&resp)
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(bo, refreshAttempts-1)); err != nil {
		logger.Error("Token", fmt.Sprintf("Refresh failed after %d attempts: %v", refreshAttempts, err))
		return "", fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}

	tm.token = resp.AccessToken
	tm.expiry = tm.now().Add(tokenTTL)
	if tm.observer != nil && resp.PlanConstraints != nil {
		tm.observer.UpdateFromToken(resp.PlanConstraints)
	}
	logger.Success("Token", "Token refreshed")
	return tm.token, nil
}

func (tm *TokenManager) requestToken(out *tokenResponse) error {
	body, err := json.Marshal(map[string]string{
		"client_id":     tm.clientID,
		"client_secret": tm.clientSecret,
	})
	if err != nil {
		return backoff.Permanent(err)
	}

	resp, err := tm.http.Post(tm.baseURL+"/oauth2/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("oauth2/token: HTTP %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	if out.AccessToken == "" {
		return fmt.Errorf("oauth2/token: response missing AccessToken")
	}
	return nil
}
