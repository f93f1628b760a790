package eximpedia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/time/rate"
)

const (
	requestTimeout  = 60 * time.Second
	requestAttempts = 4
)

// Budget call kinds. Mirrored by the budget tracker.
const (
	CallHarvest = "harvest"
	CallSearch  = "search"
)

// APIError is a non-200 upstream response. Status 0 means the transport
// failed on every attempt.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eximpedia: API error %d: %s", e.Status, e.Body)
}

// ShipmentResponse is the upstream response envelope. The total-record count
// arrives under one of three field names depending on the endpoint.
type ShipmentResponse struct {
	Data                 []map[string]interface{} `json:"data"`
	TotalSearchRecords   *int                     `json:"total_search_records"`
	TotalResponseRecords *int                     `json:"total_response_records"`
	TotalRecords         *int                     `json:"total_records"`
}

// Total returns the advertised total record count, whichever field carries it.
func (r *ShipmentResponse) Total() int {
	for _, v := range []*int{r.TotalSearchRecords, r.TotalResponseRecords, r.TotalRecords} {
		if v != nil {
			return *v
		}
	}
	return 0
}

// availableWindowRe matches the 400 body the upstream returns when a query
// window falls outside the data it holds, e.g.
// "Data for India IMPORT is available from 2016-01-01T00:00:00Z to 2026-02-10T00:00:00Z".
var availableWindowRe = regexp.MustCompile(`available from (\d{4}-\d{2}-\d{2}).*?to (\d{4}-\d{2}-\d{2})`)

// ParseAvailableWindow extracts the advertised valid date window from a 400
// error body.
func ParseAvailableWindow(body string) (start, end string, ok bool) {
	m := availableWindowRe.FindStringSubmatch(body)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// CallRecorder counts upstream API calls against the daily budget.
type CallRecorder interface {
	RecordCall(kind string)
}

// Client is the rate-limited, retrying Eximpedia HTTP client. At most
// maxConcurrent requests are in flight per process, and consecutive request
// submissions are spaced by the minimum interval.
type Client struct {
	baseURL  string
	tokens   *TokenManager
	http     *http.Client
	sem      chan struct{}
	limiter  *rate.Limiter
	pageSize int
	recorder CallRecorder // may be nil

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. recorder may be nil when budget accounting is
// not wanted (tests, ad-hoc tooling).
func NewClient(baseURL string, tokens *TokenManager, maxConcurrent int, minInterval time.Duration, pageSize int, recorder CallRecorder) *Client {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Client{
		baseURL:  baseURL,
		tokens:   tokens,
		http:     &http.Client{Timeout: requestTimeout},
		sem:      make(chan struct{}, maxConcurrent),
		limiter:  rate.NewLimiter(limit, 1),
		pageSize: pageSize,
		recorder: recorder,
		sleep:    sleepCtx,
	}
}

// TradeShipment fetches a single page of shipment records.
func (c *Client) TradeShipment(ctx context.Context, q ShipmentQuery, kind string) (*ShipmentResponse, error) {
	return c.request(ctx, "/trade/shipment", q, kind)
}

// ImporterSummary queries the importer summary endpoint.
func (c *Client) ImporterSummary(ctx context.Context, q ShipmentQuery, kind string) (*ShipmentResponse, error) {
	return c.request(ctx, "/importer/summary", q, kind)
}

// ExporterSummary queries the exporter summary endpoint.
func (c *Client) ExporterSummary(ctx context.Context, q ShipmentQuery, kind string) (*ShipmentResponse, error) {
	return c.request(ctx, "/exporter/summary", q, kind)
}

// TradeShipmentAll fetches every page of a shipment query, repaginating until
// the accumulated records reach the advertised total or a page comes back
// empty. Pages are fetched in order.
func (c *Client) TradeShipmentAll(ctx context.Context, q ShipmentQuery, kind string) ([]map[string]interface{}, error) {
	var all []map[string]interface{}
	total := -1

	for page := 1; ; page++ {
		q.PageNo = page
		q.PageSize = c.pageSize

		resp, err := c.TradeShipment(ctx, q, kind)
		if err != nil {
			return nil, err
		}
		if total < 0 {
			total = resp.Total()
		}
		all = append(all, resp.Data...)

		log.Printf("[Eximpedia] Page %d: fetched %d records (%d/%d total)",
			page, len(resp.Data), len(all), total)

		if len(all) >= total || len(resp.Data) == 0 {
			return all, nil
		}
	}
}

// request runs the per-request algorithm: semaphore, pacing, bearer auth,
// 401 refresh inside the attempt, 429 and transport backoff, up to four
// attempts.
func (c *Client) request(ctx context.Context, endpoint string, payload interface{}, kind string) (*ShipmentResponse, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	token, err := c.tokens.GetToken()
	if err != nil {
		return nil, err
	}

	refreshed := false
	var lastErr error

	for attempt := 0; attempt < requestAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		if c.recorder != nil {
			c.recorder.RecordCall(kind)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			wait := time.Duration(1<<(attempt+1)) * time.Second // 2s, 4s, 8s
			log.Printf("[Eximpedia] %s failed (attempt %d/%d): %v", endpoint, attempt+1, requestAttempts, err)
			if attempt < requestAttempts-1 {
				if serr := c.sleep(ctx, wait); serr != nil {
					return nil, serr
				}
			}
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var out ShipmentResponse
			decErr := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if decErr != nil {
				return nil, fmt.Errorf("decode %s: %w", endpoint, decErr)
			}
			return &out, nil

		case http.StatusUnauthorized:
			resp.Body.Close()
			if refreshed {
				return nil, fmt.Errorf("%w: repeated 401 from %s", ErrTokenRefresh, endpoint)
			}
			// Token expired mid-flight. Refresh and retry without consuming
			// the attempt budget.
			c.tokens.Invalidate()
			token, err = c.tokens.GetToken()
			if err != nil {
				return nil, err
			}
			refreshed = true
			attempt--
			continue

		case http.StatusTooManyRequests:
			resp.Body.Close()
			wait := time.Duration(1<<(attempt+2)) * time.Second // 4s, 8s, 16s, 32s
			log.Printf("[Eximpedia] Rate limited on %s (attempt %d/%d), waiting %s",
				endpoint, attempt+1, requestAttempts, wait)
			lastErr = &APIError{Status: http.StatusTooManyRequests, Body: "rate limited"}
			if serr := c.sleep(ctx, wait); serr != nil {
				return nil, serr
			}
			continue

		default:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
			resp.Body.Close()
			return nil, &APIError{Status: resp.StatusCode, Body: string(msg)}
		}
	}

	if apiErr, ok := lastErr.(*APIError); ok {
		return nil, apiErr
	}
	return nil, &APIError{Status: 0, Body: fmt.Sprintf("exhausted all retry attempts: %v", lastErr)}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
