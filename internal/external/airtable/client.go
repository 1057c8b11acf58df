package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"ritualsync/internal/external"
	"ritualsync/internal/logging"
	"ritualsync/internal/services"
)

const (
	// DefaultBaseURL is the public Airtable API root.
	DefaultBaseURL = "https://api.airtable.com/v0"

	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 30 * time.Second
)

// Config captures the connection settings for one table.
type Config struct {
	APIToken          string
	BaseID            string
	Table             string
	View              string
	BaseURL           string
	PageSize          int
	BatchSize         int
	RequestsPerSecond float64
	TimeoutSeconds    int
}

// Client talks to one Airtable table.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(context.Context, time.Duration) error
	now              func() time.Time

	minInterval time.Duration
	mu          sync.Mutex
	lastCall    time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithLogger attaches a logger for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "airtable")
	}
}

// New constructs a client. Missing sizes fall back to the API ceilings.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	cfg.BaseID = strings.TrimSpace(cfg.BaseID)
	cfg.Table = strings.TrimSpace(cfg.Table)
	cfg.View = strings.TrimSpace(cfg.View)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.APIToken == "" {
		return nil, services.Wrap(services.ErrConfiguration, "airtable", "init", "api token required", nil)
	}
	if cfg.BaseID == "" || cfg.Table == "" {
		return nil, services.Wrap(services.ErrConfiguration, "airtable", "init", "base id and table required", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 || cfg.PageSize > external.MaxPageSize {
		cfg.PageSize = external.MaxPageSize
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > external.MaxBatchSize {
		cfg.BatchSize = external.MaxBatchSize
	}
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: timeout},
		logger:           logging.NewComponentLogger(nil, "airtable"),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		sleeper:          sleepWithContext,
		now:              time.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		c.minInterval = time.Duration(float64(time.Second) / cfg.RequestsPerSecond)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type listResponse struct {
	Records []apiRecord `json:"records"`
	Offset  string      `json:"offset"`
}

type apiRecord struct {
	ID          string          `json:"id,omitempty"`
	CreatedTime string          `json:"createdTime,omitempty"`
	Fields      external.Fields `json:"fields"`
}

type writeRequest struct {
	Records  []apiRecord `json:"records"`
	Typecast bool        `json:"typecast"`
}

type apiError struct {
	Error json.RawMessage `json:"error"`
}

// ReadAll pages through the table until the offset cursor runs out.
func (c *Client) ReadAll(ctx context.Context, q external.Query) ([]external.Row, error) {
	var rows []external.Row
	offset := ""
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
		view := q.View
		if view == "" {
			view = c.cfg.View
		}
		if view != "" {
			params.Set("view", view)
		}
		if formula := q.FilterFormula(); formula != "" {
			params.Set("filterByFormula", formula)
		}
		if q.MaxRecords > 0 {
			params.Set("maxRecords", strconv.Itoa(q.MaxRecords))
		}
		if offset != "" {
			params.Set("offset", offset)
		}
		var resp listResponse
		if err := c.do(ctx, http.MethodGet, params, nil, &resp, "read"); err != nil {
			return nil, err
		}
		for _, rec := range resp.Records {
			rows = append(rows, external.Row{ID: rec.ID, Fields: rec.Fields})
		}
		c.logger.Debug("airtable page read",
			logging.Int("page", page),
			logging.Int("rows", len(resp.Records)),
			logging.Bool("more", resp.Offset != ""),
		)
		if resp.Offset == "" || (q.MaxRecords > 0 && len(rows) >= q.MaxRecords) {
			break
		}
		offset = resp.Offset
	}
	if q.MaxRecords > 0 && len(rows) > q.MaxRecords {
		rows = rows[:q.MaxRecords]
	}
	return rows, nil
}

// BatchCreate inserts rows in chunks. The first failing chunk aborts the call;
// earlier chunks stay committed.
func (c *Client) BatchCreate(ctx context.Context, rows []external.Fields) error {
	for i, chunk := range external.Chunk(rows, c.cfg.BatchSize) {
		body := writeRequest{Typecast: true, Records: make([]apiRecord, 0, len(chunk))}
		for _, fields := range chunk {
			body.Records = append(body.Records, apiRecord{Fields: fields})
		}
		if err := c.do(ctx, http.MethodPost, nil, body, nil, "create"); err != nil {
			return fmt.Errorf("create chunk %d: %w", i+1, err)
		}
	}
	return nil
}

// BatchUpdate patches rows in chunks. Columns absent from an update are left
// untouched by the API.
func (c *Client) BatchUpdate(ctx context.Context, updates []external.RowUpdate) error {
	for i, chunk := range external.Chunk(updates, c.cfg.BatchSize) {
		body := writeRequest{Typecast: true, Records: make([]apiRecord, 0, len(chunk))}
		for _, u := range chunk {
			if strings.TrimSpace(u.ID) == "" {
				return services.Wrap(services.ErrValidation, "airtable", "update", "row id required", nil)
			}
			body.Records = append(body.Records, apiRecord{ID: u.ID, Fields: u.Fields})
		}
		if err := c.do(ctx, http.MethodPatch, nil, body, nil, "update"); err != nil {
			return fmt.Errorf("update chunk %d: %w", i+1, err)
		}
	}
	return nil
}

func (c *Client) endpoint(params url.Values) (string, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, c.cfg.BaseID, c.cfg.Table)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "airtable", "build url", "", err)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return endpoint, nil
}

type statusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) do(ctx context.Context, method string, params url.Values, body any, out any, op string) error {
	endpoint, err := c.endpoint(params)
	if err != nil {
		return err
	}
	var encoded []byte
	if body != nil {
		encoded, err = json.Marshal(body)
		if err != nil {
			return services.Wrap(services.ErrValidation, "airtable", op, "encode body", err)
		}
	}
	attempts := max(c.retryMaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.waitForWindow(ctx); err != nil {
			return err
		}
		respBody, err := c.sendOnce(ctx, method, endpoint, encoded)
		c.markCall()
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return services.Wrap(services.ErrDecode, "airtable", op, "decode response", err)
			}
			return nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return classify(op, err)
		}
		logging.WarnWithContext(c.logger, "airtable request failed, retrying", "airtable_retry",
			logging.String("operation", op),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("backoff", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check Airtable rate limits and network connectivity"),
			logging.String(logging.FieldImpact, "request delayed"),
		)
		if err := c.sleeper(ctx, delay); err != nil {
			return err
		}
	}
	return classify(op, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr))
}

func classify(op string, err error) error {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "airtable", op, "credentials rejected", err)
		case http.StatusNotFound:
			return services.Wrap(services.ErrNotFound, "airtable", op, "base or table not found", err)
		case http.StatusUnprocessableEntity:
			return services.Wrap(services.ErrValidation, "airtable", op, "rows rejected", err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.Wrap(services.ErrTransport, "airtable", op, "", err)
}

func (c *Client) sendOnce(ctx context.Context, method, endpoint string, encoded []byte) ([]byte, error) {
	var reader io.Reader
	if encoded != nil {
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	if encoded != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		message := strings.TrimSpace(string(body))
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && len(apiErr.Error) > 0 {
			message = strings.TrimSpace(string(apiErr.Error))
		}
		return body, &statusError{StatusCode: resp.StatusCode, Body: message, RetryAfter: retryAfter}
	}
	return body, nil
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > c.retryMaxDelay/2 {
			delay = c.retryMaxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) waitForWindow(ctx context.Context) error {
	if c.minInterval <= 0 {
		return ctx.Err()
	}
	c.mu.Lock()
	last := c.lastCall
	c.mu.Unlock()
	if last.IsZero() {
		return ctx.Err()
	}
	elapsed := c.now().Sub(last)
	if elapsed >= c.minInterval {
		return ctx.Err()
	}
	return c.sleeper(ctx, c.minInterval-elapsed)
}

func (c *Client) markCall() {
	c.mu.Lock()
	c.lastCall = c.now()
	c.mu.Unlock()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

var _ external.Store = (*Client)(nil)
