package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pecal/pecal-reminders/internal/config"
	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/platform/logger"
	"github.com/pecal/pecal-reminders/internal/reminder"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultURL is the public Expo push endpoint.
	DefaultURL = "https://exp.host/--/api/v2/push/send"

	// MaxBatch is the largest number of messages Expo accepts per request.
	MaxBatch = 100

	errDeviceNotRegistered = "DeviceNotRegistered"
	maxErrorBody           = 1024
)

// ErrChunkFailed is wrapped by Send for every chunk that could not be
// delivered.
var ErrChunkFailed = errors.New("expo push chunk failed")

type ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details *struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

type sendResponse struct {
	Data []ticket `json:"data"`
}

type chunkResult struct {
	sent    int
	invalid []string
	err     error
}

// Client implements reminder.PushGateway against the Expo push API.
type Client struct {
	url            string
	accessToken    string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxConcurrency int
	logger         *slog.Logger
}

var _ reminder.PushGateway = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a Client from the push configuration.
func NewClient(cfg config.PushConfig, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}

	url := strings.TrimSpace(cfg.ExpoURL)
	if url == "" {
		url = DefaultURL
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		url:            url,
		accessToken:    strings.TrimSpace(cfg.AccessToken),
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Limit(rps), burst),
		maxConcurrency: concurrency,
		logger:         log.With(slog.String("component", "expo_push")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send implements reminder.PushGateway. Messages whose destination is not an
// Expo token are dropped. A failing chunk does not stop the others; the
// returned result covers every chunk that was delivered and the error joins
// the failures.
func (c *Client) Send(ctx context.Context, messages []domain.PushMessage) (domain.PushResult, error) {
	valid := make([]domain.PushMessage, 0, len(messages))
	for _, m := range messages {
		if domain.IsLikelyExpoPushToken(m.To) {
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 {
		return domain.PushResult{}, nil
	}

	chunks := chunk(valid, MaxBatch)
	results := make([]chunkResult, len(chunks))

	var g errgroup.Group
	g.SetLimit(c.maxConcurrency)
	for i, payload := range chunks {
		i, payload := i, payload
		g.Go(func() error {
			results[i] = c.sendChunk(ctx, payload)
			return nil
		})
	}
	_ = g.Wait()

	var (
		result domain.PushResult
		errs   []error
		seen   = make(map[string]struct{})
	)
	for _, r := range results {
		result.Sent += r.sent
		for _, token := range r.invalid {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			result.InvalidTokens = append(result.InvalidTokens, token)
		}
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return result, errors.Join(errs...)
}

func (c *Client) sendChunk(ctx context.Context, payload []domain.PushMessage) chunkResult {
	log := logger.FromContextOrDefault(ctx, c.logger)

	if err := c.limiter.Wait(ctx); err != nil {
		return chunkResult{err: fmt.Errorf("%w: %v", ErrChunkFailed, err)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return chunkResult{err: fmt.Errorf("%w: failed to encode messages: %v", ErrChunkFailed, err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return chunkResult{err: fmt.Errorf("%w: failed to build request: %v", ErrChunkFailed, err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("expo send error", slog.Int("messages", len(payload)), slog.String("error", err.Error()))
		return chunkResult{err: fmt.Errorf("%w: %v", ErrChunkFailed, err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Error("expo send failed",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(text)))
		return chunkResult{err: fmt.Errorf("%w: status %d", ErrChunkFailed, resp.StatusCode)}
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return chunkResult{err: fmt.Errorf("%w: failed to decode tickets: %v", ErrChunkFailed, err)}
	}

	var out chunkResult
	for i, t := range decoded.Data {
		switch {
		case t.Status == "ok":
			out.sent++
		case t.Status == "error" && t.Details != nil && t.Details.Error == errDeviceNotRegistered:
			if i < len(payload) {
				out.invalid = append(out.invalid, payload[i].To)
			}
		}
	}
	log.Debug("expo chunk delivered",
		slog.Int("messages", len(payload)),
		slog.Int("sent", out.sent),
		slog.Int("invalid", len(out.invalid)))
	return out
}

func chunk(list []domain.PushMessage, size int) [][]domain.PushMessage {
	var out [][]domain.PushMessage
	for start := 0; start < len(list); start += size {
		end := min(start+size, len(list))
		out = append(out, list[start:end])
	}
	return out
}
