// Package settlement is the HTTP client of the external escrow settlement API.
// Every operation that needs a counterparty signature returns an unsigned
// transaction; SendTransaction relays the signed form.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"escrow-marketplace/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxErrorBody = 4 << 10

// Options configures a Client.
type Options struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	HTTPClient     *http.Client
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// Client talks to the settlement API. Outbound calls share one token bucket.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewClient creates a Client. A zero RateLimitRPS disables throttling.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// DeployEscrow prepares a single-release escrow deployment.
func (c *Client) DeployEscrow(ctx context.Context, req DeployRequest) (*UnsignedTransaction, error) {
	return c.unsigned(ctx, "deploy", "/deployer/single-release", req)
}

// FundEscrow prepares the funding transaction of an escrow.
func (c *Client) FundEscrow(ctx context.Context, req FundRequest) (*UnsignedTransaction, error) {
	return c.unsigned(ctx, "fund", "/escrow/fund", req)
}

// ApproveMilestone prepares the approval of a milestone.
func (c *Client) ApproveMilestone(ctx context.Context, req ApproveMilestoneRequest) (*UnsignedTransaction, error) {
	return c.unsigned(ctx, "approve_milestone", "/milestone/approve", req)
}

// ReleaseFunds prepares the release of a single-release escrow.
func (c *Client) ReleaseFunds(ctx context.Context, req ReleaseRequest) (*UnsignedTransaction, error) {
	return c.unsigned(ctx, "release", "/escrow/release-funds/single-release", req)
}

// SendTransaction relays a signed transaction to the rail.
func (c *Client) SendTransaction(ctx context.Context, signedXDR string) (*SendResult, error) {
	var res SendResult
	if err := c.do(ctx, "send", "/transaction/send", sendRequest{SignedXDR: signedXDR}, &res); err != nil {
		return nil, err
	}
	if strings.EqualFold(res.Status, "FAILED") {
		return nil, &APIError{StatusCode: http.StatusOK, Message: res.Message, Body: "relay status FAILED"}
	}
	return &res, nil
}

func (c *Client) unsigned(ctx context.Context, op, path string, body any) (*UnsignedTransaction, error) {
	var res UnsignedTransaction
	if err := c.do(ctx, op, path, body, &res); err != nil {
		return nil, err
	}
	if res.XDR == "" {
		return nil, fmt.Errorf("%s: missing unsignedTransaction: %w", op, ErrMalformedResponse)
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, op, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.GatewayCall(op, "transport_error", time.Since(start))
		c.logger.Warn("Settlement request failed", zap.String("operation", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	c.metrics.GatewayCall(op, fmt.Sprintf("%dxx", resp.StatusCode/100), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := parseAPIError(resp.StatusCode, raw)
		c.logger.Warn("Settlement API returned error",
			zap.String("operation", op), zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code), zap.String("message", apiErr.Message))
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// parseAPIError accepts {"code","message"}, {"error":{"code","message"}} and plain text bodies.
func parseAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: strings.TrimSpace(string(raw))}

	var flat struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &flat); err != nil {
		return apiErr
	}
	apiErr.Code, apiErr.Message = flat.Code, flat.Message

	if len(flat.Error) > 0 {
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		var text string
		switch {
		case json.Unmarshal(flat.Error, &nested) == nil:
			if apiErr.Code == "" {
				apiErr.Code = nested.Code
			}
			if apiErr.Message == "" {
				apiErr.Message = nested.Message
			}
		case json.Unmarshal(flat.Error, &text) == nil && apiErr.Message == "":
			apiErr.Message = text
		}
	}
	return apiErr
}

// IsTransient reports whether err is worth retrying by the caller.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return !errors.Is(err, ErrMalformedResponse) && !errors.Is(err, context.Canceled)
}
