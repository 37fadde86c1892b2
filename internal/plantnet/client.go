// Package plantnet provides a client for the Pl@ntNet plant identification
// API.
package plantnet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"plantframe/internal/errors"
	"plantframe/internal/logging"
	"plantframe/internal/observability/metrics"
)

// Package-level logger specific to the plantnet service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "plantnet.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "plantnet", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize plantnet file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.Discard("plantnet")
		closeLogger = func() error { return nil }
	}
}

// Client provides methods for interacting with the Pl@ntNet API
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.IdentifyMetrics
}

// NewClient creates a new Pl@ntNet API client
func NewClient(config Config, m *metrics.IdentifyMetrics) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.Newf("Pl@ntNet API key is required").
			Category(errors.CategoryConfiguration).
			Component("plantnet").
			Build()
	}

	if config.Endpoint == "" {
		config.Endpoint = DefaultConfig().Endpoint
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.RateLimitMS == 0 {
		config.RateLimitMS = DefaultConfig().RateLimitMS
	}

	client := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Duration(config.RateLimitMS)*time.Millisecond), 1),
		metrics: m,
	}

	logger.Info("Pl@ntNet client initialized",
		"endpoint", config.Endpoint,
		"rate_limit_ms", config.RateLimitMS,
		"api_key_configured", config.APIKey != "")

	return client, nil
}

// Close releases client resources.
func (c *Client) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing plantnet logger: %v", err)
		}
	}
}

// Identify submits the given images to the identification API and returns
// the raw scored candidates. The caller owns batch-size validation and score
// normalization; this client owns transport, rate limiting, and error shape
// normalization.
func (c *Client) Identify(ctx context.Context, items []Submission) (*Response, error) {
	if len(items) == 0 {
		return nil, errors.Newf("no images submitted for identification").
			Category(errors.CategoryValidation).
			Component("plantnet").
			Build()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Newf("identification request cancelled: %w", err).
			Category(errors.CategoryIdentification).
			Component("plantnet").
			Build()
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	reqURL := c.buildIdentifyURL(items)

	if c.metrics != nil {
		c.metrics.APICalls.Inc()
	}
	start := time.Now()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, c.apiFailure("failed to create identification request", err, 0)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Pl@ntNet API request failed",
			"error", err,
			"images", len(items))
		return nil, c.apiFailure("identification API unreachable", err, 0)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.apiFailure("failed to read identification response", err, resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		return nil, c.statusError(resp.StatusCode, bodyBytes)
	}

	var result Response
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		logger.Error("Failed to parse Pl@ntNet response",
			"error", err,
			"response_size", len(bodyBytes))
		return nil, c.apiFailure("malformed identification response", err, resp.StatusCode)
	}

	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.APIDuration.Observe(duration.Seconds())
	}
	logger.Info("identification complete",
		"images", len(items),
		"candidates", len(result.Results),
		"requests_left", result.RemainingIdentificationRequests,
		"duration_ms", duration.Milliseconds())

	return &result, nil
}

// buildIdentifyURL builds the GET URL with repeated images and organs
// parameters, one pair per submitted item, in submission order.
func (c *Client) buildIdentifyURL(items []Submission) string {
	params := url.Values{}
	params.Set("api-key", c.config.APIKey)
	for i := range items {
		params.Add("images", items[i].URL)
		params.Add("organs", items[i].Organ)
	}
	return c.config.Endpoint + "?" + params.Encode()
}

// statusError normalizes the duck-typed API error bodies into a single
// identification failure kind.
func (c *Client) statusError(statusCode int, body []byte) error {
	message := ""

	var flat apiError
	if err := json.Unmarshal(body, &flat); err == nil && flat.Message != "" {
		message = flat.Message
	} else {
		var wrapped wrappedAPIError
		if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
			message = wrapped.Error.Message
		}
	}
	if message == "" {
		message = string(body)
	}

	logger.Warn("Pl@ntNet API error response",
		"status_code", statusCode,
		"message", message)

	return c.apiFailure(fmt.Sprintf("identification API error: %s", message), nil, statusCode)
}

func (c *Client) apiFailure(msg string, err error, statusCode int) error {
	if c.metrics != nil {
		c.metrics.APIErrors.Inc()
	}
	builder := errors.Newf("%s", msg)
	if err != nil {
		builder = errors.Newf("%s: %w", msg, err)
	}
	builder = builder.
		Category(errors.CategoryIdentification).
		Component("plantnet")
	if statusCode > 0 {
		builder = builder.Context("status_code", statusCode)
	}
	return builder.Build()
}
