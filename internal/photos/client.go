// Package photos provides a client for the photo library API: paged search
// and album listing for the frame, and per-item detail fetches used to
// enrich identification groups.
package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"plantframe/internal/errors"
	"plantframe/internal/logging"
	"plantframe/internal/observability/metrics"
)

// Package-level logger specific to the photos service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "photos.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "photos", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize photos file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.Discard("photos")
		closeLogger = func() error { return nil }
	}
}

// ItemGetter fetches media item details for group enrichment.
type ItemGetter interface {
	GetMediaItems(ctx context.Context, authToken string, ids []string) ([]MediaItem, []error)
}

// Client provides methods for interacting with the photo library API
type Client struct {
	config      Config
	httpClient  *http.Client
	detailCache *cache.Cache
	metrics     *metrics.PhotoMetrics
}

// NewClient creates a new photo library API client
func NewClient(config Config, m *metrics.PhotoMetrics) *Client {
	defaults := DefaultConfig()
	if config.APIEndpoint == "" {
		config.APIEndpoint = defaults.APIEndpoint
	}
	if config.SearchPageSize == 0 {
		config.SearchPageSize = defaults.SearchPageSize
	}
	if config.AlbumPageSize == 0 {
		config.AlbumPageSize = defaults.AlbumPageSize
	}
	if config.PhotosToLoad == 0 {
		config.PhotosToLoad = defaults.PhotosToLoad
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.DetailCacheTTL == 0 {
		config.DetailCacheTTL = defaults.DetailCacheTTL
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		detailCache: cache.New(config.DetailCacheTTL, config.DetailCacheTTL*2),
		metrics:     m,
	}
}

// Close releases client resources.
func (c *Client) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing photos logger: %v", err)
		}
	}
}

// Search submits a media item search and pages through results until at
// least PhotosToLoad images are collected or no further page exists. Videos
// and sparse entries are filtered out, the album load path cannot apply a
// media type filter server side.
func (c *Client) Search(ctx context.Context, authToken string, params SearchParams) (*SearchResult, error) {
	var items []MediaItem

	params.PageSize = c.config.SearchPageSize
	params.PageToken = ""

	for {
		logger.Info("submitting library search",
			"album_id", params.AlbumID,
			"page_token_set", params.PageToken != "",
			"collected", len(items))

		var page searchResponse
		if err := c.doRequest(ctx, http.MethodPost, "/v1/mediaItems:search", authToken, params, &page); err != nil {
			return nil, err
		}

		for i := range page.MediaItems {
			item := page.MediaItems[i]
			if item.ID == "" {
				continue
			}
			if !strings.HasPrefix(item.MimeType, "image/") {
				continue
			}
			items = append(items, item)
		}

		params.PageToken = page.NextPageToken
		if params.PageToken == "" || len(items) >= c.config.PhotosToLoad {
			break
		}
	}

	logger.Info("library search complete", "images", len(items))
	return &SearchResult{MediaItems: items, Parameters: params.Stripped()}, nil
}

// ListAlbums returns every album owned by the user, paging to the end.
func (c *Client) ListAlbums(ctx context.Context, authToken string) ([]Album, error) {
	var albums []Album
	pageToken := ""

	for {
		path := fmt.Sprintf("/v1/albums?pageSize=%d", c.config.AlbumPageSize)
		if pageToken != "" {
			path += "&pageToken=" + pageToken
		}

		var page albumsResponse
		if err := c.doRequest(ctx, http.MethodGet, path, authToken, nil, &page); err != nil {
			return nil, err
		}

		for i := range page.Albums {
			if page.Albums[i].ID == "" {
				continue
			}
			albums = append(albums, page.Albums[i])
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	logger.Info("albums loaded", "count", len(albums))
	return albums, nil
}

// GetMediaItem fetches full detail for one media item, consulting the
// in-process detail cache first. Base URLs expire upstream, so the cache TTL
// stays below that limit.
func (c *Client) GetMediaItem(ctx context.Context, authToken, id string) (*MediaItem, error) {
	if cached, found := c.detailCache.Get(id); found {
		if item, ok := cached.(*MediaItem); ok {
			if c.metrics != nil {
				c.metrics.CacheHits.Inc()
			}
			return item, nil
		}
	}
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	var item MediaItem
	if err := c.doRequest(ctx, http.MethodGet, "/v1/mediaItems/"+id, authToken, nil, &item); err != nil {
		return nil, err
	}

	c.detailCache.Set(id, &item, cache.DefaultExpiration)
	return &item, nil
}

// GetMediaItems fetches details for each id in turn. Failures are collected
// per item and never abort the batch.
func (c *Client) GetMediaItems(ctx context.Context, authToken string, ids []string) ([]MediaItem, []error) {
	items := make([]MediaItem, 0, len(ids))
	var itemErrors []error

	for _, id := range ids {
		item, err := c.GetMediaItem(ctx, authToken, id)
		if err != nil {
			logger.Error("failed to fetch media item", "media_id", id, "error", err)
			itemErrors = append(itemErrors, err)
			continue
		}
		items = append(items, *item)
	}

	return items, itemErrors
}

// doRequest performs one authenticated JSON request against the library API.
func (c *Client) doRequest(ctx context.Context, method, path, authToken string, body, result any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if c.metrics != nil {
		c.metrics.APICalls.Inc()
	}
	start := time.Now()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return c.apiFailure("failed to encode request", err, 0)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.config.APIEndpoint+path, reqBody)
	if err != nil {
		return c.apiFailure("failed to create request", err, 0)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("library API request failed",
			"method", method,
			"path", path,
			"error", err)
		return c.apiFailure("photo library unreachable", err, 0)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.apiFailure("failed to read library response", err, resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		message := string(bodyBytes)
		var envelope apiErrorBody
		if err := json.Unmarshal(bodyBytes, &envelope); err == nil && envelope.Error.Message != "" {
			message = envelope.Error.Message
		}
		logger.Warn("library API error response",
			"method", method,
			"path", path,
			"status_code", resp.StatusCode,
			"message", message)
		return c.apiFailure(fmt.Sprintf("photo library error: %s", message), nil, resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return c.apiFailure("malformed library response", err, resp.StatusCode)
		}
	}

	if c.metrics != nil {
		c.metrics.APIDuration.Observe(time.Since(start).Seconds())
	}
	return nil
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
		Category(errors.CategoryImageFetch).
		Component("photos")
	if statusCode > 0 {
		builder = builder.Context("status_code", statusCode)
	}
	return builder.Build()
}
