// internal/api/api.go
package api

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"plantframe/internal/conf"
	"plantframe/internal/frame"
	"plantframe/internal/identify"
	"plantframe/internal/logging"
	"plantframe/internal/observability"
	"plantframe/internal/photos"
	"plantframe/internal/plantnet"
)

// IdentifyService is the identification surface the API exposes.
type IdentifyService interface {
	Identify(ctx context.Context, items []plantnet.Submission) (*identify.Identification, error)
	GetAll(ctx context.Context, authToken string) (*identify.IdentifiedCollection, error)
	GetOne(ctx context.Context, authToken string, groupID int) (*identify.EnrichedGroup, []string, error)
	DeleteResult(ctx context.Context, authToken string, groupID, resultID int) (*identify.EnrichedGroup, []string, error)
	SaveManualResult(ctx context.Context, authToken string, groupID int, scientificName string, commonNames []string, family, genus string) (*identify.EnrichedGroup, []string, error)
	RemainingRequests(ctx context.Context) (*int, error)
}

// FrameService is the photo-frame surface the API exposes.
type FrameService interface {
	LoadFromAlbum(ctx context.Context, userID, authToken, albumID string) (*frame.View, error)
	LoadFromSearch(ctx context.Context, userID, authToken string, filters *photos.Filters) (*frame.View, error)
	Queue(ctx context.Context, userID, authToken string) (*frame.View, error)
	Albums(ctx context.Context, userID, authToken string) ([]photos.Album, error)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings
	Identify IdentifyService
	Frame    FrameService

	auth           Provider
	logger         *log.Logger
	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error
	metrics        *observability.Metrics
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithAuthProvider overrides the default header based credential provider.
func WithAuthProvider(p Provider) Option {
	return func(c *Controller) {
		c.auth = p
	}
}

// New creates the API controller and registers its routes on e.
func New(e *echo.Echo, settings *conf.Settings, identifySvc IdentifyService,
	frameSvc FrameService, logger *log.Logger,
	metrics *observability.Metrics, opts ...Option) *Controller {

	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{
		Echo:     e,
		Settings: settings,
		Identify: identifySvc,
		Frame:    frameSvc,
		auth:     HeaderProvider{},
		logger:   logger,
		metrics:  metrics,
	}

	for _, opt := range opts {
		opt(c)
	}

	initialLevel := slog.LevelInfo
	if settings.WebServer.Debug {
		initialLevel = slog.LevelDebug
	}
	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(initialLevel)

	apiLogger, closeFunc, err := logging.NewFileLogger("logs/web.log", "api", c.apiLevelVar)
	if err != nil {
		logger.Printf("Warning: failed to initialize API structured logger: %v", err)
		c.apiLogger = logging.Discard("api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
	}

	c.Group = e.Group("/api/v1")
	c.initRoutes()

	return c
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"identification routes", c.initIdentificationRoutes},
		{"frame routes", c.initFrameRoutes},
	}

	for _, initializer := range routeInitializers {
		c.Debug("Initializing %s...", initializer.name)
		initializer.fn()
	}

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// HealthCheck handles the API health check endpoint
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Shutdown closes controller resources.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Error closing API log file: %v", err)
		}
	}
}

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short unique identifier for error tracking
func generateCorrelationID() string {
	return uuid.NewString()[:8]
}

// HandleError logs the error with a correlation ID and writes the JSON error
// response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	ip := ctx.RealIP()
	c.logger.Printf("API Error [%s] from %s: %s: %v", errorResp.CorrelationID, ip, message, err)

	if c.apiLogger != nil {
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorResp.Error,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ip,
		)
	}

	return ctx.JSON(code, errorResp)
}

// Debug logs debug messages when debug mode is enabled
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		c.logger.Printf("[DEBUG] "+format, v...)
	}
}

// logAPIRequest logs one handled request with common context fields.
func (c *Controller) logAPIRequest(ctx echo.Context, level slog.Level, msg string, args ...any) {
	if c.apiLogger == nil {
		return
	}

	baseAttrs := []any{
		"path", ctx.Request().URL.Path,
		"ip", ctx.RealIP(),
	}
	baseAttrs = append(baseAttrs, args...)

	c.apiLogger.Log(ctx.Request().Context(), level, msg, baseAttrs...)
}
