// identifications.go contains API endpoints for plant identification groups
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"plantframe/internal/errors"
	"plantframe/internal/identify"
	"plantframe/internal/plantnet"
)

// initIdentificationRoutes registers the identification endpoints
func (c *Controller) initIdentificationRoutes() {
	c.Group.POST("/identify", c.PostIdentify)
	c.Group.GET("/identifications", c.GetIdentifications)
	c.Group.GET("/identifications/:groupID", c.GetIdentification)
	c.Group.POST("/identifications/:groupID/results", c.PostManualResult)
	c.Group.DELETE("/identifications/:groupID/results/:resultID", c.DeleteIdentificationResult)
	c.Group.GET("/quota", c.GetQuota)
}

// IdentifyRequest is the body of an identification submission.
type IdentifyRequest struct {
	Items []plantnet.Submission `json:"items"`
}

// ManualResultRequest is the body of a manual identification submission.
type ManualResultRequest struct {
	ScientificName string   `json:"scientificName"`
	CommonNames    []string `json:"commonNames"`
	Family         string   `json:"family"`
	Genus          string   `json:"genus"`
}

// GroupResponse is a single identification group with its resolved photos
// and any per-photo lookup failures.
type GroupResponse struct {
	Identification *identify.EnrichedGroup `json:"identification"`
	Errors         []string                `json:"errors,omitempty"`
}

// statusFor maps a service error to an HTTP status code.
func statusFor(err error) int {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// PostIdentify submits a batch of photos for identification and creates a
// new group from the results.
func (c *Controller) PostIdentify(ctx echo.Context) error {
	if _, err := c.auth.Credentials(ctx); err != nil {
		return c.HandleError(ctx, err, "Authentication required", statusFor(err))
	}

	var req IdentifyRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	result, err := c.Identify.Identify(ctx.Request().Context(), req.Items)
	if err != nil {
		return c.HandleError(ctx, err, "Identification failed", statusFor(err))
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Identified photo batch",
		"group_id", result.GroupID,
		"items", len(req.Items),
		"results", len(result.Results),
		"partial_errors", len(result.Errors),
	)
	return ctx.JSON(http.StatusOK, result)
}

// GetIdentifications returns every identification group, newest first, with
// the photos of each group resolved.
func (c *Controller) GetIdentifications(ctx echo.Context) error {
	creds, err := c.auth.Credentials(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Authentication required", statusFor(err))
	}

	collection, err := c.Identify.GetAll(ctx.Request().Context(), creds.AuthToken)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load identifications", statusFor(err))
	}

	return ctx.JSON(http.StatusOK, collection)
}

// GetIdentification returns one identification group by id.
func (c *Controller) GetIdentification(ctx echo.Context) error {
	creds, err := c.auth.Credentials(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Authentication required", statusFor(err))
	}

	groupID, err := c.pathID(ctx, "groupID")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid group id", http.StatusBadRequest)
	}

	group, itemErrors, err := c.Identify.GetOne(ctx.Request().Context(), creds.AuthToken, groupID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load identification", statusFor(err))
	}

	return ctx.JSON(http.StatusOK, GroupResponse{Identification: group, Errors: itemErrors})
}

// PostManualResult prepends a manually entered identification result to a
// group.
func (c *Controller) PostManualResult(ctx echo.Context) error {
	creds, err := c.auth.Credentials(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Authentication required", statusFor(err))
	}

	groupID, err := c.pathID(ctx, "groupID")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid group id", http.StatusBadRequest)
	}

	var req ManualResultRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.ScientificName == "" {
		return c.HandleError(ctx, errors.NewStd("scientificName is required"),
			"Invalid request body", http.StatusBadRequest)
	}

	group, itemErrors, err := c.Identify.SaveManualResult(ctx.Request().Context(),
		creds.AuthToken, groupID, req.ScientificName, req.CommonNames, req.Family, req.Genus)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to save manual result", statusFor(err))
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Saved manual result",
		"group_id", groupID,
		"scientific_name", req.ScientificName,
	)
	return ctx.JSON(http.StatusOK, GroupResponse{Identification: group, Errors: itemErrors})
}

// DeleteIdentificationResult removes one result from a group.
func (c *Controller) DeleteIdentificationResult(ctx echo.Context) error {
	creds, err := c.auth.Credentials(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Authentication required", statusFor(err))
	}

	groupID, err := c.pathID(ctx, "groupID")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid group id", http.StatusBadRequest)
	}
	resultID, err := c.pathID(ctx, "resultID")
	if err != nil {
		return c.HandleError(ctx, err, "Invalid result id", http.StatusBadRequest)
	}

	group, itemErrors, err := c.Identify.DeleteResult(ctx.Request().Context(),
		creds.AuthToken, groupID, resultID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to delete result", statusFor(err))
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Deleted identification result",
		"group_id", groupID,
		"result_id", resultID,
	)
	return ctx.JSON(http.StatusOK, GroupResponse{Identification: group, Errors: itemErrors})
}

// GetQuota reports the remaining identification API requests.
func (c *Controller) GetQuota(ctx echo.Context) error {
	remaining, err := c.Identify.RemainingRequests(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load quota", statusFor(err))
	}
	// Single-element array, null until an identification reveals the quota.
	return ctx.JSON(http.StatusOK, []*int{remaining})
}

// pathID parses a positive-or-zero integer path parameter.
func (c *Controller) pathID(ctx echo.Context, name string) (int, error) {
	raw := ctx.Param(name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, errors.Newf("invalid %s %q", name, raw).
			Category(errors.CategoryValidation).
			Component("api").
			Build()
	}
	return id, nil
}
