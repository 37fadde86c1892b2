// frame.go contains API endpoints for the photo frame
package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"plantframe/internal/errors"
	"plantframe/internal/photos"
)

// initFrameRoutes registers the photo frame endpoints
func (c *Controller) initFrameRoutes() {
	c.Group.POST("/frame/album", c.PostFrameAlbum)
	c.Group.POST("/frame/search", c.PostFrameSearch)
	c.Group.GET("/frame/queue", c.GetFrameQueue)
	c.Group.GET("/albums", c.GetAlbums)
}

// FrameAlbumRequest selects an album to load into the frame.
type FrameAlbumRequest struct {
	AlbumID string `json:"albumId"`
}

// FrameSearchRequest loads the frame from a filter search.
type FrameSearchRequest struct {
	Filters *photos.Filters `json:"filters"`
}

// AlbumsResponse lists the caller's albums.
type AlbumsResponse struct {
	Albums []photos.Album `json:"albums"`
}

// PostFrameAlbum loads the contents of one album into the caller's frame.
func (c *Controller) PostFrameAlbum(ctx echo.Context) error {
	creds, err := c.auth.Credentials(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Authentication required", statusFor(err))
	}

	var req FrameAlbumRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.AlbumID == "" {
		return c.HandleError(ctx, errors.NewStd("albumId is required"),
			"Invalid request body", http.StatusBadRequest)
	}

	view, err := c.Frame.LoadFromAlbum(ctx.Request().Context(), creds.UserID, creds.AuthToken, req.AlbumID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load album", statusFor(err))
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Loaded album into frame",
		"album_id", req.AlbumID,
		"photos", len(view.Photos),
	)
	return ctx.JSON(http.StatusOK, view)
}

// PostFrameSearch loads the results of a filter search into the caller's
// frame.
func (c *Controller) PostFrameSearch(ctx echo.Context) error {
	creds, err := c.auth.Credentials(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Authentication required", statusFor(err))
	}

	var req FrameSearchRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	view, err := c.Frame.LoadFromSearch(ctx.Request().Context(), creds.UserID, creds.AuthToken, req.Filters)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to run search", statusFor(err))
	}

	c.logAPIRequest(ctx, slog.LevelInfo, "Loaded search into frame",
		"photos", len(view.Photos),
	)
	return ctx.JSON(http.StatusOK, view)
}

// GetFrameQueue returns the caller's current frame contents.
func (c *Controller) GetFrameQueue(ctx echo.Context) error {
	creds, err := c.auth.Credentials(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Authentication required", statusFor(err))
	}

	view, err := c.Frame.Queue(ctx.Request().Context(), creds.UserID, creds.AuthToken)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load frame queue", statusFor(err))
	}

	return ctx.JSON(http.StatusOK, view)
}

// GetAlbums lists the caller's albums.
func (c *Controller) GetAlbums(ctx echo.Context) error {
	creds, err := c.auth.Credentials(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Authentication required", statusFor(err))
	}

	albums, err := c.Frame.Albums(ctx.Request().Context(), creds.UserID, creds.AuthToken)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list albums", statusFor(err))
	}

	return ctx.JSON(http.StatusOK, AlbumsResponse{Albums: albums})
}
