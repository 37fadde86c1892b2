// Package frame implements the photo-frame cache service: loading an album
// or filter search into the frame, remembering the search parameters per
// user, and serving the queue from cache while it is fresh.
package frame

import (
	"context"
	"log"
	"log/slog"
	"path/filepath"

	"plantframe/internal/kvstore"
	"plantframe/internal/logging"
	"plantframe/internal/photos"
)

// Package-level logger specific to the frame service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "frame.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "frame", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize frame file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.Discard("frame")
		closeLogger = func() error { return nil }
	}
}

// Library is the photo library surface the frame needs. Implemented by
// *photos.Client.
type Library interface {
	Search(ctx context.Context, authToken string, params photos.SearchParams) (*photos.SearchResult, error)
	ListAlbums(ctx context.Context, authToken string) ([]photos.Album, error)
}

// View is what the frame renders: the photos to cycle through and the
// parameters that produced them.
type View struct {
	Photos     []photos.MediaItem  `json:"photos,omitempty"`
	Parameters photos.SearchParams `json:"parameters,omitempty"`
}

// Service caches search results and remembers per-user search parameters so
// an expired cache can be refilled by resubmitting the same query.
type Service struct {
	library    Library
	photoCache kvstore.KV // short lived, keyed by user id
	albumCache kvstore.KV // short lived, keyed by user id
	params     kvstore.KV // durable, keyed by user id
}

// NewService constructs the frame service over its three store namespaces.
func NewService(library Library, photoCache, albumCache, params kvstore.KV) *Service {
	return &Service{
		library:    library,
		photoCache: photoCache,
		albumCache: albumCache,
		params:     params,
	}
}

// Close releases service resources.
func (s *Service) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing frame logger: %v", err)
		}
	}
}

// LoadFromAlbum fills the user's frame with the contents of one album.
func (s *Service) LoadFromAlbum(ctx context.Context, userID, authToken, albumID string) (*View, error) {
	logger.Info("importing album", "album_id", albumID)
	return s.load(ctx, userID, authToken, photos.SearchParams{AlbumID: albumID})
}

// LoadFromSearch fills the user's frame from a filter search.
func (s *Service) LoadFromSearch(ctx context.Context, userID, authToken string, filters *photos.Filters) (*View, error) {
	logger.Info("importing filter search")
	return s.load(ctx, userID, authToken, photos.SearchParams{Filters: filters})
}

// load runs the search and, on success, caches the media items and stores
// the stripped parameters for later resubmission.
func (s *Service) load(ctx context.Context, userID, authToken string, params photos.SearchParams) (*View, error) {
	result, err := s.library.Search(ctx, authToken, params)
	if err != nil {
		return nil, err
	}

	if err := s.photoCache.Set(ctx, userID, result.MediaItems); err != nil {
		// The search succeeded; a cold cache only costs the next request a
		// resubmission.
		logger.Error("failed to cache frame photos", "user_id", userID, "error", err)
	}
	if err := s.params.Set(ctx, userID, result.Parameters); err != nil {
		logger.Error("failed to store search parameters", "user_id", userID, "error", err)
	}

	return &View{Photos: result.MediaItems, Parameters: result.Parameters}, nil
}

// Queue returns the user's current frame contents. Cached photos win; an
// expired cache resubmits the stored parameters; a user with neither gets an
// empty view.
func (s *Service) Queue(ctx context.Context, userID, authToken string) (*View, error) {
	var cached []photos.MediaItem
	foundPhotos, err := s.photoCache.Get(ctx, userID, &cached)
	if err != nil {
		return nil, err
	}

	var stored photos.SearchParams
	foundParams, err := s.params.Get(ctx, userID, &stored)
	if err != nil {
		return nil, err
	}

	switch {
	case foundPhotos:
		logger.Info("returning cached photos", "user_id", userID, "count", len(cached))
		return &View{Photos: cached, Parameters: stored}, nil
	case foundParams:
		logger.Info("cache expired, resubmitting stored search", "user_id", userID)
		return s.load(ctx, userID, authToken, stored)
	default:
		logger.Info("no stored frame data for user", "user_id", userID)
		return &View{}, nil
	}
}

// Albums lists the user's albums, served from the short lived album cache
// when possible. A failed refresh also drops any stale cache entry.
func (s *Service) Albums(ctx context.Context, userID, authToken string) ([]photos.Album, error) {
	var cached []photos.Album
	found, err := s.albumCache.Get(ctx, userID, &cached)
	if err != nil {
		return nil, err
	}
	if found {
		logger.Info("loaded albums from cache", "user_id", userID, "count", len(cached))
		return cached, nil
	}

	albums, err := s.library.ListAlbums(ctx, authToken)
	if err != nil {
		if derr := s.albumCache.Delete(ctx, userID); derr != nil {
			logger.Error("failed to drop album cache entry", "user_id", userID, "error", derr)
		}
		return nil, err
	}

	if err := s.albumCache.Set(ctx, userID, albums); err != nil {
		logger.Error("failed to cache albums", "user_id", userID, "error", err)
	}
	return albums, nil
}
