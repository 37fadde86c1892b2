package photos

import "time"

// MediaMetadata carries the capture metadata of a media item. Width and
// height are strings on the wire.
type MediaMetadata struct {
	CreationTime string `json:"creationTime,omitempty"`
	Width        string `json:"width,omitempty"`
	Height       string `json:"height,omitempty"`
}

// MediaItem is one photo or video in the user's library.
type MediaItem struct {
	ID            string        `json:"id"`
	Description   string        `json:"description,omitempty"`
	ProductURL    string        `json:"productUrl,omitempty"`
	BaseURL       string        `json:"baseUrl,omitempty"`
	MimeType      string        `json:"mimeType,omitempty"`
	Filename      string        `json:"filename,omitempty"`
	MediaMetadata MediaMetadata `json:"mediaMetadata,omitempty"`
}

// Album is one album owned by the user.
type Album struct {
	ID                    string `json:"id"`
	Title                 string `json:"title,omitempty"`
	ProductURL            string `json:"productUrl,omitempty"`
	CoverPhotoBaseURL     string `json:"coverPhotoBaseUrl,omitempty"`
	CoverPhotoMediaItemID string `json:"coverPhotoMediaItemId,omitempty"`
	MediaItemsCount       string `json:"mediaItemsCount,omitempty"`
}

// DateRange is an inclusive date range filter.
type DateRange struct {
	StartDate *Date `json:"startDate,omitempty"`
	EndDate   *Date `json:"endDate,omitempty"`
}

// Date is a library API date where zero fields act as wildcards.
type Date struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// ContentFilter selects media by content category.
type ContentFilter struct {
	IncludedContentCategories []string `json:"includedContentCategories,omitempty"`
}

// MediaTypeFilter selects media by type, e.g. ALL_PHOTO.
type MediaTypeFilter struct {
	MediaTypes []string `json:"mediaTypes,omitempty"`
}

// Filters is the library search filter set.
type Filters struct {
	ContentFilter   *ContentFilter   `json:"contentFilter,omitempty"`
	DateFilter      *struct {
		Ranges []DateRange `json:"ranges,omitempty"`
		Dates  []Date      `json:"dates,omitempty"`
	} `json:"dateFilter,omitempty"`
	MediaTypeFilter *MediaTypeFilter `json:"mediaTypeFilter,omitempty"`
}

// SearchParams is a media item search request. Either AlbumID or Filters is
// set, never both; page fields are managed by the client and stripped before
// the parameters are stored for resubmission.
type SearchParams struct {
	AlbumID   string   `json:"albumId,omitempty"`
	Filters   *Filters `json:"filters,omitempty"`
	PageSize  int      `json:"pageSize,omitempty"`
	PageToken string   `json:"pageToken,omitempty"`
}

// Stripped returns a copy of the parameters without paging state.
func (p SearchParams) Stripped() SearchParams {
	p.PageSize = 0
	p.PageToken = ""
	return p
}

// SearchResult is the outcome of a (possibly multi-page) search.
type SearchResult struct {
	MediaItems []MediaItem  `json:"mediaItems"`
	Parameters SearchParams `json:"parameters"`
}

// searchResponse is one page of the search call.
type searchResponse struct {
	MediaItems    []MediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

// albumsResponse is one page of the album list call.
type albumsResponse struct {
	Albums        []Album `json:"albums"`
	NextPageToken string  `json:"nextPageToken"`
}

// apiErrorBody is the library API error envelope.
type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Config holds the configuration for the photo library API client
type Config struct {
	APIEndpoint    string
	SearchPageSize int
	AlbumPageSize  int
	PhotosToLoad   int
	Timeout        time.Duration
	DetailCacheTTL time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		APIEndpoint:    "https://photoslibrary.googleapis.com",
		SearchPageSize: 100,
		AlbumPageSize:  50,
		PhotosToLoad:   150,
		Timeout:        30 * time.Second,
		DetailCacheTTL: 55 * time.Minute,
	}
}
