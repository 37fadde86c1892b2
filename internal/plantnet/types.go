package plantnet

import (
	"encoding/json"
	"time"
)

// Submission is one image submitted for identification.
type Submission struct {
	URL     string `json:"url"`
	Organ   string `json:"organ"`
	MediaID string `json:"mediaID"`
}

// MaxBatchSize is the hard Pl@ntNet limit on images per identification call.
const MaxBatchSize = 5

// Config holds the configuration for the Pl@ntNet API client
type Config struct {
	Endpoint    string
	APIKey      string
	Timeout     time.Duration
	RateLimitMS int
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		Endpoint:    "https://my-api.plantnet.org/v2/identify/all",
		Timeout:     30 * time.Second,
		RateLimitMS: 500,
	}
}

// taxon is a nested taxonomy object carrying a scientific name.
type taxon struct {
	ScientificNameWithoutAuthor string `json:"scientificNameWithoutAuthor"`
}

// Species describes the species fields of one candidate.
type Species struct {
	ScientificNameWithoutAuthor string   `json:"scientificNameWithoutAuthor"`
	CommonNames                 []string `json:"commonNames"`
	Genus                       taxon    `json:"genus"`
	Family                      taxon    `json:"family"`
}

// GBIF carries the external taxonomy reference of a candidate. The id is a
// string on the wire.
type GBIF struct {
	ID json.Number `json:"id"`
}

// Candidate is one scored identification candidate.
type Candidate struct {
	Score   float64 `json:"score"`
	Species Species `json:"species"`
	GBIF    GBIF    `json:"gbif"`
}

// Response is the Pl@ntNet identification response.
type Response struct {
	Results                         []Candidate `json:"results"`
	RemainingIdentificationRequests int         `json:"remainingIdentificationRequests"`
	BestMatch                       string      `json:"bestMatch"`
}

// apiError is the flat error body shape returned by the API.
type apiError struct {
	StatusCode int    `json:"statusCode"`
	ErrorName  string `json:"error"`
	Message    string `json:"message"`
}

// wrappedAPIError is the alternative shape where the payload nests under an
// error object. Both shapes are normalized at the client boundary.
type wrappedAPIError struct {
	Error apiError `json:"error"`
}
