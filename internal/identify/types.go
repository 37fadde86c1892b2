// Package identify implements the identification result aggregation and
// storage subsystem: group id allocation, group records, the media to group
// index, and the service orchestrating them around the identification API.
package identify

import (
	"context"

	"plantframe/internal/photos"
	"plantframe/internal/plantnet"
)

// Storage keys. Group records live under groupPrefix + id in the groups
// namespace, alongside the single counter key. The quota key lives in the
// durable frame namespace.
const (
	groupPrefix = "group"
	counterKey  = "uniqueIdentifier"
	quotaKey    = "remainingPlantNetIDs"
)

// Result is one identification candidate stored in a group. API sourced
// results carry the external taxonomy id and a score; manual results carry a
// per-group id from the group's unique counter and a nil score.
type Result struct {
	ID                 int      `json:"id"`
	Score              *float64 `json:"score"`
	ScientificName     string   `json:"scientificName"`
	CommonNames        []string `json:"commonNames"`
	Family             string   `json:"family"`
	Genus              string   `json:"genus"`
	ManuallyIdentified bool     `json:"manuallyIdentified"`
}

// Group is one batch of media items submitted together for identification,
// with its resulting candidate list. MediaIDs is immutable after creation.
// UniqueCounter is the next id handed to a manual result; it never decreases,
// even after deletions.
type Group struct {
	GroupID       int      `json:"groupID"`
	Date          string   `json:"date"`
	MediaIDs      []string `json:"mediaIDs"`
	Results       []Result `json:"results"`
	UniqueCounter int      `json:"uniqueCounter"`
}

// EnrichedGroup is a group merged with freshly fetched media item details.
type EnrichedGroup struct {
	Group
	MediaItems []photos.MediaItem `json:"mediaItems"`
}

// Identification is the response to a successful identify call. Media items
// are not enriched at creation time, enrichment happens on read paths.
// Errors lists index update failures that did not roll back the group.
type Identification struct {
	Date         string   `json:"date"`
	MediaIDs     []string `json:"mediaIDs"`
	GroupID      int      `json:"groupID"`
	Results      []Result `json:"results"`
	RequestsLeft int      `json:"requestsLeft"`
	Errors       []string `json:"errors,omitempty"`
}

// IdentifiedCollection is every stored group, enriched, with per-item fetch
// errors collected rather than failing the whole call.
type IdentifiedCollection struct {
	Identifications []EnrichedGroup `json:"identifications"`
	Errors          []string        `json:"errors"`
}

// Identifier is the identification API contract consumed by the Service.
// Implemented by *plantnet.Client.
type Identifier interface {
	Identify(ctx context.Context, items []plantnet.Submission) (*plantnet.Response, error)
}
