package identify

import (
	"context"
	"log"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"

	"plantframe/internal/errors"
	"plantframe/internal/kvstore"
	"plantframe/internal/logging"
	"plantframe/internal/observability/metrics"
	"plantframe/internal/photos"
	"plantframe/internal/plantnet"
)

// Package-level logger specific to the identify service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "identify.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "identify", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize identify file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.Discard("identify")
		closeLogger = func() error { return nil }
	}
}

// Service orchestrates the group store, media index, identification API and
// photo library around every identify, read, and edit request.
type Service struct {
	groups     *GroupStore
	index      *MediaIndex
	identifier Identifier
	photos     photos.ItemGetter
	quota      kvstore.KV
	metrics    *metrics.IdentifyMetrics
}

// NewService constructs the aggregation service. quota is the durable bucket
// holding the last seen remaining-requests value.
func NewService(groups *GroupStore, index *MediaIndex, identifier Identifier, itemGetter photos.ItemGetter, quota kvstore.KV, m *metrics.IdentifyMetrics) *Service {
	return &Service{
		groups:     groups,
		index:      index,
		identifier: identifier,
		photos:     itemGetter,
		quota:      quota,
		metrics:    m,
	}
}

// Close releases service resources.
func (s *Service) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing identify logger: %v", err)
		}
	}
}

// Identify submits the items to the identification API, persists the
// normalized results as a new group, and records the group on every
// submitted media item. Failures before the group write abort the whole
// operation; index and quota failures after it are reported in the response
// without rolling the group back.
func (s *Service) Identify(ctx context.Context, items []plantnet.Submission) (*Identification, error) {
	if s.metrics != nil {
		s.metrics.Requests.Inc()
	}

	if len(items) > plantnet.MaxBatchSize {
		if s.metrics != nil {
			s.metrics.Rejected.Inc()
		}
		logger.Error("too many images selected for identification", "count", len(items))
		return nil, errors.Newf("too many pictures selected: %d exceeds the limit of %d", len(items), plantnet.MaxBatchSize).
			Category(errors.CategoryValidation).
			Context("count", len(items)).
			Component("identify").
			Build()
	}

	resp, err := s.identifier.Identify(ctx, items)
	if err != nil {
		return nil, err
	}

	results := normalizeCandidates(resp.Results)

	mediaIDs := make([]string, 0, len(items))
	for i := range items {
		mediaIDs = append(mediaIDs, items[i].MediaID)
	}

	group, err := s.groups.CreateGroup(ctx, mediaIDs, results)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.GroupsCreated.Inc()
	}

	// From here on the group is durable. Index fan-out is best effort: each
	// membership write stands on its own and earlier ones are never undone.
	var partialErrors []string
	for _, mediaID := range mediaIDs {
		if err := s.index.RecordMembership(ctx, mediaID, group.GroupID); err != nil {
			logger.Error("failed to record group membership",
				"group_id", group.GroupID,
				"media_id", mediaID,
				"error", err)
			partialErrors = append(partialErrors, err.Error())
		}
	}

	if err := s.quota.Set(ctx, quotaKey, resp.RemainingIdentificationRequests); err != nil {
		logger.Error("failed to persist remaining requests", "error", err)
		partialErrors = append(partialErrors, err.Error())
	}

	logger.Info("identification saved",
		"group_id", group.GroupID,
		"media_items", len(mediaIDs),
		"results", len(results),
		"requests_left", resp.RemainingIdentificationRequests)

	return &Identification{
		Date:         group.Date,
		MediaIDs:     group.MediaIDs,
		GroupID:      group.GroupID,
		Results:      group.Results,
		RequestsLeft: resp.RemainingIdentificationRequests,
		Errors:       partialErrors,
	}, nil
}

// GetAll returns every stored group enriched with freshly fetched media item
// details, newest group first. Per-item photo failures are collected and do
// not fail the call.
func (s *Service) GetAll(ctx context.Context, authToken string) (*IdentifiedCollection, error) {
	groups, err := s.groups.ListGroups(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].GroupID > groups[j].GroupID
	})

	collection := &IdentifiedCollection{
		Identifications: make([]EnrichedGroup, 0, len(groups)),
		Errors:          []string{},
	}

	for i := range groups {
		items, itemErrors := s.photos.GetMediaItems(ctx, authToken, groups[i].MediaIDs)
		for _, ierr := range itemErrors {
			collection.Errors = append(collection.Errors, ierr.Error())
		}
		collection.Identifications = append(collection.Identifications, EnrichedGroup{
			Group:      groups[i],
			MediaItems: items,
		})
	}

	return collection, nil
}

// GetOne returns a single enriched group. Per-item photo failures come back
// alongside the group.
func (s *Service) GetOne(ctx context.Context, authToken string, groupID int) (*EnrichedGroup, []string, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}

	items, itemErrors := s.photos.GetMediaItems(ctx, authToken, group.MediaIDs)
	errorMessages := make([]string, 0, len(itemErrors))
	for _, ierr := range itemErrors {
		errorMessages = append(errorMessages, ierr.Error())
	}

	return &EnrichedGroup{Group: group, MediaItems: items}, errorMessages, nil
}

// DeleteResult removes a result from the group and returns the refreshed,
// enriched record.
func (s *Service) DeleteResult(ctx context.Context, authToken string, groupID, resultID int) (*EnrichedGroup, []string, error) {
	if _, err := s.groups.DeleteResult(ctx, groupID, resultID); err != nil {
		return nil, nil, err
	}
	if s.metrics != nil {
		s.metrics.DeletedResults.Inc()
	}
	logger.Info("result deleted", "group_id", groupID, "result_id", resultID)
	return s.GetOne(ctx, authToken, groupID)
}

// SaveManualResult stores a user entered result at the head of the group and
// returns the refreshed, enriched record.
func (s *Service) SaveManualResult(ctx context.Context, authToken string, groupID int, scientificName string, commonNames []string, family, genus string) (*EnrichedGroup, []string, error) {
	if _, err := s.groups.AddManualResult(ctx, groupID, scientificName, commonNames, family, genus); err != nil {
		return nil, nil, err
	}
	if s.metrics != nil {
		s.metrics.ManualResults.Inc()
	}
	logger.Info("manual result saved", "group_id", groupID, "scientific_name", scientificName)
	return s.GetOne(ctx, authToken, groupID)
}

// RemainingRequests returns the last seen identification quota, nil when no
// identify call has reported one yet. The value is advisory display state,
// not an enforced limit.
func (s *Service) RemainingRequests(ctx context.Context) (*int, error) {
	var remaining int
	found, err := s.quota.Get(ctx, quotaKey, &remaining)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &remaining, nil
}

// normalizeCandidates flattens the API candidates into stored results.
// Scores become percentages rounded to two decimals, half away from zero.
func normalizeCandidates(candidates []plantnet.Candidate) []Result {
	results := make([]Result, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		score := math.Round(c.Score*100*100) / 100
		id, err := strconv.Atoi(c.GBIF.ID.String())
		if err != nil {
			// Candidates without a usable taxon id all land on id 0 and a
			// later delete of id 0 removes them together.
			logger.Warn("candidate has no usable GBIF id, storing 0",
				"gbif_id", c.GBIF.ID.String(),
				"scientific_name", c.Species.ScientificNameWithoutAuthor,
				"error", err)
		}
		results = append(results, Result{
			ID:                 id,
			Score:              &score,
			ScientificName:     c.Species.ScientificNameWithoutAuthor,
			CommonNames:        c.Species.CommonNames,
			Family:             c.Species.Family.ScientificNameWithoutAuthor,
			Genus:              c.Species.Genus.ScientificNameWithoutAuthor,
			ManuallyIdentified: false,
		})
	}
	return results
}
