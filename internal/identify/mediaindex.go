package identify

import (
	"context"
	"strconv"

	"plantframe/internal/errors"
	"plantframe/internal/kvstore"
)

// MediaIndex maintains the inverse relation of group membership: for every
// media item ever submitted, the list of group ids it belongs to. Entries
// are created on first reference and only ever appended to.
type MediaIndex struct {
	kv kvstore.KV
}

// NewMediaIndex creates an index over the media groups bucket.
func NewMediaIndex(kv kvstore.KV) *MediaIndex {
	return &MediaIndex{kv: kv}
}

// RecordMembership appends groupID to the entry for mediaID. Each call is an
// independent durable write; a failure does not undo memberships recorded
// before it.
func (m *MediaIndex) RecordMembership(ctx context.Context, mediaID string, groupID int) error {
	var groupIDs []string
	_, err := m.kv.Get(ctx, mediaID, &groupIDs)
	if err != nil {
		return errors.Newf("failed to read group list for media item %s: %w", mediaID, err).
			Category(errors.CategoryStore).
			Context("media_id", mediaID).
			Context("group_id", groupID).
			Component("mediaindex").
			Build()
	}

	groupIDs = append(groupIDs, strconv.Itoa(groupID))

	if err := m.kv.Set(ctx, mediaID, groupIDs); err != nil {
		return errors.Newf("failed to record group %d for media item %s: %w", groupID, mediaID, err).
			Category(errors.CategoryStore).
			Context("media_id", mediaID).
			Context("group_id", groupID).
			Component("mediaindex").
			Build()
	}
	return nil
}

// GroupsFor returns the group ids the media item has been part of, empty if
// it has never been submitted.
func (m *MediaIndex) GroupsFor(ctx context.Context, mediaID string) ([]string, error) {
	var groupIDs []string
	found, err := m.kv.Get(ctx, mediaID, &groupIDs)
	if err != nil {
		return nil, errors.Newf("failed to read group list for media item %s: %w", mediaID, err).
			Category(errors.CategoryStore).
			Context("media_id", mediaID).
			Component("mediaindex").
			Build()
	}
	if !found {
		return []string{}, nil
	}
	return groupIDs, nil
}
