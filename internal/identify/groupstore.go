package identify

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"plantframe/internal/errors"
	"plantframe/internal/kvstore"
)

// GroupStore owns the lifecycle of identification group records. Creation is
// serialized so the allocate-then-commit counter sequence cannot hand the
// same id to two concurrent requests.
type GroupStore struct {
	kv        kvstore.KV
	allocator *GroupIDAllocator
	createMu  sync.Mutex
	now       func() time.Time
}

// NewGroupStore creates a group store over the groups bucket.
func NewGroupStore(kv kvstore.KV) *GroupStore {
	return &GroupStore{
		kv:        kv,
		allocator: NewGroupIDAllocator(kv),
		now:       time.Now,
	}
}

func groupKey(groupID int) string {
	return groupPrefix + strconv.Itoa(groupID)
}

// CreateGroup allocates a group id, persists a new group record, and then
// commits the counter advance. If the record write fails nothing is
// committed and no partial group is visible to later reads.
func (s *GroupStore) CreateGroup(ctx context.Context, mediaIDs []string, results []Result) (Group, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	groupID, err := s.allocator.Next(ctx)
	if err != nil {
		return Group{}, err
	}

	group := Group{
		GroupID:       groupID,
		Date:          s.now().Format("1/2/2006"),
		MediaIDs:      mediaIDs,
		Results:       results,
		UniqueCounter: 0,
	}

	if err := s.kv.Set(ctx, groupKey(groupID), group); err != nil {
		return Group{}, errors.Newf("failed to persist group %d: %w", groupID, err).
			Category(errors.CategoryStore).
			Context("group_id", groupID).
			Component("groupstore").
			Build()
	}

	if err := s.allocator.Commit(ctx, groupID); err != nil {
		// The record is durable already; the caller sees the failure but the
		// group is not rolled back.
		return Group{}, err
	}

	return group, nil
}

// GetGroup loads one group record.
func (s *GroupStore) GetGroup(ctx context.Context, groupID int) (Group, error) {
	var group Group
	found, err := s.kv.Get(ctx, groupKey(groupID), &group)
	if err != nil {
		return Group{}, errors.Newf("failed to load group %d: %w", groupID, err).
			Category(errors.CategoryStore).
			Context("group_id", groupID).
			Component("groupstore").
			Build()
	}
	if !found {
		return Group{}, errors.Newf("group %d not found", groupID).
			Category(errors.CategoryNotFound).
			Context("group_id", groupID).
			Component("groupstore").
			Build()
	}
	return group, nil
}

// DeleteResult removes every result with the given id from the group and
// writes the record back in full. Removal is by predicate, so duplicates all
// go and deleting an absent id leaves the group unchanged.
func (s *GroupStore) DeleteResult(ctx context.Context, groupID, resultID int) (Group, error) {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return Group{}, err
	}

	kept := make([]Result, 0, len(group.Results))
	for i := range group.Results {
		if group.Results[i].ID != resultID {
			kept = append(kept, group.Results[i])
		}
	}
	group.Results = kept

	if err := s.writeBack(ctx, group); err != nil {
		return Group{}, err
	}
	return group, nil
}

// AddManualResult inserts a user entered result at the head of the group's
// result list. The result id comes from the group's unique counter, which
// only ever moves forward.
func (s *GroupStore) AddManualResult(ctx context.Context, groupID int, scientificName string, commonNames []string, family, genus string) (Group, error) {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return Group{}, err
	}

	manual := Result{
		ID:                 group.UniqueCounter,
		Score:              nil,
		ScientificName:     scientificName,
		CommonNames:        commonNames,
		Family:             family,
		Genus:              genus,
		ManuallyIdentified: true,
	}

	group.Results = append([]Result{manual}, group.Results...)
	group.UniqueCounter++

	if err := s.writeBack(ctx, group); err != nil {
		return Group{}, err
	}
	return group, nil
}

// ListGroups returns every stored group record, in unspecified order.
func (s *GroupStore) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	err := s.kv.List(ctx, groupPrefix, func(key string, raw []byte) error {
		var group Group
		if err := json.Unmarshal(raw, &group); err != nil {
			return errors.Newf("corrupt group record at %s: %w", key, err).
				Category(errors.CategoryStore).
				Context("key", key).
				Component("groupstore").
				Build()
		}
		groups = append(groups, group)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *GroupStore) writeBack(ctx context.Context, group Group) error {
	if err := s.kv.Set(ctx, groupKey(group.GroupID), group); err != nil {
		return errors.Newf("failed to write group %d: %w", group.GroupID, err).
			Category(errors.CategoryStore).
			Context("group_id", group.GroupID).
			Component("groupstore").
			Build()
	}
	return nil
}
