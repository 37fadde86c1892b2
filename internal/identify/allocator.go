package identify

import (
	"context"

	"plantframe/internal/errors"
	"plantframe/internal/kvstore"
)

// GroupIDAllocator produces the strictly increasing sequence of group ids,
// persisted in the groups namespace. Next and Commit form a two-step
// allocation: Commit must only be called after the group record for the
// returned id has been durably written. The allocator does not serialize
// concurrent callers itself, GroupStore holds a mutex across the pair.
type GroupIDAllocator struct {
	kv kvstore.KV
}

// NewGroupIDAllocator creates an allocator backed by the given bucket.
func NewGroupIDAllocator(kv kvstore.KV) *GroupIDAllocator {
	return &GroupIDAllocator{kv: kv}
}

// Next returns the id to assign to the next group. A missing counter is
// initialized to 1 so a fresh store hands out ids starting at 1.
func (a *GroupIDAllocator) Next(ctx context.Context) (int, error) {
	var id int
	found, err := a.kv.Get(ctx, counterKey, &id)
	if err != nil {
		return 0, errors.Newf("failed to read group id counter: %w", err).
			Category(errors.CategoryStore).
			Component("allocator").
			Build()
	}

	if !found {
		if err := a.kv.Set(ctx, counterKey, 1); err != nil {
			return 0, errors.Newf("failed to initialize group id counter: %w", err).
				Category(errors.CategoryStore).
				Component("allocator").
				Build()
		}
		return 1, nil
	}

	return id, nil
}

// Commit advances the persisted counter past id. Called by the group store
// once the group record write has succeeded.
func (a *GroupIDAllocator) Commit(ctx context.Context, id int) error {
	if err := a.kv.Set(ctx, counterKey, id+1); err != nil {
		return errors.Newf("failed to advance group id counter past %d: %w", id, err).
			Category(errors.CategoryStore).
			Context("group_id", id).
			Component("allocator").
			Build()
	}
	return nil
}
