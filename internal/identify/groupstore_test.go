package identify

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantframe/internal/errors"
)

func apiResult(id int, score float64, sci string) Result {
	return Result{
		ID:             id,
		Score:          &score,
		ScientificName: sci,
		CommonNames:    []string{},
	}
}

func TestCreateGroupRoundTrip(t *testing.T) {
	kv := newMemKV()
	store := NewGroupStore(kv)
	ctx := context.Background()

	results := []Result{apiResult(3005039, 91.52, "Rosa canina")}
	created, err := store.CreateGroup(ctx, []string{"m1", "m2"}, results)
	require.NoError(t, err)

	assert.Equal(t, 1, created.GroupID)
	assert.Equal(t, 0, created.UniqueCounter)
	assert.NotEmpty(t, created.Date)

	loaded, err := store.GetGroup(ctx, created.GroupID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, loaded.MediaIDs)
	assert.Equal(t, results, loaded.Results)
}

func TestCreateGroupSequentialIDs(t *testing.T) {
	store := NewGroupStore(newMemKV())
	ctx := context.Background()

	for want := 1; want <= 4; want++ {
		group, err := store.CreateGroup(ctx, []string{"m"}, nil)
		require.NoError(t, err)
		assert.Equal(t, want, group.GroupID)
	}
}

func TestCreateGroupWriteFailureLeavesNoTrace(t *testing.T) {
	kv := newMemKV()
	kv.setErr = func(key string) error {
		if key == groupKey(1) {
			return storeErr("write refused")
		}
		return nil
	}
	store := NewGroupStore(kv)
	ctx := context.Background()

	_, err := store.CreateGroup(ctx, []string{"m1"}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryStore))

	// No partial group is visible and the next create still gets id 1.
	_, err = store.GetGroup(ctx, 1)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))

	kv.setErr = nil
	group, err := store.CreateGroup(ctx, []string{"m1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, group.GroupID)
}

func TestCreateGroupConcurrentIDsAreUnique(t *testing.T) {
	store := NewGroupStore(newMemKV())
	ctx := context.Background()

	const n = 16
	ids := make(chan int, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			group, err := store.CreateGroup(ctx, []string{"m"}, nil)
			if err == nil {
				ids <- group.GroupID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int]bool{}
	for id := range ids {
		assert.False(t, seen[id], "group id %d assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestGetGroupNotFound(t *testing.T) {
	store := NewGroupStore(newMemKV())

	_, err := store.GetGroup(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestDeleteResult(t *testing.T) {
	store := NewGroupStore(newMemKV())
	ctx := context.Background()

	created, err := store.CreateGroup(ctx, []string{"m1"}, []Result{
		apiResult(10, 80, "Quercus robur"),
		apiResult(11, 15, "Quercus petraea"),
	})
	require.NoError(t, err)

	updated, err := store.DeleteResult(ctx, created.GroupID, 10)
	require.NoError(t, err)
	require.Len(t, updated.Results, 1)
	assert.Equal(t, 11, updated.Results[0].ID)

	// Deleting an id that is not there returns the group unchanged.
	same, err := store.DeleteResult(ctx, created.GroupID, 10)
	require.NoError(t, err)
	assert.Equal(t, updated.Results, same.Results)
}

func TestDeleteResultRemovesDuplicates(t *testing.T) {
	store := NewGroupStore(newMemKV())
	ctx := context.Background()

	created, err := store.CreateGroup(ctx, []string{"m1"}, []Result{
		apiResult(7, 60, "Acer campestre"),
		apiResult(7, 30, "Acer campestre"),
		apiResult(8, 10, "Acer platanoides"),
	})
	require.NoError(t, err)

	updated, err := store.DeleteResult(ctx, created.GroupID, 7)
	require.NoError(t, err)
	require.Len(t, updated.Results, 1)
	assert.Equal(t, 8, updated.Results[0].ID)
}

func TestAddManualResultAssignsCounterIDs(t *testing.T) {
	store := NewGroupStore(newMemKV())
	ctx := context.Background()

	created, err := store.CreateGroup(ctx, []string{"m1"}, nil)
	require.NoError(t, err)

	for want := range 3 {
		updated, err := store.AddManualResult(ctx, created.GroupID, "Rosa", []string{"Rose"}, "Rosaceae", "Rosa")
		require.NoError(t, err)

		head := updated.Results[0]
		assert.Equal(t, want, head.ID)
		assert.Nil(t, head.Score)
		assert.True(t, head.ManuallyIdentified)
		assert.Equal(t, want+1, updated.UniqueCounter)
	}
}

func TestManualCounterNeverReused(t *testing.T) {
	store := NewGroupStore(newMemKV())
	ctx := context.Background()

	created, err := store.CreateGroup(ctx, []string{"m1"}, nil)
	require.NoError(t, err)

	first, err := store.AddManualResult(ctx, created.GroupID, "Rosa", nil, "Rosaceae", "Rosa")
	require.NoError(t, err)
	require.Equal(t, 0, first.Results[0].ID)

	_, err = store.DeleteResult(ctx, created.GroupID, 0)
	require.NoError(t, err)

	// The counter does not rewind after a deletion.
	second, err := store.AddManualResult(ctx, created.GroupID, "Malus", nil, "Rosaceae", "Malus")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Results[0].ID)
}

func TestManualResultsInsertAtHead(t *testing.T) {
	store := NewGroupStore(newMemKV())
	ctx := context.Background()

	created, err := store.CreateGroup(ctx, []string{"m1"}, []Result{apiResult(42, 50, "Bellis perennis")})
	require.NoError(t, err)

	updated, err := store.AddManualResult(ctx, created.GroupID, "Taraxacum officinale", nil, "Asteraceae", "Taraxacum")
	require.NoError(t, err)

	require.Len(t, updated.Results, 2)
	assert.True(t, updated.Results[0].ManuallyIdentified)
	assert.Equal(t, "Taraxacum officinale", updated.Results[0].ScientificName)
	assert.Equal(t, "Bellis perennis", updated.Results[1].ScientificName)
}

func TestListGroupsSkipsCounterKey(t *testing.T) {
	store := NewGroupStore(newMemKV())
	ctx := context.Background()

	_, err := store.CreateGroup(ctx, []string{"m1"}, nil)
	require.NoError(t, err)
	_, err = store.CreateGroup(ctx, []string{"m2"}, nil)
	require.NoError(t, err)

	groups, err := store.ListGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}
