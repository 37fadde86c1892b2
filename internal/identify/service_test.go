package identify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantframe/internal/errors"
	"plantframe/internal/photos"
	"plantframe/internal/plantnet"
)

type serviceFixture struct {
	kv         *memKV
	service    *Service
	identifier *fakeIdentifier
	getter     *fakeItemGetter
}

func newServiceFixture(t *testing.T, identifier *fakeIdentifier) *serviceFixture {
	t.Helper()
	kv := newMemKV()
	getter := &fakeItemGetter{items: map[string]photos.MediaItem{
		"m1": {ID: "m1", BaseURL: "https://cdn.test/m1", MimeType: "image/jpeg"},
		"m2": {ID: "m2", BaseURL: "https://cdn.test/m2", MimeType: "image/jpeg"},
	}}
	service := NewService(NewGroupStore(kv), NewMediaIndex(kv), identifier, getter, kv, nil)
	return &serviceFixture{kv: kv, service: service, identifier: identifier, getter: getter}
}

func rosaResponse(requestsLeft int) *plantnet.Response {
	return &plantnet.Response{
		Results: []plantnet.Candidate{
			candidate("3005039", 0.91523, "Rosa canina", "Rosaceae", "Rosa", "Dog rose"),
			candidate("3005518", 0.021, "Rosa rubiginosa", "Rosaceae", "Rosa"),
		},
		RemainingIdentificationRequests: requestsLeft,
	}
}

func submissions(mediaIDs ...string) []plantnet.Submission {
	items := make([]plantnet.Submission, 0, len(mediaIDs))
	for _, id := range mediaIDs {
		items = append(items, plantnet.Submission{URL: "https://cdn.test/" + id, Organ: "flower", MediaID: id})
	}
	return items
}

func TestIdentifyHappyPath(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: rosaResponse(478)})
	ctx := context.Background()

	result, err := fx.service.Identify(ctx, submissions("m1", "m2"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.GroupID)
	assert.Equal(t, []string{"m1", "m2"}, result.MediaIDs)
	assert.Equal(t, 478, result.RequestsLeft)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Results, 2)

	first := result.Results[0]
	assert.Equal(t, 3005039, first.ID)
	require.NotNil(t, first.Score)
	assert.InDelta(t, 91.52, *first.Score, 1e-9)
	assert.Equal(t, "Rosa canina", first.ScientificName)
	assert.Equal(t, "Rosaceae", first.Family)
	assert.Equal(t, "Rosa", first.Genus)
	assert.False(t, first.ManuallyIdentified)

	// Both media items point back at the group.
	index := NewMediaIndex(fx.kv)
	for _, mediaID := range []string{"m1", "m2"} {
		groups, err := index.GroupsFor(ctx, mediaID)
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, groups)
	}

	// The quota value is persisted.
	remaining, err := fx.service.RemainingRequests(ctx)
	require.NoError(t, err)
	require.NotNil(t, remaining)
	assert.Equal(t, 478, *remaining)
}

func TestIdentifySequentialGroupIDs(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: rosaResponse(100)})
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		result, err := fx.service.Identify(ctx, submissions("m1"))
		require.NoError(t, err)
		assert.Equal(t, want, result.GroupID)
	}
}

func TestIdentifyTooManyItems(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: rosaResponse(100)})

	_, err := fx.service.Identify(context.Background(),
		submissions("m1", "m2", "m3", "m4", "m5", "m6"))

	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	assert.Zero(t, fx.identifier.calls, "the API must not be called")
	assert.Equal(t, -1, fx.kv.counterValue(), "the allocator counter must stay untouched")

	groups, lerr := NewGroupStore(fx.kv).ListGroups(context.Background())
	require.NoError(t, lerr)
	assert.Empty(t, groups)
}

func TestIdentifyAPIFailureCreatesNothing(t *testing.T) {
	apiErr := errors.Newf("identification API unreachable").
		Category(errors.CategoryIdentification).Build()
	fx := newServiceFixture(t, &fakeIdentifier{err: apiErr})

	_, err := fx.service.Identify(context.Background(), submissions("m1"))

	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryIdentification))
	assert.Equal(t, -1, fx.kv.counterValue())
}

func TestIdentifyScoreNormalization(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: &plantnet.Response{
		Results: []plantnet.Candidate{
			candidate("1", 0.123456, "Trifolium repens", "Fabaceae", "Trifolium"),
		},
		RemainingIdentificationRequests: 10,
	}})

	result, err := fx.service.Identify(context.Background(), submissions("m1"))
	require.NoError(t, err)

	require.NotNil(t, result.Results[0].Score)
	assert.InDelta(t, 12.35, *result.Results[0].Score, 1e-9)
}

func TestIdentifyCandidateWithoutGBIFIDStoresZero(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: &plantnet.Response{
		Results: []plantnet.Candidate{
			candidateNoGBIF(0.9, "Rosa canina", "Rosaceae", "Rosa"),
			candidate("3005518", 0.05, "Rosa rubiginosa", "Rosaceae", "Rosa"),
		},
		RemainingIdentificationRequests: 10,
	}})

	result, err := fx.service.Identify(context.Background(), submissions("m1"))
	require.NoError(t, err)

	require.Len(t, result.Results, 2)
	assert.Equal(t, 0, result.Results[0].ID)
	assert.Equal(t, 3005518, result.Results[1].ID)
}

func TestIdentifyIndexFailureDoesNotRollBackGroup(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: rosaResponse(99)})
	fx.kv.setErr = func(key string) error {
		if key == "m2" {
			return storeErr("index write refused")
		}
		return nil
	}
	ctx := context.Background()

	result, err := fx.service.Identify(ctx, submissions("m1", "m2"))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)

	// Group survived and the first membership stands.
	group, err := NewGroupStore(fx.kv).GetGroup(ctx, result.GroupID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, group.MediaIDs)

	groups, err := NewMediaIndex(fx.kv).GroupsFor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, groups)
}

func TestGetAllEnrichesGroups(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: rosaResponse(50)})
	ctx := context.Background()

	_, err := fx.service.Identify(ctx, submissions("m1"))
	require.NoError(t, err)
	_, err = fx.service.Identify(ctx, submissions("m2"))
	require.NoError(t, err)

	collection, err := fx.service.GetAll(ctx, "token")
	require.NoError(t, err)

	require.Len(t, collection.Identifications, 2)
	assert.Empty(t, collection.Errors)
	// Newest first.
	assert.Equal(t, 2, collection.Identifications[0].GroupID)
	assert.Equal(t, 1, collection.Identifications[1].GroupID)
	require.Len(t, collection.Identifications[0].MediaItems, 1)
	assert.Equal(t, "m2", collection.Identifications[0].MediaItems[0].ID)
}

func TestGetAllCollectsPhotoErrors(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: rosaResponse(50)})
	ctx := context.Background()

	_, err := fx.service.Identify(ctx, submissions("m1", "unknown"))
	require.NoError(t, err)

	collection, err := fx.service.GetAll(ctx, "token")
	require.NoError(t, err)

	require.Len(t, collection.Identifications, 1)
	require.Len(t, collection.Errors, 1)
	assert.Contains(t, collection.Errors[0], "unknown")
	// The fetchable item is still present.
	require.Len(t, collection.Identifications[0].MediaItems, 1)
}

func TestGetOneNotFound(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: rosaResponse(50)})

	_, _, err := fx.service.GetOne(context.Background(), "token", 404)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestDeleteResultReturnsEnrichedGroup(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: rosaResponse(50)})
	ctx := context.Background()

	created, err := fx.service.Identify(ctx, submissions("m1"))
	require.NoError(t, err)

	enriched, photoErrors, err := fx.service.DeleteResult(ctx, "token", created.GroupID, 3005039)
	require.NoError(t, err)
	assert.Empty(t, photoErrors)
	require.Len(t, enriched.Results, 1)
	assert.Equal(t, 3005518, enriched.Results[0].ID)
	require.Len(t, enriched.MediaItems, 1)
}

func TestSaveManualResultScenario(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: rosaResponse(50)})
	ctx := context.Background()

	created, err := fx.service.Identify(ctx, submissions("m1", "m2"))
	require.NoError(t, err)
	require.Equal(t, 1, created.GroupID)

	enriched, _, err := fx.service.SaveManualResult(ctx, "token", 1, "Rosa", []string{"Rose"}, "Rosaceae", "Rosa")
	require.NoError(t, err)

	head := enriched.Results[0]
	assert.Equal(t, 0, head.ID)
	assert.Nil(t, head.Score)
	assert.True(t, head.ManuallyIdentified)
	assert.Equal(t, "Rosa", head.ScientificName)
	assert.Equal(t, []string{"Rose"}, head.CommonNames)
	assert.Equal(t, "Rosaceae", head.Family)
	assert.Equal(t, "Rosa", head.Genus)
}

func TestRemainingRequestsUnknown(t *testing.T) {
	fx := newServiceFixture(t, &fakeIdentifier{resp: rosaResponse(50)})

	remaining, err := fx.service.RemainingRequests(context.Background())
	require.NoError(t, err)
	assert.Nil(t, remaining)
}
