package identify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"plantframe/internal/errors"
	"plantframe/internal/photos"
	"plantframe/internal/plantnet"
)

// memKV is an in-memory kvstore.KV used to test the storage components
// without a database. Failure hooks simulate storage errors per key.
type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  func(key string) error
	setErr  func(key string) error
	setOps  []string
	getOps  []string
	listErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func storeErr(msg string) error {
	return errors.Newf("%s", msg).Category(errors.CategoryStore).Build()
}

func (m *memKV) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOps = append(m.getOps, key)
	if m.getErr != nil {
		if err := m.getErr(key); err != nil {
			return false, err
		}
	}
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memKV) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setOps = append(m.setOps, key)
	if m.setErr != nil {
		if err := m.setErr(key); err != nil {
			return err
		}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) List(_ context.Context, prefix string, fn func(key string, raw []byte) error) error {
	m.mu.Lock()
	if m.listErr != nil {
		m.mu.Unlock()
		return m.listErr
	}
	var keys []string
	for key := range m.data {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	snapshot := make(map[string][]byte, len(keys))
	for _, key := range keys {
		snapshot[key] = m.data[key]
	}
	m.mu.Unlock()

	for _, key := range keys {
		if err := fn(key, snapshot[key]); err != nil {
			return err
		}
	}
	return nil
}

// counterValue reads the raw persisted allocator counter, -1 when unset.
func (m *memKV) counterValue() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[counterKey]
	if !ok {
		return -1
	}
	var v int
	_ = json.Unmarshal(raw, &v)
	return v
}

// fakeIdentifier returns a canned response or error.
type fakeIdentifier struct {
	resp  *plantnet.Response
	err   error
	calls int
}

func (f *fakeIdentifier) Identify(_ context.Context, _ []plantnet.Submission) (*plantnet.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// fakeItemGetter serves media items from a map; unknown ids fail per item.
type fakeItemGetter struct {
	items map[string]photos.MediaItem
	calls int
}

func (f *fakeItemGetter) GetMediaItems(_ context.Context, _ string, ids []string) ([]photos.MediaItem, []error) {
	f.calls++
	var found []photos.MediaItem
	var itemErrors []error
	for _, id := range ids {
		item, ok := f.items[id]
		if !ok {
			itemErrors = append(itemErrors, fmt.Errorf("media item %s not found", id))
			continue
		}
		found = append(found, item)
	}
	return found, itemErrors
}

func candidate(gbifID string, score float64, sci, family, genus string, common ...string) plantnet.Candidate {
	var c plantnet.Candidate
	raw := fmt.Sprintf(`{
		"score": %v,
		"species": {
			"scientificNameWithoutAuthor": %q,
			"commonNames": %s,
			"genus": {"scientificNameWithoutAuthor": %q},
			"family": {"scientificNameWithoutAuthor": %q}
		},
		"gbif": {"id": %q}
	}`, score, sci, mustJSON(common), genus, family, gbifID)
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		panic(err)
	}
	return c
}

// candidateNoGBIF builds a candidate whose payload carries no gbif block.
func candidateNoGBIF(score float64, sci, family, genus string) plantnet.Candidate {
	var c plantnet.Candidate
	raw := fmt.Sprintf(`{
		"score": %v,
		"species": {
			"scientificNameWithoutAuthor": %q,
			"genus": {"scientificNameWithoutAuthor": %q},
			"family": {"scientificNameWithoutAuthor": %q}
		}
	}`, score, sci, genus, family)
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		panic(err)
	}
	return c
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(raw)
}
