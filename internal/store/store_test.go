package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	werrors "sjsage522/consoledealworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyBackend wraps a backend and fails Save while failSave is set
type flakyBackend struct {
	Backend
	failSave bool
	saves    int
}

func (f *flakyBackend) Save(ctx context.Context, ids []string, all []string) error {
	f.saves++
	if f.failSave {
		return errors.New("disk full")
	}
	return f.Backend.Save(ctx, ids, all)
}

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seen_listings.json")
	s := New(NewFileBackend(path))
	require.NoError(t, s.Load(context.Background()))
	return s, path
}

func TestStoreMarkAndFlush(t *testing.T) {
	ctx := context.Background()
	s, path := newFileStore(t)

	assert.True(t, s.IsNew("Craigslist_https://a"))
	s.MarkSeen("Craigslist_https://a")
	assert.False(t, s.IsNew("Craigslist_https://a"))
	assert.Empty(t, s.Snapshot(), "marks are not persisted until flushed")

	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, []string{"Craigslist_https://a"}, s.Snapshot())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Craigslist_https://a")
}

func TestStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	s, path := newFileStore(t)

	require.NoError(t, s.Commit(ctx, []string{"OfferUp_https://b", "Mercari_https://c"}))

	reloaded := New(NewFileBackend(path))
	require.NoError(t, reloaded.Load(ctx))
	assert.False(t, reloaded.IsNew("OfferUp_https://b"))
	assert.False(t, reloaded.IsNew("Mercari_https://c"))
	assert.True(t, reloaded.IsNew("OfferUp_https://d"))
	assert.Equal(t, []string{"Mercari_https://c", "OfferUp_https://b"}, reloaded.Snapshot())
}

func TestStoreCommitDeduplicates(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	require.NoError(t, s.Commit(ctx, []string{"x", "x", "y"}))
	require.NoError(t, s.Commit(ctx, []string{"y", "z"}))
	assert.Equal(t, []string{"x", "y", "z"}, s.Snapshot())
	assert.Equal(t, 3, s.Len())
}

func TestStoreCommitFailureLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seen_listings.json")
	backend := &flakyBackend{Backend: NewFileBackend(path)}
	s := New(backend)
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.Commit(ctx, []string{"a"}))

	backend.failSave = true
	err := s.Commit(ctx, []string{"b", "c"})
	require.Error(t, err)
	assert.True(t, werrors.IsType(err, werrors.ErrorTypeStore))

	assert.Equal(t, []string{"a"}, s.Snapshot())
	assert.True(t, s.IsNew("b"))
	assert.True(t, s.IsNew("c"))

	reloaded := New(NewFileBackend(path))
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, []string{"a"}, reloaded.Snapshot())
}

func TestStoreFlushFailureKeepsMarks(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Backend: NewFileBackend(filepath.Join(t.TempDir(), "seen.json")), failSave: true}
	s := New(backend)
	require.NoError(t, s.Load(ctx))

	s.MarkSeen("a")
	require.Error(t, s.Flush(ctx))
	assert.False(t, s.IsNew("a"))
	assert.Empty(t, s.Snapshot())

	backend.failSave = false
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, []string{"a"}, s.Snapshot())
	assert.Equal(t, 2, backend.saves)

	// Nothing pending, nothing written
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 2, backend.saves)
}

func TestStoreReset(t *testing.T) {
	ctx := context.Background()
	s, path := newFileStore(t)
	require.NoError(t, s.Commit(ctx, []string{"a", "b"}))
	s.MarkSeen("c")

	require.NoError(t, s.Reset(ctx))
	assert.Empty(t, s.Snapshot())
	assert.True(t, s.IsNew("c"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestFileBackendLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ids, err := NewFileBackend(filepath.Join(dir, "missing.json")).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	legacy := filepath.Join(dir, "legacy.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`["Craigslist_https://sfbay.craigslist.org/1.html"]`), 0o644))
	ids, err = NewFileBackend(legacy).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Craigslist_https://sfbay.craigslist.org/1.html"}, ids)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{not json`), 0o644))
	s := New(NewFileBackend(corrupt))
	err = s.Load(ctx)
	require.Error(t, err)
	assert.True(t, werrors.IsType(err, werrors.ErrorTypeStore))
}
