package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addoodi/yt2audi/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHistory_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	assert.False(t, s.IsComplete("abc123"))
	require.NoError(t, s.MarkComplete("abc123"))
	assert.True(t, s.IsComplete("abc123"))
	assert.False(t, s.IsComplete("other"))
}

func TestHistory_MarkCompleteIdempotent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MarkComplete("abc123"))
	require.NoError(t, s.MarkComplete("abc123"))
	assert.True(t, s.IsComplete("abc123"))
}

func TestHistory_EmptyIDIgnored(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MarkComplete(""))
	assert.False(t, s.IsComplete(""))
}

func TestHistory_Clear(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MarkComplete("abc123"))
	require.NoError(t, s.ClearHistory())
	assert.False(t, s.IsComplete("abc123"))
}

func TestMetadata_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	url := "https://youtube.com/watch?v=abc123"

	_, ok := s.GetMetadata(url)
	assert.False(t, ok)

	meta := &model.Metadata{ID: "abc123", Title: "A Title", Uploader: "Someone", Duration: 123.4}
	require.NoError(t, s.PutMetadata(url, meta))

	got, ok := s.GetMetadata(url)
	require.True(t, ok)
	assert.Equal(t, meta, got)
}

func TestMetadata_ReplaceExisting(t *testing.T) {
	s := openTestStore(t)
	url := "https://youtube.com/watch?v=abc123"

	require.NoError(t, s.PutMetadata(url, &model.Metadata{ID: "abc123", Title: "old"}))
	require.NoError(t, s.PutMetadata(url, &model.Metadata{ID: "abc123", Title: "new"}))

	got, ok := s.GetMetadata(url)
	require.True(t, ok)
	assert.Equal(t, "new", got.Title)
}

func TestMetadata_TTLExpiry(t *testing.T) {
	s := openTestStore(t)
	url := "https://youtube.com/watch?v=abc123"

	require.NoError(t, s.PutMetadata(url, &model.Metadata{ID: "abc123"}))

	// a negative TTL makes every entry stale immediately
	s.SetCacheTTL(-time.Second)
	_, ok := s.GetMetadata(url)
	assert.False(t, ok, "stale entry served")

	// the stale entry is gone even after the TTL is restored
	s.SetCacheTTL(DefaultCacheTTL)
	_, ok = s.GetMetadata(url)
	assert.False(t, ok, "stale entry not evicted")
}

func TestMetadata_PerKeyIsolation(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutMetadata("url-a", &model.Metadata{ID: "a"}))
	require.NoError(t, s.PutMetadata("url-b", &model.Metadata{ID: "b"}))
	require.NoError(t, s.ClearHistory()) // unrelated table

	gotA, okA := s.GetMetadata("url-a")
	gotB, okB := s.GetMetadata("url-b")
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, "a", gotA.ID)
	assert.Equal(t, "b", gotB.ID)
}
