package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/harvest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "raw"))
	require.NoError(t, err)
	return s
}

func TestNewStore_RequiresRoot(t *testing.T) {
	_, err := NewStore("  ")
	assert.ErrorIs(t, err, ErrRootRequired)
}

func TestStore_WriteRead(t *testing.T) {
	s := newTestStore(t)
	depth := 1
	records := []core.RawContentRecord{
		{URL: "https://example.com/", Title: "Home", Content: "hello", Metadata: map[string]string{"source_type": core.SourceTypeWeb}},
		{URL: "https://example.com/a", Title: "A", Content: "world", Depth: &depth},
	}
	env := NewEnvelope(records, core.DeepSummary{RootURL: "https://example.com/", PagesScraped: 2, MaxDepthReached: 1})

	require.NoError(t, s.Write("job-1", env))

	path, err := s.Path("job-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "job-1", FileName), path)

	got, err := s.Read("job-1")
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, "https://example.com/", got.RootURL)
	assert.Equal(t, 2, got.PagesScraped)
	require.NotNil(t, got.MaxDepthReached)
	assert.Equal(t, 1, *got.MaxDepthReached)
	assert.Equal(t, records, got.Results)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestStore_SitemapEnvelope(t *testing.T) {
	env := NewEnvelope(nil, core.SitemapSummary{SitemapURL: "https://example.com/sitemap.xml", TotalURLsFound: 7, PagesScraped: 5})
	assert.Equal(t, "https://example.com/sitemap.xml", env.SitemapURL)
	assert.Equal(t, 7, env.TotalURLsFound)
	assert.NotNil(t, env.Results)
	assert.Nil(t, env.MaxDepthReached)
}

func TestStore_ReadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Read("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Exists("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_LoadUnsuccessful(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("job-2", Failed("fetch failed: 503")))

	_, err := s.Load("job-2")
	assert.ErrorIs(t, err, ErrUnsuccessful)
	assert.Contains(t, err.Error(), "503")
}

func TestStore_LegacyShape(t *testing.T) {
	s := newTestStore(t)
	dir := filepath.Join(s.Root(), "legacy")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	legacy := `{"success": true, "url": "https://example.com/", "title": "Old", "content": "old body", "metadata": {"status_code": "200"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(legacy), 0o644))

	records, err := s.Load("legacy")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://example.com/", records[0].URL)
	assert.Equal(t, "old body", records[0].Content)
	assert.Equal(t, "200", records[0].Metadata["status_code"])
}

func TestStore_TypedMetadata(t *testing.T) {
	s := newTestStore(t)
	dir := filepath.Join(s.Root(), "typed")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	raw := `{"success": true, "results": [
		{"url": "https://example.com/a", "title": "A", "content": "alpha", "metadata": {"status_code": 200, "page_count": 3}},
		{"filename": "b.pdf", "title": "B", "content": "beta", "metadata": {"page_count": 12, "encrypted": false}}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(raw), 0o644))

	records, err := s.Load("typed")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "200", records[0].Metadata["status_code"])
	assert.Equal(t, "3", records[0].Metadata["page_count"])
	assert.Equal(t, "12", records[1].Metadata["page_count"])
	assert.Equal(t, "false", records[1].Metadata["encrypted"])

	legacy := `{"success": true, "url": "https://example.com/", "content": "old", "metadata": {"status_code": 404}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(legacy), 0o644))
	records, err = s.Load("typed")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "404", records[0].Metadata["status_code"])
}

func TestStore_Malformed(t *testing.T) {
	s := newTestStore(t)
	dir := filepath.Join(s.Root(), "bad")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644))

	_, err := s.Read("bad")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("job-3", NewEnvelope(nil, nil)))

	ok, err := s.Exists("job-3")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete("job-3"))
	ok, err = s.Exists("job-3")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete("job-3"), "deleting twice is fine")
}

func TestStore_RejectsUnsafeIDs(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"", ".", "..", "../etc", "a/b", `a\b`} {
		_, err := s.Path(id)
		assert.ErrorIs(t, err, ErrInvalidJobID, id)
		assert.ErrorIs(t, s.Delete(id), ErrInvalidJobID, id)
	}
}
