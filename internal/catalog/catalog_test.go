// ABOUTME: Tests for markdown metadata extraction and manifest import
// ABOUTME: Imports into a temporary SQLite catalog and checks lookups

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/store"
)

func TestParseMarkdown_TitleAndPages(t *testing.T) {
	src := []byte(`# The *Long* Read

Opening paragraph.

<!--nextpage-->

Second page.

<!--nextpage-->

## Third page heading

Done.
`)
	doc := ParseMarkdown(src)
	assert.Equal(t, "The Long Read", doc.Title)
	assert.Equal(t, 3, doc.TotalPages)
}

func TestParseMarkdown_IgnoresCode(t *testing.T) {
	src := []byte("# Markers\n\nUse `<!--nextpage-->` to split.\n\n```html\n<!--nextpage-->\n```\n\n    <!--nextpage-->\n")
	doc := ParseMarkdown(src)
	assert.Equal(t, "Markers", doc.Title)
	assert.Equal(t, 1, doc.TotalPages)
}

func TestParseMarkdown_InlineBreak(t *testing.T) {
	doc := ParseMarkdown([]byte("Text before <!--nextpage--> text after.\n"))
	assert.Empty(t, doc.Title)
	assert.Equal(t, 2, doc.TotalPages)
}

func TestParseMarkdown_Empty(t *testing.T) {
	doc := ParseMarkdown(nil)
	assert.Equal(t, 1, doc.TotalPages)
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestImport_IntoSQLite(t *testing.T) {
	ctx := context.Background()
	dir := writeTree(t, map[string]string{
		"posts/one.md": "# One\n\nbody\n\n<!--nextpage-->\n\nmore\n",
		"posts/two.md": "# Two\n",
		"manifest.yaml": `
articles:
  - id: 1
    file: posts/one.md
    permalink: https://example.com/one/
  - id: 2
    file: posts/two.md
    permalink: https://example.com/two/
    title: Second Article
    visible: false
  - id: 3
    permalink: https://example.com/three/
    total_pages: 4
    title: No Source
`,
	})

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	n, err := Import(ctx, s, filepath.Join(dir, "manifest.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	one, err := s.GetArticle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "One", one.Title)
	assert.Equal(t, 2, one.TotalPages)
	assert.True(t, one.Visible)

	two, err := s.GetArticle(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Second Article", two.Title)
	assert.False(t, two.Visible)

	found, err := s.LookupArticles(ctx, []progress.EntityID{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, 4, found[3].TotalPages)
}

func TestEntry_Resolve_Errors(t *testing.T) {
	now := time.Now()

	_, err := Entry{ID: 0, Permalink: "https://example.com/"}.Resolve(".", now)
	assert.ErrorIs(t, err, progress.ErrInvalidEntity)

	_, err = Entry{ID: 5}.Resolve(".", now)
	assert.ErrorContains(t, err, "permalink")

	_, err = Entry{ID: 5, Permalink: "https://example.com/", File: "missing.md"}.Resolve(t.TempDir(), now)
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) UpsertArticle(ctx context.Context, a *store.Article) error {
	return store.ErrUnavailable
}

func TestImport_StopsOnStoreError(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"manifest.yaml": "articles:\n  - id: 1\n    permalink: https://example.com/one/\n",
	})
	n, err := Import(context.Background(), failingStore{}, filepath.Join(dir, "manifest.yaml"), nil)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, 0, n)
}
