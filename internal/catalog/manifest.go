// ABOUTME: YAML article manifest and its import into the article catalog
// ABOUTME: Each entry names a markdown file; title and page count come from the file

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/store"
)

// Manifest lists the articles to load into the catalog.
type Manifest struct {
	Articles []Entry `yaml:"articles"`
}

// Entry is one article in a manifest. Title and TotalPages override the
// values read from File. Visible defaults to true.
type Entry struct {
	ID         int64  `yaml:"id"`
	File       string `yaml:"file"`
	Permalink  string `yaml:"permalink"`
	Title      string `yaml:"title"`
	TotalPages int    `yaml:"total_pages"`
	Visible    *bool  `yaml:"visible"`
}

// ArticleStore persists catalog entries.
type ArticleStore interface {
	UpsertArticle(ctx context.Context, a *store.Article) error
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Resolve builds the catalog article for e. Relative files are read from
// baseDir.
func (e Entry) Resolve(baseDir string, now time.Time) (*store.Article, error) {
	id := progress.EntityID(e.ID)
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %d", progress.ErrInvalidEntity, e.ID)
	}
	if e.Permalink == "" {
		return nil, fmt.Errorf("article %d: permalink is required", e.ID)
	}

	doc := Document{Title: e.Title, TotalPages: e.TotalPages}
	if e.File != "" {
		path := e.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("article %d: %w", e.ID, err)
		}
		parsed := ParseMarkdown(src)
		if doc.Title == "" {
			doc.Title = parsed.Title
		}
		if doc.TotalPages < 1 {
			doc.TotalPages = parsed.TotalPages
		}
	}
	if doc.TotalPages < 1 {
		doc.TotalPages = 1
	}

	visible := true
	if e.Visible != nil {
		visible = *e.Visible
	}

	return &store.Article{
		ArticleMeta: progress.ArticleMeta{
			ID:         id,
			Title:      doc.Title,
			Permalink:  e.Permalink,
			TotalPages: doc.TotalPages,
		},
		Visible:   visible,
		UpdatedAt: now,
	}, nil
}

// Import loads every entry of the manifest at path into s and returns the
// number of articles written. It stops at the first invalid entry.
func Import(ctx context.Context, s ArticleStore, path string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := LoadManifest(path)
	if err != nil {
		return 0, err
	}

	baseDir := filepath.Dir(path)
	now := time.Now().UTC()
	for i, e := range m.Articles {
		a, err := e.Resolve(baseDir, now)
		if err != nil {
			return i, err
		}
		if err := s.UpsertArticle(ctx, a); err != nil {
			return i, fmt.Errorf("storing article %d: %w", e.ID, err)
		}
		logger.Debug("imported article", "post_id", a.ID, "title", a.Title, "total_pages", a.TotalPages, "visible", a.Visible)
	}
	return len(m.Articles), nil
}
