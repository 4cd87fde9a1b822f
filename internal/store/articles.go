// ABOUTME: Article catalog persistence backing the public metadata lookup
// ABOUTME: Hidden articles are stored but never returned by lookups

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2389/folio-gateway/internal/progress"
)

// Article is a catalog entry.
type Article struct {
	progress.ArticleMeta
	Visible   bool
	UpdatedAt time.Time
}

// UpsertArticle inserts or replaces a catalog entry.
func (s *SQLiteStore) UpsertArticle(ctx context.Context, a *Article) error {
	if !a.ID.Valid() {
		return fmt.Errorf("%w: %d", progress.ErrInvalidEntity, a.ID)
	}
	total := a.TotalPages
	if total < 1 {
		total = 1
	}

	query := `
		INSERT INTO articles (article_id, title, permalink, total_pages, visible, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(article_id) DO UPDATE SET
			title = excluded.title,
			permalink = excluded.permalink,
			total_pages = excluded.total_pages,
			visible = excluded.visible,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		int64(a.ID),
		a.Title,
		a.Permalink,
		total,
		boolToInt(a.Visible),
		formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting article: %w", err)
	}

	s.logger.Debug("upserted article", "article_id", a.ID, "title", a.Title)
	return nil
}

// GetArticle retrieves a catalog entry regardless of visibility.
func (s *SQLiteStore) GetArticle(ctx context.Context, id progress.EntityID) (*Article, error) {
	query := `
		SELECT article_id, title, permalink, total_pages, visible, updated_at
		FROM articles
		WHERE article_id = ?
	`

	a, err := scanArticle(s.db.QueryRowContext(ctx, query, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying article: %w", err)
	}
	return a, nil
}

// ListArticles returns the whole catalog ordered by id.
func (s *SQLiteStore) ListArticles(ctx context.Context) ([]*Article, error) {
	query := `
		SELECT article_id, title, permalink, total_pages, visible, updated_at
		FROM articles
		ORDER BY article_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	defer rows.Close()

	articles := []*Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating articles: %w", err)
	}
	return articles, nil
}

// LookupArticles returns metadata for the visible articles among ids.
// Unknown and hidden ids are omitted.
func (s *SQLiteStore) LookupArticles(ctx context.Context, ids []progress.EntityID) (map[progress.EntityID]progress.ArticleMeta, error) {
	out := make(map[progress.EntityID]progress.ArticleMeta, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = int64(id)
	}

	query := `
		SELECT article_id, title, permalink, total_pages, visible, updated_at
		FROM articles
		WHERE visible = 1 AND article_id IN (` + strings.Join(placeholders, ",") + `)
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("looking up articles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		out[a.ID] = a.ArticleMeta
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating articles: %w", err)
	}
	return out, nil
}

func scanArticle(row rowScanner) (*Article, error) {
	var a Article
	var id int64
	var visible int
	var updatedAt string

	if err := row.Scan(&id, &a.Title, &a.Permalink, &a.TotalPages, &visible, &updatedAt); err != nil {
		return nil, err
	}
	a.ID = progress.EntityID(id)
	a.Visible = visible != 0

	t, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	a.UpdatedAt = t
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
