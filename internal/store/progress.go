// ABOUTME: Per-principal progress persistence and the in-progress readings query
// ABOUTME: ScopedTo exposes one principal's map as a ProgressStore

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/folio-gateway/internal/progress"
)

// Reading is an in-progress record joined with its catalog entry.
type Reading struct {
	Record  *progress.Record
	Article progress.ArticleMeta
}

// GetProgress returns one record of a principal.
func (s *SQLiteStore) GetProgress(ctx context.Context, principalID string, id progress.EntityID) (*progress.Record, error) {
	query := `
		SELECT post_id, pages_json, last_page, total_pages, percent_overall, status, updated_at
		FROM progress
		WHERE principal_id = ? AND post_id = ?
	`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, principalID, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying progress: %w", err)
	}
	return rec, nil
}

// SetProgress inserts or replaces one record of a principal.
func (s *SQLiteStore) SetProgress(ctx context.Context, principalID string, rec *progress.Record) error {
	if !rec.PostID.Valid() {
		return fmt.Errorf("%w: %d", progress.ErrInvalidEntity, rec.PostID)
	}

	pages, err := json.Marshal(rec.Pages)
	if err != nil {
		return fmt.Errorf("encoding pages: %w", err)
	}

	query := `
		INSERT INTO progress (principal_id, post_id, pages_json, last_page, total_pages, percent_overall, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(principal_id, post_id) DO UPDATE SET
			pages_json = excluded.pages_json,
			last_page = excluded.last_page,
			total_pages = excluded.total_pages,
			percent_overall = excluded.percent_overall,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		principalID,
		int64(rec.PostID),
		string(pages),
		rec.LastPage,
		rec.TotalPages,
		rec.Overall,
		string(rec.Status),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}

	s.logger.Debug("saved progress",
		"principal_id", principalID,
		"post_id", rec.PostID,
		"overall", rec.Overall,
		"status", rec.Status,
	)
	return nil
}

// ListProgress returns every record of a principal.
func (s *SQLiteStore) ListProgress(ctx context.Context, principalID string) (Records, error) {
	query := `
		SELECT post_id, pages_json, last_page, total_pages, percent_overall, status, updated_at
		FROM progress
		WHERE principal_id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("listing progress: %w", err)
	}
	defer rows.Close()

	out := make(Records)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning progress: %w", err)
		}
		out[rec.PostID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating progress: %w", err)
	}
	return out, nil
}

// DeleteProgress removes one record of a principal.
func (s *SQLiteStore) DeleteProgress(ctx context.Context, principalID string, id progress.EntityID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM progress WHERE principal_id = ? AND post_id = ?`, principalID, int64(id))
	if err != nil {
		return fmt.Errorf("deleting progress: %w", err)
	}
	return nil
}

// ListReadings returns the principal's started, unfinished and unlocked
// records of visible articles, most recently updated first. A non-positive
// limit returns every match.
func (s *SQLiteStore) ListReadings(ctx context.Context, principalID string, limit int) ([]*Reading, error) {
	query := `
		SELECT p.post_id, p.pages_json, p.last_page, p.total_pages, p.percent_overall, p.status, p.updated_at,
			a.title, a.permalink, a.total_pages
		FROM progress p
		JOIN articles a ON a.article_id = p.post_id
		WHERE p.principal_id = ?
			AND p.status = 'reading'
			AND p.percent_overall > 0
			AND p.percent_overall < 100
			AND a.visible = 1
		ORDER BY p.updated_at DESC, p.post_id
	`
	args := []any{principalID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing readings: %w", err)
	}
	defer rows.Close()

	readings := []*Reading{}
	for rows.Next() {
		var r Reading
		var id int64
		var pages, status, updatedAt string
		rec := &progress.Record{}
		if err := rows.Scan(&id, &pages, &rec.LastPage, &rec.TotalPages, &rec.Overall, &status, &updatedAt,
			&r.Article.Title, &r.Article.Permalink, &r.Article.TotalPages); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		if err := fillRecord(rec, id, pages, status, updatedAt); err != nil {
			return nil, err
		}
		r.Record = rec
		r.Article.ID = rec.PostID
		readings = append(readings, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return readings, nil
}

// ScopedTo returns a ProgressStore view over one principal's records.
func (s *SQLiteStore) ScopedTo(principalID string) ProgressStore {
	return &scopedStore{s: s, principalID: principalID}
}

type scopedStore struct {
	s           *SQLiteStore
	principalID string
}

func (p *scopedStore) Get(ctx context.Context, id progress.EntityID) (*progress.Record, error) {
	return p.s.GetProgress(ctx, p.principalID, id)
}

func (p *scopedStore) Set(ctx context.Context, rec *progress.Record) (*progress.Record, error) {
	if err := p.s.SetProgress(ctx, p.principalID, rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (p *scopedStore) List(ctx context.Context) (Records, error) {
	return p.s.ListProgress(ctx, p.principalID)
}

func (p *scopedStore) Delete(ctx context.Context, id progress.EntityID) error {
	return p.s.DeleteProgress(ctx, p.principalID, id)
}

func scanRecord(row rowScanner) (*progress.Record, error) {
	rec := &progress.Record{}
	var id int64
	var pages, status, updatedAt string

	if err := row.Scan(&id, &pages, &rec.LastPage, &rec.TotalPages, &rec.Overall, &status, &updatedAt); err != nil {
		return nil, err
	}
	if err := fillRecord(rec, id, pages, status, updatedAt); err != nil {
		return nil, err
	}
	return rec, nil
}

func fillRecord(rec *progress.Record, id int64, pages, status, updatedAt string) error {
	rec.PostID = progress.EntityID(id)
	rec.Status = progress.Status(status)
	if err := json.Unmarshal([]byte(pages), &rec.Pages); err != nil {
		return fmt.Errorf("decoding pages for %d: %w", id, err)
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return err
	}
	rec.UpdatedAt = t
	return nil
}
