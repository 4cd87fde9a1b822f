// ABOUTME: Principal entity and store methods for reader identities
// ABOUTME: A principal owns one progress map; tokens are issued against its id

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicatePrincipal is returned when a principal id already exists.
var ErrDuplicatePrincipal = errors.New("principal already exists")

// PrincipalStatus is the lifecycle state of a principal.
type PrincipalStatus string

const (
	PrincipalStatusApproved PrincipalStatus = "approved"
	PrincipalStatusRevoked  PrincipalStatus = "revoked"
)

// Principal is an authenticated reader identity.
type Principal struct {
	ID          string
	DisplayName string
	Status      PrincipalStatus
	CreatedAt   time.Time
	LastSeen    *time.Time
}

// Active reports whether the principal may use the API.
func (p *Principal) Active() bool {
	return p.Status == PrincipalStatusApproved
}

// CreatePrincipal inserts a new principal.
func (s *SQLiteStore) CreatePrincipal(ctx context.Context, p *Principal) error {
	query := `
		INSERT INTO principals (principal_id, display_name, status, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.DisplayName,
		p.Status,
		formatTime(p.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicatePrincipal
		}
		return fmt.Errorf("inserting principal: %w", err)
	}

	s.logger.Info("created principal", "principal_id", p.ID, "display_name", p.DisplayName)
	return nil
}

// GetPrincipal retrieves a principal by id.
func (s *SQLiteStore) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	query := `
		SELECT principal_id, display_name, status, created_at, last_seen
		FROM principals
		WHERE principal_id = ?
	`

	p, err := scanPrincipal(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying principal: %w", err)
	}
	return p, nil
}

// ListPrincipals returns every principal ordered by creation time.
func (s *SQLiteStore) ListPrincipals(ctx context.Context) ([]*Principal, error) {
	query := `
		SELECT principal_id, display_name, status, created_at, last_seen
		FROM principals
		ORDER BY created_at, principal_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing principals: %w", err)
	}
	defer rows.Close()

	principals := []*Principal{}
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning principal: %w", err)
		}
		principals = append(principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating principals: %w", err)
	}
	return principals, nil
}

// SetPrincipalStatus updates the status of a principal.
func (s *SQLiteStore) SetPrincipalStatus(ctx context.Context, id string, status PrincipalStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE principals SET status = ? WHERE principal_id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating principal status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Info("updated principal status", "principal_id", id, "status", status)
	return nil
}

// TouchPrincipal records the last time a principal used the API.
func (s *SQLiteStore) TouchPrincipal(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE principals SET last_seen = ? WHERE principal_id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("updating last seen: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*Principal, error) {
	var p Principal
	var status, createdAt string
	var lastSeen sql.NullString

	if err := row.Scan(&p.ID, &p.DisplayName, &status, &createdAt, &lastSeen); err != nil {
		return nil, err
	}
	p.Status = PrincipalStatus(status)

	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = t

	if lastSeen.Valid {
		ls, err := parseTime(lastSeen.String)
		if err != nil {
			return nil, err
		}
		p.LastSeen = &ls
	}
	return &p, nil
}
