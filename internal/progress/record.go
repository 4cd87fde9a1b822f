// ABOUTME: ProgressRecord type, normalization and explicit mark/unmark policy
// ABOUTME: Normalize is the repair path for malformed or legacy persisted records

package progress

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidEntity is returned when an entity id is not a positive integer.
var ErrInvalidEntity = errors.New("invalid post_id")

// EntityID identifies an article. Valid ids are positive.
type EntityID int64

// String returns the decimal form used as the local-store map key.
func (id EntityID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Valid reports whether id can be used as a record key.
func (id EntityID) Valid() bool {
	return id > 0
}

// ParseEntityID parses a decimal entity id, rejecting non-positive values.
func ParseEntityID(s string) (EntityID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidEntity, s)
	}
	return EntityID(n), nil
}

// Status is the tracking status of a record.
type Status string

// Status values
const (
	StatusReading Status = "reading"
	StatusLocked  Status = "locked_done" // user marked complete; overrides tracking
)

// Pages maps page index (1-based) to a completion percentage.
type Pages map[int]float64

// Clone returns an independent copy of p. A nil map clones to an empty map.
func (p Pages) Clone() Pages {
	out := make(Pages, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Record is the progress of one owner through one article.
type Record struct {
	PostID     EntityID  `json:"post_id"`
	Pages      Pages     `json:"pages"`
	LastPage   int       `json:"last_page"`
	TotalPages int       `json:"total_pages"`
	Overall    float64   `json:"percent_overall"`
	Status     Status    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewRecord creates a fresh record with every page at 0.
func NewRecord(id EntityID, totalPages int, now time.Time) *Record {
	if totalPages < 1 {
		totalPages = 1
	}
	pages := make(Pages, totalPages)
	for i := 1; i <= totalPages; i++ {
		pages[i] = 0
	}
	return &Record{
		PostID:     id,
		Pages:      pages,
		LastPage:   1,
		TotalPages: totalPages,
		Status:     StatusReading,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Pages = r.Pages.Clone()
	return &c
}

// Locked reports whether the record was explicitly marked as read.
func (r *Record) Locked() bool {
	return r.Status == StatusLocked
}

// Normalize returns a repaired copy of r: pages are exactly 1..TotalPages
// clamped to [0,100], LastPage is within range, pages before LastPage are
// filled forward, and Overall is recomputed (100 when locked). A zero
// UpdatedAt is stamped with now.
func Normalize(r *Record, now time.Time) *Record {
	out := &Record{
		PostID:     r.PostID,
		TotalPages: r.TotalPages,
		LastPage:   r.LastPage,
		Status:     r.Status,
		UpdatedAt:  r.UpdatedAt,
	}
	if out.TotalPages < 1 {
		out.TotalPages = 1
	}
	if out.LastPage < 1 {
		out.LastPage = 1
	}
	if out.LastPage > out.TotalPages {
		out.LastPage = out.TotalPages
	}
	if out.Status != StatusLocked {
		out.Status = StatusReading
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = now
	}

	pages := make(Pages, out.TotalPages)
	for i := 1; i <= out.TotalPages; i++ {
		pages[i] = Clamp(r.Pages[i], 0, 100)
	}
	out.Pages = FillForward(pages, out.LastPage)

	out.Overall = ComputeOverall(out.Pages, out.TotalPages)
	if out.Locked() {
		out.Overall = 100
	}
	return out
}

// WithTotalPages returns a normalized copy of r resized to totalPages, the
// pagination declared by the document being viewed.
func WithTotalPages(r *Record, totalPages int, now time.Time) *Record {
	c := r.Clone()
	c.TotalPages = totalPages
	return Normalize(c, now)
}

// ApplyMark applies an explicit mark-as-read (locked) or unmark action.
// Marking forces Overall to 100; unmarking returns to reading without
// touching the stored percentage.
func ApplyMark(r *Record, locked bool, now time.Time) *Record {
	c := r.Clone()
	if locked {
		c.Status = StatusLocked
		c.Overall = 100
	} else {
		c.Status = StatusReading
	}
	c.UpdatedAt = now
	return c
}

// InProgress reports whether r belongs in a "continue reading" listing:
// started, not finished, and not explicitly marked as read.
func InProgress(r *Record) bool {
	return r != nil && !r.Locked() && r.Overall > 0 && r.Overall < 100
}
