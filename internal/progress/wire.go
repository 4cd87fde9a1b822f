// ABOUTME: JSON request and response bodies shared by the gateway and its HTTP client
// ABOUTME: Records themselves travel as Record; these cover the remaining endpoints

package progress

import "time"

// SaveRequest is the body of POST /progress. The server normalizes it and
// stamps the update time.
type SaveRequest struct {
	PostID     EntityID `json:"post_id"`
	Pages      Pages    `json:"pages"`
	LastPage   int      `json:"last_page"`
	TotalPages int      `json:"total_pages"`
	Status     Status   `json:"status"`
}

// SaveRequestFor builds the save body for r.
func SaveRequestFor(r *Record) SaveRequest {
	return SaveRequest{
		PostID:     r.PostID,
		Pages:      r.Pages,
		LastPage:   r.LastPage,
		TotalPages: r.TotalPages,
		Status:     r.Status,
	}
}

// Record converts the request into a record stamped at now.
func (s SaveRequest) Record(now time.Time) *Record {
	return &Record{
		PostID:     s.PostID,
		Pages:      s.Pages,
		LastPage:   s.LastPage,
		TotalPages: s.TotalPages,
		Status:     s.Status,
		UpdatedAt:  now,
	}
}

// MarkRequest is the body of POST /mark.
type MarkRequest struct {
	PostID EntityID `json:"post_id"`
	Locked bool     `json:"locked"`
}

// ReadingItem is one entry of GET /readings.
type ReadingItem struct {
	PostID     EntityID  `json:"post_id"`
	Title      string    `json:"title"`
	Permalink  string    `json:"permalink"`
	Overall    float64   `json:"percent_overall"`
	LastPage   int       `json:"last_page"`
	TotalPages int       `json:"total_pages"`
	ResumeURL  string    `json:"resume_url"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewReadingItem builds the listing entry for r, linking back to the last
// page at its recorded position.
func NewReadingItem(r *Record, meta ArticleMeta) ReadingItem {
	return ReadingItem{
		PostID:     r.PostID,
		Title:      meta.Title,
		Permalink:  meta.Permalink,
		Overall:    r.Overall,
		LastPage:   r.LastPage,
		TotalPages: r.TotalPages,
		ResumeURL:  ResumeURL(meta.Permalink, r.LastPage, r.Pages[r.LastPage]),
		UpdatedAt:  r.UpdatedAt,
	}
}

// ErrorResponse is the body of every non-2xx gateway response.
type ErrorResponse struct {
	Error string `json:"error"`
}
