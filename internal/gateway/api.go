// ABOUTME: HTTP handlers for progress, marking, lookups, readings and config
// ABOUTME: Progress endpoints act on the authenticated principal's flat record map

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/folio-gateway/internal/auth"
	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// sendJSON writes v as a JSON response.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, progress.ErrorResponse{Error: message})
}

func (g *Gateway) sendInternalError(w http.ResponseWriter, op string, err error) {
	g.logger.Error(op+" failed", "error", err)
	g.sendJSONError(w, http.StatusInternalServerError, "internal error")
}

// decodeBody decodes a bounded JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the database answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := g.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "database unavailable: %v", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleConfig handles GET /config, publishing the tracking tunables so
// clients commit progress the same way.
func (g *Gateway) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	g.sendJSON(w, http.StatusOK, config.Published{
		Tracking:    g.config.Tracking,
		ResumeParam: progress.ResumeParam,
		AuthEnabled: g.verifier != nil,
	})
}

// handleProgress dispatches /progress by method.
func (g *Gateway) handleProgress(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListProgress(w, r)
	case http.MethodPost:
		g.handleSaveProgress(w, r)
	case http.MethodDelete:
		g.handleDeleteProgress(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleListProgress handles GET /progress: the caller's whole map.
func (g *Gateway) handleListProgress(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustFromContext(r.Context())

	all, err := g.store.ListProgress(r.Context(), principal.PrincipalID)
	if err != nil {
		g.sendInternalError(w, "list progress", err)
		return
	}
	g.sendJSON(w, http.StatusOK, all)
}

// handleSaveProgress handles POST /progress. The record is normalized and
// stamped with the server time before it replaces the stored one.
func (g *Gateway) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustFromContext(r.Context())

	var req progress.SaveRequest
	if err := decodeBody(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.PostID.Valid() {
		g.sendJSONError(w, http.StatusBadRequest, progress.ErrInvalidEntity.Error())
		return
	}

	now := g.now()
	rec := progress.Normalize(req.Record(now), now)
	if err := g.store.SetProgress(r.Context(), principal.PrincipalID, rec); err != nil {
		g.sendInternalError(w, "save progress", err)
		return
	}

	g.logger.Debug("progress saved",
		"principal_id", principal.PrincipalID,
		"post_id", rec.PostID,
		"overall", rec.Overall,
		"status", rec.Status,
	)
	g.sendJSON(w, http.StatusOK, rec)
}

// handleDeleteProgress handles DELETE /progress?post_id=N.
func (g *Gateway) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustFromContext(r.Context())

	id, err := progress.ParseEntityID(r.URL.Query().Get("post_id"))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, progress.ErrInvalidEntity.Error())
		return
	}
	if err := g.store.DeleteProgress(r.Context(), principal.PrincipalID, id); err != nil {
		g.sendInternalError(w, "delete progress", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMark handles POST /mark. A missing record is created first, sized
// from the catalog when the article is known.
func (g *Gateway) handleMark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	principal := auth.MustFromContext(r.Context())

	var req progress.MarkRequest
	if err := decodeBody(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.PostID.Valid() {
		g.sendJSONError(w, http.StatusBadRequest, progress.ErrInvalidEntity.Error())
		return
	}

	now := g.now()
	rec, err := g.store.GetProgress(r.Context(), principal.PrincipalID, req.PostID)
	if errors.Is(err, store.ErrNotFound) {
		rec = progress.NewRecord(req.PostID, g.catalogPages(r, req.PostID), now)
	} else if err != nil {
		g.sendInternalError(w, "load progress", err)
		return
	}

	rec = progress.ApplyMark(rec, req.Locked, now)
	if err := g.store.SetProgress(r.Context(), principal.PrincipalID, rec); err != nil {
		g.sendInternalError(w, "mark progress", err)
		return
	}

	g.logger.Info("progress marked",
		"principal_id", principal.PrincipalID,
		"post_id", rec.PostID,
		"locked", req.Locked,
	)
	g.sendJSON(w, http.StatusOK, rec)
}

// catalogPages returns the article's page count, or 1 when it is unknown.
func (g *Gateway) catalogPages(r *http.Request, id progress.EntityID) int {
	a, err := g.store.GetArticle(r.Context(), id)
	if err != nil {
		return 1
	}
	return a.TotalPages
}

// parseIDList parses a comma-separated id list, dropping malformed and
// duplicate tokens.
func parseIDList(raw string, limit int) []progress.EntityID {
	seen := make(map[progress.EntityID]bool)
	var ids []progress.EntityID
	for _, tok := range strings.Split(raw, ",") {
		id, err := progress.ParseEntityID(tok)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		if len(ids) == limit {
			break
		}
	}
	return ids
}

// handleLookup handles GET /lookup?ids=1,2,3. Unknown and hidden articles
// are omitted from the result.
func (g *Gateway) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ids := parseIDList(r.URL.Query().Get("ids"), maxLookupIDs)
	found, err := g.store.LookupArticles(r.Context(), ids)
	if err != nil {
		g.sendInternalError(w, "lookup", err)
		return
	}
	g.sendJSON(w, http.StatusOK, found)
}

// readingsLimit resolves the ?limit parameter against the configured
// default and maximum. Unparseable values fall back to the default.
func (g *Gateway) readingsLimit(r *http.Request) int {
	limit := g.config.Readings.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = max(1, n)
		}
	}
	return min(limit, g.config.Readings.MaxLimit)
}

// handleReadings handles GET /readings: the caller's in-progress articles,
// most recent first, each with a resume link.
func (g *Gateway) handleReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	principal := auth.MustFromContext(r.Context())
	limit := g.readingsLimit(r)

	// Fetch without a limit when exclusions could shorten the page.
	queryLimit := limit
	if len(g.excluded) > 0 {
		queryLimit = 0
	}
	readings, err := g.store.ListReadings(r.Context(), principal.PrincipalID, queryLimit)
	if err != nil {
		g.sendInternalError(w, "list readings", err)
		return
	}

	items := make([]progress.ReadingItem, 0, limit)
	for _, rd := range readings {
		if g.excluded[rd.Record.PostID] {
			continue
		}
		items = append(items, progress.NewReadingItem(rd.Record, rd.Article))
		if len(items) == limit {
			break
		}
	}
	g.sendJSON(w, http.StatusOK, items)
}
