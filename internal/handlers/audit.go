package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/crucial707/audit-search/internal/models"
	"github.com/crucial707/audit-search/internal/repo"
	"github.com/crucial707/audit-search/internal/search"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// Searcher narrows a base audit collection by a search term.
type Searcher interface {
	Search(ctx context.Context, term string, base repo.Query, msg search.Messenger) (search.Result, error)
}

// AuditHandler serves audit log endpoints.
type AuditHandler struct {
	Repo     *repo.AuditRepo
	Searcher Searcher
}

// AuditPage is one page of a filtered, searched audit log listing.
type AuditPage struct {
	Items    []models.AuditEntry `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Strategy string              `json:"strategy"`
	Messages []search.Message    `json:"messages"`
}

// ListAudit returns one page of audit entries.
// Query: q (search term), action, content_type, cid, limit (default 50, max 200), offset.
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	fields := make(map[string]string)

	limit := defaultAuditLimit
	if l := params.Get("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil || val <= 0 || val > maxAuditLimit {
			fields["limit"] = "must be between 1 and 200"
		}
		limit = val
	}
	offset := 0
	if o := params.Get("offset"); o != "" {
		val, err := strconv.Atoi(o)
		if err != nil || val < 0 {
			fields["offset"] = "must be a non-negative integer"
		}
		offset = val
	}

	base := repo.AllEntries()
	if a := params.Get("action"); a != "" {
		action, ok := models.ParseAction(a)
		if !ok {
			fields["action"] = "must be one of create, update, delete, access"
		}
		base = base.WithAction(action)
	}
	if ct := params.Get("content_type"); ct != "" {
		val, err := strconv.Atoi(ct)
		if err != nil || val <= 0 {
			fields["content_type"] = "must be a positive integer"
		}
		base = base.WithContentType(val)
	}
	if cid := params.Get("cid"); cid != "" {
		base = base.WithCID(cid)
	}
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	rec := &search.Recorder{}
	res, err := h.Searcher.Search(ctx, strings.TrimSpace(params.Get("q")), base, rec)
	if err != nil {
		log.Error().Err(err).Msg("audit search")
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	items, err := h.Repo.Find(ctx, res.Query, limit, offset)
	if err != nil {
		log.Error().Err(err).Str("strategy", res.Strategy).Msg("audit search: find")
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	total, err := h.Repo.Count(ctx, res.Query)
	if err != nil {
		log.Error().Err(err).Str("strategy", res.Strategy).Msg("audit search: count")
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	if items == nil {
		items = []models.AuditEntry{}
	}
	messages := rec.Messages()
	if messages == nil {
		messages = []search.Message{}
	}
	writeJSON(w, http.StatusOK, AuditPage{
		Items:    items,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
		Strategy: res.Strategy,
		Messages: messages,
	})
}

// GetAudit returns one audit entry by id.
func (h *AuditHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		JSONError(w, "invalid id", http.StatusBadRequest)
		return
	}
	entry, err := h.Repo.Get(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		JSONError(w, "audit entry not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("get audit entry")
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
