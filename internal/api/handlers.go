package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dia/internal/journal"
	"github.com/starford/dia/internal/models"
)

// maxBodyBytes caps request bodies for entry creation.
const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *journal.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *journal.Service) *Handler {
	return &Handler{svc: svc}
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List entries, newest first
//	@Tags			entries
//	@Produce		json
//	@Param			date	query		string	false	"Date or range (YYYY-MM-DD or YYYY-MM-DD..YYYY-MM-DD)"
//	@Param			q		query		string	false	"Full-text query"
//	@Param			person	query		string	false	"Person name"
//	@Param			project	query		string	false	"Project name"
//	@Param			tag		query		string	false	"Tag name"
//	@Param			limit	query		int		false	"Max entries"
//	@Success		200		{object}	EntryListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := journal.ParseDateRange(q.Get("date"))
	if err != nil {
		writeError(w, "list entries", err)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	entries, err := h.svc.FilterDetails(r.Context(), journal.Filter{
		From:    from,
		To:      to,
		Text:    q.Get("q"),
		Person:  q.Get("person"),
		Project: q.Get("project"),
		Tag:     q.Get("tag"),
		Limit:   limit,
	})
	if err != nil {
		writeError(w, "list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: entries, Total: len(entries)})
}

// GetEntry handles GET /api/entries/{id}.
//
//	@Summary		Get a single entry with its people, projects and tags
//	@Tags			entries
//	@Produce		json
//	@Param			id	path		int	true	"Entry id"
//	@Success		200	{object}	EntryDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("id must be a positive integer"))
		return
	}
	entry, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// CreateEntry handles POST /api/entries.
//
//	@Summary		Log a new entry
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateEntryRequest	true	"Entry to log"
//	@Success		201		{object}	EntryDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [post]
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	entry, err := h.svc.Ingest(r.Context(), req.Content, req.Date)
	if err != nil {
		writeError(w, "create entry", err)
		return
	}
	detail, err := h.svc.Get(r.Context(), entry.ID)
	if err != nil {
		writeError(w, "create entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// Search handles GET /api/search.
//
//	@Summary		Ranked full-text search across entries
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// ListEntities handles GET /api/entities/{namespace}.
//
//	@Summary		List people, projects or tags
//	@Tags			entities
//	@Produce		json
//	@Param			namespace	path		string	true	"people, projects or tags"
//	@Param			prefix		query		string	false	"Name prefix"
//	@Param			limit		query		int		false	"Max names"
//	@Success		200			{object}	EntityListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entities/{namespace} [get]
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	ns, ok := models.ParseNamespace(chi.URLParam(r, "namespace"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("namespace must be people, projects or tags"))
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	var (
		names []string
		err   error
	)
	if prefix := q.Get("prefix"); prefix != "" || limit > 0 {
		names, err = h.svc.EntitiesWithPrefix(r.Context(), ns, prefix, limit)
	} else {
		names, err = h.svc.Entities(r.Context(), ns)
	}
	if err != nil {
		writeError(w, "list entities", err)
		return
	}
	writeJSON(w, http.StatusOK, EntityListResponse{Namespace: ns, Names: names})
}

// Complete handles GET /api/complete.
//
//	@Summary		Complete the sigil word before the cursor
//	@Tags			entities
//	@Produce		json
//	@Param			line	query		string	true	"Input line"
//	@Param			pos		query		int		false	"Cursor byte offset (default end of line)"
//	@Success		200		{object}	CompleteResponse
//	@Security		BearerAuth
//	@Router			/complete [get]
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	line := q.Get("line")
	pos := len(line)
	if raw := q.Get("pos"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("pos must be an integer"))
			return
		}
		pos = p
	}
	start, candidates, err := h.svc.Complete(r.Context(), line, pos)
	if err != nil {
		writeError(w, "complete", err)
		return
	}
	if candidates == nil {
		candidates = []journal.Candidate{}
	}
	writeJSON(w, http.StatusOK, CompleteResponse{Start: start, Candidates: candidates})
}

// Stats handles GET /api/stats.
//
//	@Summary		Row counts for entries, entities, links and the index
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	Stats
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Counts(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
