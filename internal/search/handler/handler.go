// Package handler exposes search, document indexing and vocabulary
// administration over HTTP.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/babelindex/babelindex/internal/engine/resolver"
	"github.com/babelindex/babelindex/internal/indexer"
	"github.com/babelindex/babelindex/internal/search"
	"github.com/babelindex/babelindex/internal/vocab"
	"github.com/babelindex/babelindex/internal/vocabadmin"
	apperrors "github.com/babelindex/babelindex/pkg/errors"
	"github.com/babelindex/babelindex/pkg/logger"
)

type Handler struct {
	search  *search.Service
	indexer *indexer.Indexer
	admin   *vocabadmin.Service
	resolve *resolver.Resolver
	logger  *slog.Logger
}

func New(searchSvc *search.Service, idx *indexer.Indexer, admin *vocabadmin.Service, res *resolver.Resolver) *Handler {
	return &Handler{
		search:  searchSvc,
		indexer: idx,
		admin:   admin,
		resolve: res,
		logger:  slog.Default().With("component", "http-handler"),
	}
}

// Register attaches all routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/lookup", h.Lookup)
	mux.HandleFunc("POST /api/v1/documents", h.IndexDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{type}/{id}", h.DeleteDocument)
	mux.HandleFunc("POST /api/v1/words", h.CreateWord)
	mux.HandleFunc("DELETE /api/v1/words", h.DeleteWord)
	mux.HandleFunc("PUT /api/v1/words/indexable", h.SetIndexable)
	mux.HandleFunc("POST /api/v1/meanings", h.CreateMeaning)
	mux.HandleFunc("POST /api/v1/meanings/{id}/join", h.JoinMeanings)
	mux.HandleFunc("POST /api/v1/meanings/{id}/split", h.SplitMeaning)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	docType := r.URL.Query().Get("type")

	offset, ok := h.intParam(w, r, "offset", 0)
	if !ok {
		return
	}
	limit, ok := h.intParam(w, r, "limit", 0)
	if !ok {
		return
	}

	result, cacheHit, err := h.search.Search(ctx, query, docType, offset, limit)
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeAppError(w, err)
		return
	}

	log.Info("search completed",
		"query", query,
		"doc_type", docType,
		"hits", len(result.Hits),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

// Lookup resolves a text to meanings without scoring, for vocabulary
// inspection.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'text' is required")
		return
	}

	resolved, err := h.resolve.LookupSentence(r.Context(), text)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	meanings := make([]*vocab.Meaning, 0, len(resolved.Meanings))
	for _, m := range resolved.Meanings {
		meanings = append(meanings, m)
	}
	found := make([]string, 0, len(resolved.FoundSpellings))
	for s := range resolved.FoundSpellings {
		found = append(found, s)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"meanings":        meanings,
		"found_spellings": found,
	})
}

type indexRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (h *Handler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if !h.decode(w, r, &req) {
		return
	}

	doc := vocab.Document{
		Ref:  vocab.DocumentRef{Type: req.Type, ID: req.ID},
		Text: req.Text,
	}
	if err := h.indexer.IndexDocument(r.Context(), doc); err != nil {
		h.writeAppError(w, err)
		return
	}
	h.search.InvalidateCache(r.Context())
	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "indexed", "document": doc.Ref.String()})
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	ref := vocab.DocumentRef{Type: r.PathValue("type"), ID: r.PathValue("id")}

	if err := h.indexer.DeleteDocument(r.Context(), ref); err != nil {
		h.writeAppError(w, err)
		return
	}
	h.search.InvalidateCache(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "document": ref.String()})
}

type wordRequest struct {
	Spelling string `json:"spelling"`
	Language string `json:"language"`
}

func (h *Handler) CreateWord(w http.ResponseWriter, r *http.Request) {
	var req wordRequest
	if !h.decode(w, r, &req) {
		return
	}

	word, err := h.admin.CreateWord(r.Context(), req.Spelling, req.Language)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, word)
}

func (h *Handler) DeleteWord(w http.ResponseWriter, r *http.Request) {
	spelling := r.URL.Query().Get("spelling")
	if spelling == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'spelling' is required")
		return
	}
	language := r.URL.Query().Get("language")

	if err := h.admin.DeleteWord(r.Context(), spelling, language); err != nil {
		h.writeAppError(w, err)
		return
	}
	h.search.InvalidateCache(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type indexableRequest struct {
	Spelling  string `json:"spelling"`
	Language  string `json:"language"`
	Indexable bool   `json:"indexable"`
}

func (h *Handler) SetIndexable(w http.ResponseWriter, r *http.Request) {
	var req indexableRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.admin.SetIndexable(r.Context(), req.Spelling, req.Language, req.Indexable); err != nil {
		h.writeAppError(w, err)
		return
	}
	h.search.InvalidateCache(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]any{"spelling": req.Spelling, "indexable": req.Indexable})
}

type meaningRequest struct {
	Words []vocab.WordRef `json:"words"`
}

func (h *Handler) CreateMeaning(w http.ResponseWriter, r *http.Request) {
	var req meaningRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Words) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one word is required")
		return
	}

	meaning, err := h.admin.CreateMeaning(r.Context(), req.Words)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.search.InvalidateCache(r.Context())
	h.writeJSON(w, http.StatusCreated, meaning)
}

type joinRequest struct {
	OtherIDs []int64 `json:"other_ids"`
}

func (h *Handler) JoinMeanings(w http.ResponseWriter, r *http.Request) {
	survivorID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "meaning id must be an integer")
		return
	}
	var req joinRequest
	if !h.decode(w, r, &req) {
		return
	}

	meaning, err := h.admin.JoinMeanings(r.Context(), survivorID, req.OtherIDs)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.search.InvalidateCache(r.Context())
	h.writeJSON(w, http.StatusOK, meaning)
}

type splitRequest struct {
	Replacements [][]vocab.WordRef `json:"replacements"`
}

func (h *Handler) SplitMeaning(w http.ResponseWriter, r *http.Request) {
	sourceID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "meaning id must be an integer")
		return
	}
	var req splitRequest
	if !h.decode(w, r, &req) {
		return
	}

	meanings, err := h.admin.SplitMeaning(r.Context(), sourceID, req.Replacements)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.search.InvalidateCache(r.Context())
	h.writeJSON(w, http.StatusOK, meanings)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses, enabled := h.search.CacheStats()
	if !enabled {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	h.search.InvalidateCache(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		h.writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return parsed, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
}
