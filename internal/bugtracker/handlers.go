package bugtracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	internalerrors "github.com/olegiv/crashlens-ai-go/internal/errors"
	"github.com/olegiv/crashlens-ai-go/internal/httpapi"
	"github.com/olegiv/crashlens-ai-go/internal/logging"
)

// Demo data sizes.
const (
	DefaultSeedCount = 50
	MaxGenerate      = 500
)

// ErrAlreadySeeded is returned when demo data is already present.
var ErrAlreadySeeded = errors.New("demo bugs already generated")

// Seed adds n generated bugs unless demo data already exists and force is false.
func Seed(ctx context.Context, store *Store, gen *Generator, n int, force bool) (int, error) {
	if n <= 0 {
		n = DefaultSeedCount
	}
	if !force {
		existing, err := store.List(ctx, "")
		if err != nil {
			return 0, err
		}
		if HasDemoData(existing) {
			return 0, ErrAlreadySeeded
		}
	}
	return store.BulkCreate(ctx, gen.Generate(n))
}

// Handler serves the tracker's JSON API.
type Handler struct {
	store *Store
	gen   *Generator
	log   *logging.SecureLogger
}

// NewHandler creates the API handler.
func NewHandler(store *Store, gen *Generator, log *logging.SecureLogger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{store: store, gen: gen, log: log.Component("bugtracker")}
}

// Routes returns the tracker mux wrapped with CORS and request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/bugs", h.handleList)
	mux.HandleFunc("POST /api/bugs", h.handleCreate)
	mux.HandleFunc("GET /api/bugs/stats", h.handleStats)
	mux.HandleFunc("POST /api/bugs/bulk", h.handleBulk)
	mux.HandleFunc("POST /api/bugs/generate", h.handleGenerate)
	mux.HandleFunc("GET /api/bugs/{id}", h.handleGet)
	mux.HandleFunc("PUT /api/bugs/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/bugs/{id}", h.handleDelete)
	return httpapi.CORS(httpapi.LogRequests(h.log, mux))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	status := Status(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && status != "all" && !status.Valid() {
		h.fail(w, internalerrors.BadRequest("unknown status %q", status))
		return
	}
	if status == "all" {
		status = ""
	}
	bugs, err := h.store.List(r.Context(), status)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, bugs)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	bug, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, bug)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var bug Bug
	if err := httpapi.DecodeJSON(r, &bug); err != nil {
		h.fail(w, err)
		return
	}
	created, err := h.store.Create(r.Context(), &bug)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var patch Patch
	if err := httpapi.DecodeJSON(r, &patch); err != nil {
		h.fail(w, err)
		return
	}
	updated, err := h.store.Update(r.Context(), id, &patch)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"message": "Bug deleted"})
}

// bulkRequest is the body of POST /api/bugs/bulk.
type bulkRequest struct {
	Bugs []*Bug `json:"bugs"`
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if len(req.Bugs) == 0 {
		h.fail(w, internalerrors.BadRequest("bugs must not be empty"))
		return
	}
	count, err := h.store.BulkCreate(r.Context(), req.Bugs)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Bugs created",
		"count":   count,
	})
}

// generateRequest is the optional body of POST /api/bugs/generate.
type generateRequest struct {
	Count int  `json:"count"`
	Force bool `json:"force"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.ContentLength != 0 {
		if err := httpapi.DecodeJSON(r, &req); err != nil {
			h.fail(w, err)
			return
		}
	}
	if req.Count > MaxGenerate {
		h.fail(w, internalerrors.BadRequest("count must be at most %d", MaxGenerate))
		return
	}
	count, err := Seed(r.Context(), h.store, h.gen, req.Count, req.Force)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Bugs created",
		"count":   count,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpapi.WriteError(w, h.log, classify(err))
}

// classify attaches HTTP statuses to tracker errors.
func classify(err error) error {
	var se *internalerrors.StatusError
	switch {
	case errors.As(err, &se):
		return err
	case errors.Is(err, ErrNotFound):
		return internalerrors.WithStatus(err, http.StatusNotFound, "Bug not found")
	case errors.Is(err, ErrInvalid):
		return internalerrors.WithStatus(err, http.StatusBadRequest, "%s", err.Error())
	case errors.Is(err, ErrTransition):
		return internalerrors.WithStatus(err, http.StatusConflict, "%s", err.Error())
	case errors.Is(err, ErrAlreadySeeded):
		return internalerrors.WithStatus(err, http.StatusConflict, "%s", err.Error())
	default:
		return fmt.Errorf("bug tracker: %w", err)
	}
}
