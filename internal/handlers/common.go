package handlers

import (
	"context"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/seoul-reads/bookfinder/internal/models"
	"github.com/seoul-reads/bookfinder/internal/reference"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Searcher runs an availability search
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) ([]models.SearchResultItem, error)
}

type Handler struct {
	searcher  Searcher
	reference *reference.Data
	throttle  *throttle
}

func New(searcher Searcher, ref *reference.Data) *Handler {
	return &Handler{
		searcher:  searcher,
		reference: ref,
		throttle:  newThrottle(defaultBurstRate, defaultBurst),
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	log := slog.Default()
	if r != nil {
		log = log.With("method", r.Method, "path", r.URL.Path)
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, "status", status)
	} else {
		log.Debug(message, "status", status)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "the requested resource could not be found")
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusMethodNotAllowed, "the "+r.Method+" method is not supported for this resource")
}
