package handlers

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// HandleDistricts lists the Seoul districts a search can target
func (h *Handler) HandleDistricts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.reference.Districts)
}

// HandleLibraries lists the library directory, optionally filtered by ?district= code or name
func (h *Handler) HandleLibraries(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.reference.LibrariesIn(r.URL.Query().Get("district")))
}

// HandleCollections lists curated collections, optionally filtered by ?brand=
func (h *Handler) HandleCollections(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.reference.CollectionsFor(r.URL.Query().Get("brand")))
}

// HandleCollection returns one curated collection by id
func (h *Handler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	collection, ok := h.reference.Collection(id)
	if !ok {
		h.notFound(w, r)
		return
	}
	h.writeJSON(w, http.StatusOK, collection)
}

// HandleBrands lists the collection brands, 전체 first
func (h *Handler) HandleBrands(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.reference.Brands)
}

func (h *Handler) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

// isAPIPath reports whether path belongs to the JSON API
func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}
