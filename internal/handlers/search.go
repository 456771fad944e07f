package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/seoul-reads/bookfinder/internal/logger"
	"github.com/seoul-reads/bookfinder/internal/models"
	"github.com/seoul-reads/bookfinder/internal/search"
)

// User-facing messages for rejected searches
const (
	msgMisconfigured = "API Key가 설정되지 않았습니다."
	msgMissingParams = "필수 파라미터가 누락되었습니다."
	msgTooManyTitles = "최대 5권까지만 검색 가능합니다."
	msgQuotaExceeded = "일일 검색 허용량을 초과했습니다."
	msgSearchFailed  = "도서관 정보를 불러오는데 실패했습니다."
)

// HandleSearch serves GET /api/search?district=CODE&queries=a,b,c
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.SearchRequest{
		District:  strings.TrimSpace(q.Get("district")),
		Titles:    splitQueries(q.Get("queries")),
		ClientKey: clientIP(r),
		UserAgent: r.UserAgent(),
	}

	results, err := h.searcher.Search(r.Context(), req)
	if err != nil {
		status, message := searchError(err)
		if status == http.StatusInternalServerError {
			logger.For(r.Context()).Error("Search failed", "error", err)
		}
		h.writeError(w, r, status, message)
		return
	}

	h.writeJSON(w, http.StatusOK, results)
}

// splitQueries splits a comma-separated title list, dropping blank entries
func splitQueries(raw string) []string {
	titles := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}
	return titles
}

func searchError(err error) (int, string) {
	switch {
	case errors.Is(err, search.ErrMisconfigured):
		return http.StatusInternalServerError, msgMisconfigured
	case errors.Is(err, search.ErrTooManyTitles):
		return http.StatusBadRequest, msgTooManyTitles
	case errors.Is(err, search.ErrInvalidRequest):
		return http.StatusBadRequest, msgMissingParams
	case errors.Is(err, search.ErrQuotaExceeded):
		return http.StatusTooManyRequests, msgQuotaExceeded
	default:
		return http.StatusInternalServerError, msgSearchFailed
	}
}
