package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes registers every endpoint and wraps the router in middleware:
//
//	recoverPanic → cors → logRequests → rateLimit → router
func (h *Handler) Routes() http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(h.notFound)
	router.MethodNotAllowed = http.HandlerFunc(h.methodNotAllowed)

	router.HandlerFunc(http.MethodGet, "/api/search", h.HandleSearch)
	router.HandlerFunc(http.MethodGet, "/api/districts", h.HandleDistricts)
	router.HandlerFunc(http.MethodGet, "/api/libraries", h.HandleLibraries)
	router.HandlerFunc(http.MethodGet, "/api/collections", h.HandleCollections)
	router.HandlerFunc(http.MethodGet, "/api/collections/:id", h.HandleCollection)
	router.HandlerFunc(http.MethodGet, "/api/brands", h.HandleBrands)
	router.HandlerFunc(http.MethodGet, "/healthcheck", h.HandleHealthcheck)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return h.recoverPanic(h.cors(h.logRequests(h.rateLimit(router))))
}
