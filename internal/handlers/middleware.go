package handlers

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/seoul-reads/bookfinder/internal/logger"
	"github.com/seoul-reads/bookfinder/internal/metrics"
)

const (
	defaultBurstRate = rate.Limit(2)
	defaultBurst     = 4
	idleClientTTL    = 3 * time.Minute

	requestIDHeader = "X-Request-ID"
)

// recoverPanic turns a panicking handler into a 500 JSON response
func (h *Handler) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				logger.For(r.Context()).Error("Handler panicked", "path", r.URL.Path, "panic", fmt.Sprint(err))
				h.writeError(w, r, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// cors lets the browser front end call the API from another origin
func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAPIPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Vary", "Origin")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// logRequests tags the request with an id, logs it and records HTTP metrics
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logger.ContextWithID(r.Context(), id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		dur := time.Since(start)
		route := routeLabel(r.URL.Path)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(dur.Seconds())

		if r.URL.Path == "/healthcheck" || r.URL.Path == "/metrics" {
			return
		}
		logger.For(ctx).Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"client", clientIP(r),
			"duration", dur.String(),
		)
	})
}

var knownRoutes = map[string]bool{
	"/api/search":      true,
	"/api/districts":   true,
	"/api/libraries":   true,
	"/api/collections": true,
	"/api/brands":      true,
	"/healthcheck":     true,
	"/metrics":         true,
}

// routeLabel keeps metric cardinality bounded
func routeLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	if id, ok := strings.CutPrefix(path, "/api/collections/"); ok && id != "" && !strings.Contains(id, "/") {
		return "/api/collections/:id"
	}
	return "other"
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// throttle holds one token bucket per client IP. Idle clients are evicted on
// access once a minute.
type throttle struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newThrottle(limit rate.Limit, burst int) *throttle {
	return &throttle{
		clients: make(map[string]*client),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

func (t *throttle) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) > time.Minute {
		for k, c := range t.clients {
			if now.Sub(c.lastSeen) > idleClientTTL {
				delete(t.clients, k)
			}
		}
		t.lastSweep = now
	}

	c, found := t.clients[ip]
	if !found {
		c = &client{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (t *throttle) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// rateLimit rejects bursts from a single client with 429
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAPIPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !h.throttle.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			h.writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the first X-Forwarded-For entry, else the RemoteAddr host, else "unknown"
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
