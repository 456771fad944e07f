// Package search runs a multi-title availability search: it validates the
// request, enforces the daily quota, then resolves each title and checks which
// district libraries can lend the matching books.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seoul-reads/bookfinder/internal/logger"
	"github.com/seoul-reads/bookfinder/internal/metrics"
	"github.com/seoul-reads/bookfinder/internal/models"
)

var (
	ErrMisconfigured   = errors.New("service misconfigured: library API key is not set")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrMissingDistrict = fmt.Errorf("%w: district is required", ErrInvalidRequest)
	ErrNoTitles        = fmt.Errorf("%w: at least one title is required", ErrInvalidRequest)
	ErrTooManyTitles   = fmt.Errorf("%w: too many titles", ErrInvalidRequest)
	ErrQuotaExceeded   = errors.New("daily search limit exceeded")
)

const (
	DefaultBudget           = 9 * time.Second
	DefaultMaxTitles        = 5
	DefaultMaxBooksPerTitle = 3
)

// Resolver finds the books matching a title
type Resolver interface {
	Resolve(ctx context.Context, title string) ([]models.BookMetadata, string)
}

// CrossRef pairs a book with the loan status of the district libraries holding it
type CrossRef interface {
	Lookup(ctx context.Context, book models.BookMetadata, district string) (models.GroupedBookResult, bool)
}

// Limiter decides whether a client still has quota left today
type Limiter interface {
	Allow(ctx context.Context, clientKey string) bool
}

type Config struct {
	APIKey           string
	Budget           time.Duration
	MaxTitles        int
	MaxBooksPerTitle int
}

type Service struct {
	cfg      Config
	resolver Resolver
	crossRef CrossRef
	limiter  Limiter
	now      func() time.Time
}

// NewService wires the search pipeline. limiter may be nil to disable the quota.
func NewService(cfg Config, resolver Resolver, crossRef CrossRef, limiter Limiter) *Service {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.MaxTitles <= 0 {
		cfg.MaxTitles = DefaultMaxTitles
	}
	if cfg.MaxBooksPerTitle <= 0 {
		cfg.MaxBooksPerTitle = DefaultMaxBooksPerTitle
	}
	return &Service{
		cfg:      cfg,
		resolver: resolver,
		crossRef: crossRef,
		limiter:  limiter,
		now:      time.Now,
	}
}

// Search returns one item per title that produced at least one book, in input order.
// Only configuration, validation and quota problems are returned as errors; anything
// that goes wrong while searching just yields fewer results.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) ([]models.SearchResultItem, error) {
	start := s.now()
	log := logger.For(ctx)

	titles, err := s.validate(req)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	if s.limiter != nil && req.ClientKey != "" && !s.limiter.Allow(ctx, req.ClientKey) {
		metrics.SearchesTotal.WithLabelValues("quota_exceeded").Inc()
		return nil, ErrQuotaExceeded
	}

	log.Info("search requested",
		"client", req.ClientKey, "user_agent", req.UserAgent, "district", req.District, "titles", titles)

	results := make([]models.SearchResultItem, 0, len(titles))
	processed := 0
	for _, title := range titles {
		if elapsed := s.now().Sub(start); elapsed > s.cfg.Budget {
			log.Warn("Search budget exhausted, returning partial results",
				"elapsed", elapsed.String(), "budget", s.cfg.Budget.String(), "skipped", len(titles)-processed)
			break
		}
		if ctx.Err() != nil {
			log.Warn("Search cancelled, returning partial results", "error", ctx.Err(), "skipped", len(titles)-processed)
			break
		}

		processed++
		if item, ok := s.searchTitle(ctx, title, req.District); ok {
			results = append(results, item)
		}
	}

	metrics.SearchesTotal.WithLabelValues("ok").Inc()
	log.Info("search completed",
		"duration", s.now().Sub(start).String(), "titles_processed", processed, "items", len(results))
	return results, nil
}

func (s *Service) validate(req models.SearchRequest) ([]string, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return nil, ErrMisconfigured
	}
	if strings.TrimSpace(req.District) == "" {
		return nil, ErrMissingDistrict
	}

	titles := make([]string, 0, len(req.Titles))
	for _, t := range req.Titles {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		return nil, ErrNoTitles
	}
	if len(titles) > s.cfg.MaxTitles {
		return nil, fmt.Errorf("%w: got %d, at most %d allowed", ErrTooManyTitles, len(titles), s.cfg.MaxTitles)
	}
	return titles, nil
}

func (s *Service) searchTitle(ctx context.Context, title, district string) (item models.SearchResultItem, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.For(ctx).Error("Title search panicked", "title", title, "panic", fmt.Sprint(r))
			item, ok = models.SearchResultItem{}, false
		}
	}()

	books, _ := s.resolver.Resolve(ctx, title)
	if len(books) > s.cfg.MaxBooksPerTitle {
		books = books[:s.cfg.MaxBooksPerTitle]
	}

	grouped := make([]models.GroupedBookResult, 0, len(books))
	for _, book := range books {
		if g, found := s.lookupBook(ctx, book, district); found {
			grouped = append(grouped, g)
		}
	}
	if len(grouped) == 0 {
		return models.SearchResultItem{}, false
	}
	return models.SearchResultItem{SearchTerm: title, Books: grouped}, true
}

func (s *Service) lookupBook(ctx context.Context, book models.BookMetadata, district string) (g models.GroupedBookResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.For(ctx).Error("Book lookup panicked", "title", book.Title, "isbn", book.Identifier(), "panic", fmt.Sprint(r))
			g, ok = models.GroupedBookResult{}, false
		}
	}()
	return s.crossRef.Lookup(ctx, book, district)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrMisconfigured):
		return "misconfigured"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	default:
		return "error"
	}
}
