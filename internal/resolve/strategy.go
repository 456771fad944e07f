// Package resolve turns a title typed by a person into catalog records by
// walking an ordered list of search strategies until one of them matches.
package resolve

import (
	"context"
	"strings"

	"github.com/seoul-reads/bookfinder/internal/logger"
	"github.com/seoul-reads/bookfinder/internal/metrics"
	"github.com/seoul-reads/bookfinder/internal/models"
)

// MaxCandidates is the most books a single title resolves to
const MaxCandidates = 3

// Searcher is the part of the catalog client the resolver needs
type Searcher interface {
	SearchBooks(ctx context.Context, query string, field models.MatchField, byPopularity bool) ([]models.BookMetadata, error)
}

// Strategy is one combination of query form, match field and sort mode
type Strategy struct {
	Name         string
	Field        models.MatchField
	Compact      bool // query with every whitespace character removed
	ByPopularity bool
}

// DefaultStrategies runs from highest precision to highest recall; the
// unsorted pass comes last because popularity ranking is the better relevance signal.
var DefaultStrategies = []Strategy{
	{Name: "exact_popular", Field: models.MatchTitle, ByPopularity: true},
	{Name: "compact_popular", Field: models.MatchTitle, Compact: true, ByPopularity: true},
	{Name: "keyword_popular", Field: models.MatchKeyword, ByPopularity: true},
	{Name: "exact", Field: models.MatchTitle},
	{Name: "compact", Field: models.MatchTitle, Compact: true},
	{Name: "keyword", Field: models.MatchKeyword},
}

// Resolver resolves titles against a Searcher
type Resolver struct {
	searcher   Searcher
	strategies []Strategy
}

// New returns a resolver using DefaultStrategies
func New(searcher Searcher) *Resolver {
	return NewWithStrategies(searcher, DefaultStrategies)
}

func NewWithStrategies(searcher Searcher, strategies []Strategy) *Resolver {
	return &Resolver{searcher: searcher, strategies: strategies}
}

// Resolve returns up to MaxCandidates books for title and the name of the strategy that
// found them. A title nothing matches returns nil and an empty name; that is not an error.
func (r *Resolver) Resolve(ctx context.Context, title string) ([]models.BookMetadata, string) {
	log := logger.For(ctx)
	clean := strings.TrimSpace(title)
	if clean == "" {
		return nil, ""
	}
	compact := Compact(clean)

	for _, s := range r.strategies {
		if ctx.Err() != nil {
			log.Warn("Title resolution interrupted", "title", clean, "error", ctx.Err())
			break
		}

		query := clean
		if s.Compact {
			if compact == clean {
				continue
			}
			query = compact
		}

		books, err := r.searcher.SearchBooks(ctx, query, s.Field, s.ByPopularity)
		if err != nil {
			log.Warn("Search strategy failed", "strategy", s.Name, "title", clean, "error", err)
			continue
		}
		if len(books) == 0 {
			log.Debug("Search strategy found nothing", "strategy", s.Name, "title", clean)
			continue
		}

		if len(books) > MaxCandidates {
			books = books[:MaxCandidates]
		}
		metrics.TitlesResolvedTotal.WithLabelValues(s.Name).Inc()
		log.Info("Title resolved", "strategy", s.Name, "title", clean, "books", len(books))
		return books, s.Name
	}

	metrics.TitlesResolvedTotal.WithLabelValues("miss").Inc()
	log.Info("No results for title", "title", clean)
	return nil, ""
}

// Compact removes every whitespace character from s
func Compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
