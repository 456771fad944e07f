// Package availability checks which libraries in a district hold a book and
// whether a copy can be borrowed at each of them right now.
package availability

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/seoul-reads/bookfinder/internal/logger"
	"github.com/seoul-reads/bookfinder/internal/models"
)

// DefaultMaxLibraries bounds the availability fan-out per book
const DefaultMaxLibraries = 5

// Holdings is the part of the catalog client the cross-referencer needs
type Holdings interface {
	LibrariesOwning(ctx context.Context, isbn, district string, limit int) ([]models.Library, error)
	CheckAvailability(ctx context.Context, libCode, isbn string) (bool, error)
}

// CrossReferencer pairs resolved books with per-library loan status
type CrossReferencer struct {
	holdings     Holdings
	maxLibraries int
}

func New(holdings Holdings, maxLibraries int) *CrossReferencer {
	if maxLibraries <= 0 {
		maxLibraries = DefaultMaxLibraries
	}
	return &CrossReferencer{holdings: holdings, maxLibraries: maxLibraries}
}

// Lookup returns the libraries in district holding book with their loan status.
// It reports false when the book has no identifier or no library owns it.
func (x *CrossReferencer) Lookup(ctx context.Context, book models.BookMetadata, district string) (models.GroupedBookResult, bool) {
	log := logger.For(ctx)

	isbn := book.Identifier()
	if isbn == "" {
		log.Debug("Skipping book without identifier", "title", book.Title)
		return models.GroupedBookResult{}, false
	}

	libs, err := x.holdings.LibrariesOwning(ctx, isbn, district, x.maxLibraries)
	if err != nil {
		log.Warn("Library lookup failed", "isbn", isbn, "district", district, "error", err)
		return models.GroupedBookResult{}, false
	}
	if len(libs) > x.maxLibraries {
		libs = libs[:x.maxLibraries]
	}
	if len(libs) == 0 {
		log.Debug("No owning libraries", "isbn", isbn, "district", district)
		return models.GroupedBookResult{}, false
	}

	return models.GroupedBookResult{
		Metadata:  book,
		Libraries: x.checkAll(ctx, libs, isbn),
	}, true
}

// checkAll probes every library concurrently and waits for all of them. Each result
// lands in its library's slot so the output keeps the lookup order.
func (x *CrossReferencer) checkAll(ctx context.Context, libs []models.Library, isbn string) []models.LibraryAvailability {
	defer logger.Track(ctx, "Availability checks", "isbn", isbn, "libraries", len(libs))()

	results := make([]models.LibraryAvailability, len(libs))

	var g errgroup.Group
	for i, lib := range libs {
		results[i] = models.LibraryAvailability{LibraryName: lib.Name}
		g.Go(func() error {
			results[i].IsAvailable = x.check(ctx, lib, isbn)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// check never fails: errors and panics both read as unavailable
func (x *CrossReferencer) check(ctx context.Context, lib models.Library, isbn string) (available bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.For(ctx).Error("Availability check panicked", "library", lib.Name, "isbn", isbn, "panic", fmt.Sprint(r))
			available = false
		}
	}()

	ok, err := x.holdings.CheckAvailability(ctx, lib.Code, isbn)
	if err != nil {
		logger.For(ctx).Warn("Availability check failed", "library", lib.Name, "lib_code", lib.Code, "isbn", isbn, "error", err)
		return false
	}
	return ok
}
