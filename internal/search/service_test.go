package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoul-reads/bookfinder/internal/availability"
	"github.com/seoul-reads/bookfinder/internal/models"
	"github.com/seoul-reads/bookfinder/internal/ratelimit"
	"github.com/seoul-reads/bookfinder/internal/resolve"
	"github.com/seoul-reads/bookfinder/internal/storage"
)

// stubCatalog answers every catalog call from fixed tables and counts them
type stubCatalog struct {
	mu        sync.Mutex
	books     map[string][]models.BookMetadata // by query, any strategy
	libraries map[string][]models.Library      // by isbn
	available map[string]bool                  // by library code

	searches      int
	libraryCalls  int
	checks        int
	searchQueries []string
}

func (s *stubCatalog) SearchBooks(_ context.Context, query string, _ models.MatchField, _ bool) ([]models.BookMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++
	s.searchQueries = append(s.searchQueries, query)
	return s.books[query], nil
}

func (s *stubCatalog) LibrariesOwning(_ context.Context, isbn, _ string, _ int) ([]models.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.libraryCalls++
	return s.libraries[isbn], nil
}

func (s *stubCatalog) CheckAvailability(_ context.Context, libCode, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks++
	return s.available[libCode], nil
}

func (s *stubCatalog) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches + s.libraryCalls + s.checks
}

func isbnBook(title, isbn string) models.BookMetadata {
	return models.BookMetadata{Title: title, ISBN: isbn, ISBN13: isbn}
}

func newCatalog() *stubCatalog {
	return &stubCatalog{
		books: map[string][]models.BookMetadata{
			"소년이 온다": {
				isbnBook("소년이 온다", "9788936434120"),
				isbnBook("소년이 온다 (큰글자도서)", "9788936480073"),
			},
			"채식주의자": {isbnBook("채식주의자", "9788936433598")},
		},
		libraries: map[string][]models.Library{
			"9788936434120": {{Code: "111003", Name: "마포중앙도서관"}, {Code: "111005", Name: "서강도서관"}},
			"9788936480073": {{Code: "111003", Name: "마포중앙도서관"}},
			"9788936433598": {{Code: "111005", Name: "서강도서관"}},
		},
		available: map[string]bool{"111003": true},
	}
}

func newTestService(catalog *stubCatalog, limiter Limiter) *Service {
	return NewService(
		Config{APIKey: "test-key"},
		resolve.New(catalog),
		availability.New(catalog, 5),
		limiter,
	)
}

func terms(items []models.SearchResultItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.SearchTerm)
	}
	return out
}

func TestSearchSingleTitle(t *testing.T) {
	catalog := newCatalog()
	svc := newTestService(catalog, nil)

	got, err := svc.Search(context.Background(), models.SearchRequest{District: "11140", Titles: []string{"소년이 온다"}})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "소년이 온다", got[0].SearchTerm)
	require.Len(t, got[0].Books, 2)
	assert.Equal(t, "9788936434120", got[0].Books[0].Metadata.ISBN)
	assert.Equal(t, []models.LibraryAvailability{
		{LibraryName: "마포중앙도서관", IsAvailable: true},
		{LibraryName: "서강도서관", IsAvailable: false},
	}, got[0].Books[0].Libraries)
	// the first strategy matched so no fallback ran
	assert.Equal(t, 1, catalog.searches)
}

func TestSearchOmitsUnmatchedTitles(t *testing.T) {
	tests := []struct {
		name   string
		titles []string
		want   []string
	}{
		{"only title unmatched", []string{"없는책"}, []string{}},
		{"middle title unmatched", []string{"채식주의자", "없는책", "소년이 온다"}, []string{"채식주의자", "소년이 온다"}},
		{"input order kept", []string{"소년이 온다", "채식주의자"}, []string{"소년이 온다", "채식주의자"}},
		{"titles trimmed, blanks dropped", []string{"  채식주의자 ", "", "   "}, []string{"채식주의자"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newCatalog(), nil)
			got, err := svc.Search(context.Background(), models.SearchRequest{District: "11140", Titles: tt.titles})
			require.NoError(t, err)
			assert.Equal(t, tt.want, terms(got))
		})
	}
}

func TestSearchUnmatchedTitleRunsEveryStrategy(t *testing.T) {
	catalog := newCatalog()
	svc := newTestService(catalog, nil)

	got, err := svc.Search(context.Background(), models.SearchRequest{District: "11140", Titles: []string{"아무도 모르는 책"}})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 6, catalog.searches)
	assert.Equal(t, 0, catalog.libraryCalls)
}

func TestSearchIsRepeatable(t *testing.T) {
	svc := newTestService(newCatalog(), nil)
	req := models.SearchRequest{District: "11140", Titles: []string{"소년이 온다", "없는책", "채식주의자"}}

	first, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSearchRejectsBeforeUpstream(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		req     models.SearchRequest
		wantErr error
	}{
		{
			name:    "missing api key",
			apiKey:  "  ",
			req:     models.SearchRequest{District: "11140", Titles: []string{"소년이 온다"}},
			wantErr: ErrMisconfigured,
		},
		{
			name:    "missing district",
			apiKey:  "k",
			req:     models.SearchRequest{Titles: []string{"소년이 온다"}},
			wantErr: ErrMissingDistrict,
		},
		{
			name:    "no titles",
			apiKey:  "k",
			req:     models.SearchRequest{District: "11140", Titles: []string{" ", ""}},
			wantErr: ErrNoTitles,
		},
		{
			name:    "six titles",
			apiKey:  "k",
			req:     models.SearchRequest{District: "11140", Titles: []string{"a", "b", "c", "d", "e", "f"}},
			wantErr: ErrTooManyTitles,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newCatalog()
			svc := NewService(Config{APIKey: tt.apiKey}, resolve.New(catalog), availability.New(catalog, 5), nil)

			got, err := svc.Search(context.Background(), tt.req)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
			assert.Equal(t, 0, catalog.calls())
		})
	}
}

func TestSearchValidationErrorsAreInvalidRequests(t *testing.T) {
	for _, err := range []error{ErrMissingDistrict, ErrNoTitles, ErrTooManyTitles} {
		assert.ErrorIs(t, err, ErrInvalidRequest)
	}
	assert.NotErrorIs(t, ErrMisconfigured, ErrInvalidRequest)
	assert.NotErrorIs(t, ErrQuotaExceeded, ErrInvalidRequest)
}

func TestSearchFiveTitlesAllowed(t *testing.T) {
	svc := newTestService(newCatalog(), nil)
	_, err := svc.Search(context.Background(), models.SearchRequest{
		District: "11140",
		Titles:   []string{"a", "b", "c", "d", "e"},
	})
	assert.NoError(t, err)
}

func TestSearchQuotaExceeded(t *testing.T) {
	catalog := newCatalog()
	svc := newTestService(catalog, ratelimit.NewGuard(storage.NewMemoryStore(), 50))
	req := models.SearchRequest{District: "11140", Titles: []string{"소년이 온다"}, ClientKey: "1.2.3.4"}

	for i := 0; i < 50; i++ {
		_, err := svc.Search(context.Background(), req)
		require.NoError(t, err)
	}
	before := catalog.calls()

	got, err := svc.Search(context.Background(), req)

	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Nil(t, got)
	assert.Equal(t, before, catalog.calls())
}

type countingLimiter struct{ calls int }

func (c *countingLimiter) Allow(context.Context, string) bool {
	c.calls++
	return false
}

func TestSearchQuotaCheckedAfterValidation(t *testing.T) {
	limiter := &countingLimiter{}
	svc := newTestService(newCatalog(), limiter)

	_, err := svc.Search(context.Background(), models.SearchRequest{ClientKey: "1.2.3.4", Titles: []string{"x"}})
	assert.ErrorIs(t, err, ErrMissingDistrict)
	assert.Equal(t, 0, limiter.calls)

	// no client key means no quota
	_, err = svc.Search(context.Background(), models.SearchRequest{District: "11140", Titles: []string{"x"}})
	assert.NoError(t, err)
	assert.Equal(t, 0, limiter.calls)
}

// clockResolver advances a fake clock on every resolve
type clockResolver struct {
	now      time.Time
	step     time.Duration
	resolved []string
}

func (c *clockResolver) Resolve(_ context.Context, title string) ([]models.BookMetadata, string) {
	c.resolved = append(c.resolved, title)
	c.now = c.now.Add(c.step)
	return []models.BookMetadata{isbnBook(title, "97800000000"+title)}, "exact_popular"
}

type fixedCrossRef struct{}

func (fixedCrossRef) Lookup(_ context.Context, book models.BookMetadata, _ string) (models.GroupedBookResult, bool) {
	return models.GroupedBookResult{
		Metadata:  book,
		Libraries: []models.LibraryAvailability{{LibraryName: "종로도서관", IsAvailable: true}},
	}, true
}

func TestSearchStopsWhenBudgetExhausted(t *testing.T) {
	tests := []struct {
		name string
		step time.Duration
		want []string
	}{
		{"well within budget", time.Second, []string{"1", "2", "3", "4", "5"}},
		{"exceeded after two titles", 5 * time.Second, []string{"1", "2"}},
		// elapsed equal to the budget still starts the title
		{"exactly at budget", 4500 * time.Millisecond, []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &clockResolver{now: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC), step: tt.step}
			svc := NewService(Config{APIKey: "k", Budget: 9 * time.Second}, r, fixedCrossRef{}, nil)
			svc.now = func() time.Time { return r.now }

			got, err := svc.Search(context.Background(), models.SearchRequest{
				District: "11110",
				Titles:   []string{"1", "2", "3", "4", "5"},
			})

			require.NoError(t, err)
			assert.Equal(t, tt.want, terms(got))
			assert.Equal(t, tt.want, r.resolved)
		})
	}
}

func TestSearchStopsWhenContextDone(t *testing.T) {
	catalog := newCatalog()
	svc := newTestService(catalog, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := svc.Search(ctx, models.SearchRequest{District: "11140", Titles: []string{"소년이 온다"}})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, catalog.calls())
}

type panickyResolver struct{ inner Resolver }

func (p panickyResolver) Resolve(ctx context.Context, title string) ([]models.BookMetadata, string) {
	if strings.HasPrefix(title, "boom") {
		panic("resolver exploded")
	}
	return p.inner.Resolve(ctx, title)
}

type panickyCrossRef struct{ inner CrossRef }

func (p panickyCrossRef) Lookup(ctx context.Context, book models.BookMetadata, district string) (models.GroupedBookResult, bool) {
	if book.ISBN13 == "9788936480073" {
		panic(errors.New("cross reference exploded"))
	}
	return p.inner.Lookup(ctx, book, district)
}

func TestSearchIsolatesPanics(t *testing.T) {
	catalog := newCatalog()
	svc := NewService(
		Config{APIKey: "k"},
		panickyResolver{inner: resolve.New(catalog)},
		panickyCrossRef{inner: availability.New(catalog, 5)},
		nil,
	)

	got, err := svc.Search(context.Background(), models.SearchRequest{
		District: "11140",
		Titles:   []string{"boom", "소년이 온다", "채식주의자"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"소년이 온다", "채식주의자"}, terms(got))
	// the panicking book is dropped and its sibling survives
	require.Len(t, got[0].Books, 1)
	assert.Equal(t, "9788936434120", got[0].Books[0].Metadata.ISBN13)
}

func TestSearchCapsBooksPerTitle(t *testing.T) {
	catalog := newCatalog()
	many := make([]models.BookMetadata, 0, 5)
	for _, isbn := range []string{"1", "2", "3", "4", "5"} {
		many = append(many, isbnBook("데미안", isbn))
		catalog.libraries[isbn] = []models.Library{{Code: "111003", Name: "마포중앙도서관"}}
	}
	catalog.books["데미안"] = many
	svc := newTestService(catalog, nil)

	got, err := svc.Search(context.Background(), models.SearchRequest{District: "11140", Titles: []string{"데미안"}})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Books, 3)
}

func TestSearchDropsTitleWhoseBooksHaveNoLibraries(t *testing.T) {
	catalog := newCatalog()
	catalog.books["희귀본"] = []models.BookMetadata{isbnBook("희귀본", "9790000000001")}
	svc := newTestService(catalog, nil)

	got, err := svc.Search(context.Background(), models.SearchRequest{District: "11140", Titles: []string{"희귀본"}})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, catalog.libraryCalls)
}
