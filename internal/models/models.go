package models

// MatchField selects which catalog field a search query is matched against
type MatchField string

const (
	MatchTitle   MatchField = "title"
	MatchKeyword MatchField = "keyword"
)

// SearchRequest is one availability lookup: a district and up to five titles
type SearchRequest struct {
	District  string
	Titles    []string
	ClientKey string // client IP used for quota accounting, empty disables it
	UserAgent string
}

// BookMetadata represents a catalog record resolved from a title
type BookMetadata struct {
	Title     string `json:"title" yaml:"title"`
	Author    string `json:"author" yaml:"author"`
	Publisher string `json:"publisher" yaml:"publisher"`
	PubYear   string `json:"pubYear" yaml:"pubYear"`
	ISBN      string `json:"isbn" yaml:"isbn"`
	ImageURL  string `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`

	// raw identifiers as the catalog returned them
	ISBN13 string `json:"-" yaml:"-"`
	ISBN10 string `json:"-" yaml:"-"`
}

// Identifier returns the ISBN used for holdings lookups, preferring the 13-digit form
func (b BookMetadata) Identifier() string {
	if b.ISBN13 != "" {
		return b.ISBN13
	}
	if b.ISBN10 != "" {
		return b.ISBN10
	}
	return b.ISBN
}

// Library is a library reported as owning a copy of a book
type Library struct {
	Code string `json:"libCode" yaml:"code"`
	Name string `json:"libName" yaml:"name"`
}

// LibraryAvailability is a point-in-time loan status for one library
type LibraryAvailability struct {
	LibraryName string `json:"libraryName" yaml:"libraryName"`
	IsAvailable bool   `json:"isAvailable" yaml:"isAvailable"`
}

// GroupedBookResult pairs a resolved book with the libraries holding it
type GroupedBookResult struct {
	Metadata  BookMetadata          `json:"metadata" yaml:"metadata"`
	Libraries []LibraryAvailability `json:"libraries" yaml:"libraries"`
}

// SearchResultItem holds the books found for one requested title
type SearchResultItem struct {
	SearchTerm string              `json:"searchTerm" yaml:"searchTerm"`
	Books      []GroupedBookResult `json:"books" yaml:"books"`
}
