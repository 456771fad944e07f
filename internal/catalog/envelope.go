package catalog

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/seoul-reads/bookfinder/internal/logger"
	"github.com/seoul-reads/bookfinder/internal/metrics"
	"github.com/seoul-reads/bookfinder/internal/models"
)

// text accepts either a JSON string or a JSON number; the catalog is not
// consistent about how it encodes ISBNs, library codes and years.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := jsoniter.ConfigFastest.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	*t = text(data)
	return nil
}

type bookDoc struct {
	BookName        string `json:"bookname"`
	Authors         string `json:"authors"`
	Publisher       string `json:"publisher"`
	PublicationYear text   `json:"publication_year"`
	ISBN13          text   `json:"isbn13"`
	ISBN            text   `json:"isbn"`
	BookImageURL    string `json:"bookImageURL"`
}

func (d bookDoc) toMetadata() models.BookMetadata {
	isbn13 := strings.TrimSpace(string(d.ISBN13))
	isbn10 := strings.TrimSpace(string(d.ISBN))
	isbn := isbn13
	if isbn == "" {
		isbn = isbn10
	}
	return models.BookMetadata{
		Title:     strings.TrimSpace(d.BookName),
		Author:    strings.TrimSpace(d.Authors),
		Publisher: strings.TrimSpace(d.Publisher),
		PubYear:   strings.TrimSpace(string(d.PublicationYear)),
		ISBN:      isbn,
		ImageURL:  d.BookImageURL,
		ISBN13:    isbn13,
		ISBN10:    isbn10,
	}
}

type searchEnvelope struct {
	Response struct {
		Error string `json:"error"`
		Docs  []struct {
			Doc bookDoc `json:"doc"`
		} `json:"docs"`
	} `json:"response"`
}

type librariesEnvelope struct {
	Response struct {
		Error string `json:"error"`
		Libs  []struct {
			Lib struct {
				LibCode text   `json:"libCode"`
				LibName string `json:"libName"`
			} `json:"lib"`
		} `json:"libs"`
	} `json:"response"`
}

type availabilityEnvelope struct {
	Response struct {
		Error  string `json:"error"`
		Result struct {
			HasBook       string `json:"hasBook"`
			LoanAvailable string `json:"loanAvailable"`
		} `json:"result"`
	} `json:"response"`
}

// decode parses a catalog payload into v. It returns false, after logging, when the
// payload is a markup error page or is not valid JSON.
func decode(ctx context.Context, endpoint string, body []byte, v any) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		logger.For(ctx).Error("Catalog returned a markup payload", "endpoint", endpoint, "body", excerpt(trimmed, 200))
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, metrics.OutcomeMarkup).Inc()
		return false
	}
	if err := jsoniter.ConfigFastest.Unmarshal(trimmed, v); err != nil {
		logger.For(ctx).Error("Failed to parse catalog response", "endpoint", endpoint, "error", err, "body", excerpt(trimmed, 200))
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, metrics.OutcomeMalformed).Inc()
		return false
	}
	return true
}

// excerpt returns at most n bytes of body without splitting a UTF-8 sequence
func excerpt(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	cut := body[:n]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "..."
}
