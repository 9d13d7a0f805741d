// Package readability provides the whole-page extraction strategy used when
// no known content container yields meaningful text.
package readability

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/modharvest"
	"github.com/go-shiori/go-readability"
)

// Ensure Extractor implements modharvest.Extractor at compile time.
var _ modharvest.Extractor = (*Extractor)(nil)

// Extractor wraps go-readability to extract the main content of a page.
type Extractor struct {
	pageURL       *url.URL
	minTextLength int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPageURL resolves relative references in the article against u.
// Invalid or relative URLs are ignored.
func WithPageURL(u string) Option {
	return func(e *Extractor) {
		if parsed, err := url.Parse(u); err == nil && parsed.IsAbs() {
			e.pageURL = parsed
		}
	}
}

// WithMinTextLength rejects articles whose text is not longer than n
// characters.
func WithMinTextLength(n int) Option {
	return func(e *Extractor) {
		e.minTextLength = n
	}
}

// NewExtractor creates a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract processes a rendered page and returns its main content.
// Returns ENOTFOUND when the article text is too short to count as
// content.
func (e *Extractor) Extract(rawHTML string) (*modharvest.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, modharvest.Errorf(modharvest.EINVALID, "empty HTML input")
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), e.pageURL)
	if err != nil {
		return nil, err
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if utf8.RuneCountInString(text) <= e.minTextLength {
		return nil, modharvest.Errorf(modharvest.ENOTFOUND, "no readable article")
	}

	return &modharvest.ExtractResult{
		Title:       strings.TrimSpace(article.Title),
		ContentHTML: article.Content,
	}, nil
}
