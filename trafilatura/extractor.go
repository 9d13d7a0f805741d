// Package trafilatura provides the primary whole-page extraction strategy,
// tried before readability when no content container qualifies.
package trafilatura

import (
	"bytes"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/modharvest"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// Ensure Extractor implements modharvest.Extractor at compile time.
var _ modharvest.Extractor = (*Extractor)(nil)

// Extractor wraps go-trafilatura to extract the main content of a page.
// Images and links are kept so the normalizer can report them.
type Extractor struct {
	pageURL       *url.URL
	minTextLength int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPageURL resolves relative references against u. Invalid or relative
// URLs are ignored.
func WithPageURL(u string) Option {
	return func(e *Extractor) {
		if parsed, err := url.Parse(u); err == nil && parsed.IsAbs() {
			e.pageURL = parsed
		}
	}
}

// WithMinTextLength rejects extractions whose text is not longer than n
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
// Returns ENOTFOUND when the extracted text is too short to count as
// content.
func (e *Extractor) Extract(rawHTML string) (*modharvest.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, modharvest.Errorf(modharvest.EINVALID, "empty HTML input")
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), trafilatura.Options{
		EnableFallback: true,
		IncludeImages:  true,
		IncludeLinks:   true,
		OriginalURL:    e.pageURL,
	})
	if err != nil {
		return nil, err
	}
	if result == nil || result.ContentNode == nil {
		return nil, modharvest.Errorf(modharvest.ENOTFOUND, "no main content")
	}

	text := strings.Join(strings.Fields(result.ContentText), " ")
	if utf8.RuneCountInString(text) <= e.minTextLength {
		return nil, modharvest.Errorf(modharvest.ENOTFOUND, "no main content")
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, result.ContentNode); err != nil {
		return nil, err
	}

	return &modharvest.ExtractResult{
		Title:       strings.TrimSpace(result.Metadata.Title),
		ContentHTML: buf.String(),
	}, nil
}
