// Package goquery implements content normalization of rendered module pages
// using CSS selectors.
package goquery

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/modharvest"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Ensure Normalizer implements modharvest.Normalizer at compile time.
var _ modharvest.Normalizer = (*Normalizer)(nil)

// DefaultMinLength is the number of characters, after whitespace collapse,
// that a container's text must exceed to count as meaningful content.
const DefaultMinLength = 10

// FallbackStrategyName labels extractions produced by a fallback Extractor.
const FallbackStrategyName = "fallback"

const (
	// noiseSelector matches non-content and editor artifact nodes.
	noiseSelector = "script, style, svg, noscript, template, " +
		".ProseMirror-trailingBreak, .ProseMirror-separator, .ql-cursor"
)

// Strategy is a named content container selector. Strategies are tried in
// order and the first container with meaningful text wins.
type Strategy struct {
	Name     string
	Selector string
}

// DefaultStrategies returns the container selectors for common rich-text
// editors, followed by generic page landmarks.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "quill", Selector: ".ql-editor"},
		{Name: "prosemirror", Selector: ".ProseMirror"},
		{Name: "froala", Selector: ".fr-view"},
		{Name: "module", Selector: "[data-module-content], .module-content, .lesson-content"},
		{Name: "article", Selector: "article"},
		{Name: "main", Selector: "main, [role=\"main\"]"},
	}
}

// Normalizer converts rendered markup into normalized text plus image and
// link references.
type Normalizer struct {
	strategies []Strategy
	fallbacks  []modharvest.Extractor
	converter  modharvest.Converter
	minLength  int
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithStrategies replaces the container selectors.
func WithStrategies(s []Strategy) Option {
	return func(n *Normalizer) {
		n.strategies = s
	}
}

// WithFallback appends an Extractor tried on the whole page after every
// strategy failed to find meaningful content.
func WithFallback(e modharvest.Extractor) Option {
	return func(n *Normalizer) {
		n.fallbacks = append(n.fallbacks, e)
	}
}

// WithFallbacks appends Extractors tried in order on the whole page. The
// first one yielding meaningful content wins.
func WithFallbacks(es ...modharvest.Extractor) Option {
	return func(n *Normalizer) {
		n.fallbacks = append(n.fallbacks, es...)
	}
}

// WithConverter renders the winning container as Markdown as well.
func WithConverter(c modharvest.Converter) Option {
	return func(n *Normalizer) {
		n.converter = c
	}
}

// WithMinLength overrides DefaultMinLength.
func WithMinLength(l int) Option {
	return func(n *Normalizer) {
		n.minLength = l
	}
}

// NewNormalizer creates a Normalizer with DefaultStrategies.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		strategies: DefaultStrategies(),
		minLength:  DefaultMinLength,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize extracts content from html. Relative image and link references
// are resolved against pageURL when it is a valid absolute URL.
// Normalize never panics or returns an error; failures are reported as an
// ExtractionError and missing content as ExtractionNoContent.
func (n *Normalizer) Normalize(rawHTML string, pageURL string) (ext *modharvest.Extraction) {
	defer func() {
		if r := recover(); r != nil {
			ext = failed(fmt.Sprint(r))
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return failed(err.Error())
	}

	var base *url.URL
	if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
		base = u
	}

	for _, s := range n.strategies {
		var found *modharvest.Extraction
		doc.Find(s.Selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			found = n.extract(sel, s.Name, base)
			return found == nil
		})
		if found != nil {
			return found
		}
	}

	for _, fb := range n.fallbacks {
		if found := n.extractFallback(fb, rawHTML, base); found != nil {
			return found
		}
	}

	return &modharvest.Extraction{Status: modharvest.ExtractionNoContent}
}

func (n *Normalizer) extractFallback(fb modharvest.Extractor, rawHTML string, base *url.URL) *modharvest.Extraction {
	res, err := fb.Extract(rawHTML)
	if err != nil || res == nil || strings.TrimSpace(res.ContentHTML) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.ContentHTML))
	if err != nil {
		return nil
	}
	return n.extract(doc.Find("body"), FallbackStrategyName, base)
}

// extract normalizes one container. Returns nil if the container's text is
// not meaningful.
func (n *Normalizer) extract(sel *goquery.Selection, strategy string, base *url.URL) *modharvest.Extraction {
	container := sel.Clone()
	container.Find(noiseSelector).Remove()
	for _, node := range container.Nodes {
		removeComments(node)
	}

	text := blockText(container)
	if utf8.RuneCountInString(text) <= n.minLength {
		return nil
	}

	ext := &modharvest.Extraction{
		Status:   modharvest.ExtractionOK,
		Strategy: strategy,
		Text:     text,
		Images:   images(container, base),
		Links:    links(container, base),
	}

	if n.converter != nil {
		if h, err := goquery.OuterHtml(container); err == nil {
			if md, err := n.converter.Convert(h); err == nil {
				ext.Markdown = md
			}
		}
	}

	return ext
}

// blockText joins block units with a blank line. A block's own text forms
// a unit, split where nested blocks interrupt it, and every nested block
// forms its own units in document order. Without block units it falls back
// to the container's whole text.
func blockText(container *goquery.Selection) string {
	w := &unitWalker{}
	for _, node := range container.Nodes {
		if blockTags[node.DataAtom] {
			w.walk(node)
			continue
		}
		w.walkChildren(node)
	}
	if len(w.units) > 0 {
		return strings.Join(w.units, "\n\n")
	}

	var b strings.Builder
	for _, node := range container.Nodes {
		flatText(&b, node)
	}
	return collapse(b.String())
}

// blockTags are the paragraph-equivalent text units.
var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Li: true, atom.Blockquote: true, atom.Pre: true,
}

// inlineTags do not separate the words around them.
var inlineTags = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.B: true, atom.Code: true, atom.Em: true,
	atom.I: true, atom.Kbd: true, atom.Label: true, atom.Mark: true, atom.S: true,
	atom.Small: true, atom.Span: true, atom.Strong: true, atom.Sub: true,
	atom.Sup: true, atom.U: true,
}

// unitWalker collects the text of block elements as units. Text outside
// any block is ignored.
type unitWalker struct {
	units []string
	buf   strings.Builder
	depth int
}

func (w *unitWalker) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if w.depth > 0 {
			w.buf.WriteString(n.Data)
		}
		return
	case html.ElementNode:
		if blockTags[n.DataAtom] {
			w.flush()
			w.depth++
			w.walkChildren(n)
			w.flush()
			w.depth--
			return
		}
		if !inlineTags[n.DataAtom] {
			w.buf.WriteString(" ")
			w.walkChildren(n)
			w.buf.WriteString(" ")
			return
		}
	}
	w.walkChildren(n)
}

func (w *unitWalker) walkChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// flush ends the current unit. Text gathered outside any block is dropped.
func (w *unitWalker) flush() {
	if w.depth > 0 {
		if t := collapse(w.buf.String()); t != "" {
			w.units = append(w.units, t)
		}
	}
	w.buf.Reset()
}

// flatText writes the text under n, separating the content of non-inline
// elements and line breaks with spaces.
func flatText(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
		case html.ElementNode:
			sep := !inlineTags[c.DataAtom]
			if sep {
				b.WriteString(" ")
			}
			flatText(b, c)
			if sep {
				b.WriteString(" ")
			}
		default:
			flatText(b, c)
		}
	}
}

func images(container *goquery.Selection, base *url.URL) []modharvest.Image {
	var out []modharvest.Image
	container.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(s.AttrOr("data-src", ""))
		}
		if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
			return
		}
		resolved, ok := resolve(base, src)
		if !ok {
			return
		}
		caption := collapse(s.AttrOr("alt", ""))
		if caption == "" {
			caption = collapse(s.AttrOr("title", ""))
		}
		out = append(out, modharvest.Image{Src: resolved, Caption: caption})
	})
	return out
}

func links(container *goquery.Selection, base *url.URL) []modharvest.Link {
	var out []modharvest.Link
	container.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || isNonHTTPLink(href) {
			return
		}
		resolved, ok := resolve(base, href)
		if !ok {
			return
		}
		text := collapse(s.Text())
		if text == "" {
			text = collapse(s.AttrOr("title", ""))
		}
		out = append(out, modharvest.Link{Href: resolved, Text: text})
	})
	return out
}

// resolve resolves ref against base. Without a base, ref is returned as is
// provided it parses.
func resolve(base *url.URL, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base == nil {
		return u.String(), true
	}
	return base.ResolveReference(u).String(), true
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(href)
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "data:")
}

// collapse trims s and collapses inner whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

func failed(detail string) *modharvest.Extraction {
	return &modharvest.Extraction{
		Status: modharvest.ExtractionError,
		Detail: detail,
	}
}
