// Package htmltomarkdown renders normalized content containers as Markdown.
package htmltomarkdown

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/fwojciec/modharvest"
)

// Ensure Converter implements modharvest.Converter at compile time.
var _ modharvest.Converter = (*Converter)(nil)

// blankRuns matches the gaps left by empty editor paragraphs.
var blankRuns = regexp.MustCompile(`\n{3,}`)

// Converter renders editor containers as Markdown. Relative links and
// images resolve against the configured domain.
type Converter struct {
	conv   *converter.Converter
	domain string
	tables bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithDomain resolves relative link and image references against domain.
func WithDomain(domain string) Option {
	return func(c *Converter) {
		c.domain = domain
	}
}

// WithTables toggles GitHub-style table output. Defaults to true.
func WithTables(enabled bool) Option {
	return func(c *Converter) {
		c.tables = enabled
	}
}

// NewConverter creates a Converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{tables: true}
	for _, opt := range opts {
		opt(c)
	}

	plugins := []converter.Plugin{
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	}
	if c.tables {
		plugins = append(plugins, table.NewTablePlugin())
	}
	c.conv = converter.NewConverter(converter.WithPlugins(plugins...))
	return c
}

// Convert transforms an HTML fragment into Markdown.
func (c *Converter) Convert(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", modharvest.Errorf(modharvest.EINVALID, "empty HTML input")
	}

	var md string
	var err error
	if c.domain != "" {
		md, err = c.conv.ConvertString(html, converter.WithDomain(c.domain))
	} else {
		md, err = c.conv.ConvertString(html)
	}
	if err != nil {
		return "", err
	}

	md = blankRuns.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md), nil
}
