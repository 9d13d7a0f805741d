package goquery_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/fwojciec/modharvest"
	"github.com/fwojciec/modharvest/goquery"
	"github.com/fwojciec/modharvest/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_Normalize(t *testing.T) {
	t.Parallel()

	t.Run("joins block units with one blank line", func(t *testing.T) {
		t.Parallel()

		html := `<html><body><div class="ql-editor">
			<h2>Lesson   one</h2>
			<p>First
			   paragraph here.</p>
			<ul><li>Item A</li><li>Item B</li></ul>
		</div></body></html>`

		ext := goquery.NewNormalizer().Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "quill", ext.Strategy)
		assert.Equal(t, "Lesson one\n\nFirst paragraph here.\n\nItem A\n\nItem B", ext.Text)
		assert.NotContains(t, ext.Text, "\n\n\n")
	})

	t.Run("falls back to whole text without block units", func(t *testing.T) {
		t.Parallel()

		html := `<div class="ql-editor"><span>Plain   text</span>
			<div>without any   paragraphs</div></div>`

		ext := goquery.NewNormalizer().Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "Plain text without any paragraphs", ext.Text)
	})

	t.Run("strips scripts styles svg comments and trailing breaks", func(t *testing.T) {
		t.Parallel()

		html := `<div class="ProseMirror">
			<style>.x{color:red}</style>
			<script>alert("nope")</script>
			<!-- editor comment -->
			<p>Visible content stays.<br class="ProseMirror-trailingBreak"></p>
			<svg><text>vector label</text></svg>
		</div>`

		ext := goquery.NewNormalizer().Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "prosemirror", ext.Strategy)
		assert.Equal(t, "Visible content stays.", ext.Text)
	})

	t.Run("skips containers with short text", func(t *testing.T) {
		t.Parallel()

		html := `<div class="ql-editor"><p>Too short</p></div>
			<article><p>The article holds the real module content.</p></article>`

		ext := goquery.NewNormalizer().Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "article", ext.Strategy)
		assert.Equal(t, "The article holds the real module content.", ext.Text)
	})

	t.Run("tries later matches of the same selector", func(t *testing.T) {
		t.Parallel()

		html := `<div class="ql-editor"></div><div class="ql-editor"><p>Second editor has content.</p></div>`

		ext := goquery.NewNormalizer().Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "Second editor has content.", ext.Text)
	})

	t.Run("returns no content sentinel without containers", func(t *testing.T) {
		t.Parallel()

		ext := goquery.NewNormalizer().Normalize(`<div class="nav">Navigation only text here</div>`, "")

		assert.Equal(t, modharvest.ExtractionNoContent, ext.Status)
		assert.Empty(t, ext.Text)
	})

	t.Run("returns no content sentinel for empty input", func(t *testing.T) {
		t.Parallel()

		ext := goquery.NewNormalizer().Normalize("", "")

		assert.Equal(t, modharvest.ExtractionNoContent, ext.Status)
	})

	t.Run("does not fail on malformed markup", func(t *testing.T) {
		t.Parallel()

		html := `<div class="ql-editor"><p>Unclosed paragraph with text<div><b>bold<i>nested</b></i>`

		ext := goquery.NewNormalizer().Normalize(html, "")

		assert.NotEqual(t, modharvest.ExtractionError, ext.Status)
		assert.Contains(t, ext.Text, "Unclosed paragraph with text")
	})

	t.Run("extracts images and links", func(t *testing.T) {
		t.Parallel()

		html := `<div class="ql-editor">
			<p>See the diagram and the <a href="/docs/ref">reference page</a>.</p>
			<img src="img/diagram.png" alt="Diagram">
			<img data-src="https://cdn.example.com/lazy.png" title="Lazy">
			<img alt="no source">
			<a href="javascript:void(0)">noop</a>
			<a href="https://other.example.com/x"></a>
		</div>`

		ext := goquery.NewNormalizer().Normalize(html, "https://app.example.com/modules/a")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, []modharvest.Image{
			{Src: "https://app.example.com/modules/img/diagram.png", Caption: "Diagram"},
			{Src: "https://cdn.example.com/lazy.png", Caption: "Lazy"},
		}, ext.Images)
		assert.Equal(t, []modharvest.Link{
			{Href: "https://app.example.com/docs/ref", Text: "reference page"},
			{Href: "https://other.example.com/x", Text: ""},
		}, ext.Links)

		rendered := ext.Render()
		assert.True(t, strings.HasPrefix(rendered, "See the diagram and the reference page.\n\n"))
		assert.Contains(t, rendered, "[Image: Diagram - https://app.example.com/modules/img/diagram.png]")
		assert.Contains(t, rendered, "[Link: reference page - https://app.example.com/docs/ref]")
	})

	t.Run("uses custom strategies in order", func(t *testing.T) {
		t.Parallel()

		n := goquery.NewNormalizer(goquery.WithStrategies([]goquery.Strategy{
			{Name: "custom", Selector: "#lesson"},
		}))
		html := `<article><p>Article text is long enough.</p></article><section id="lesson"><p>Lesson body text here.</p></section>`

		ext := n.Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "custom", ext.Strategy)
		assert.Equal(t, "Lesson body text here.", ext.Text)
	})

	t.Run("uses fallback extractor when no strategy qualifies", func(t *testing.T) {
		t.Parallel()

		fallback := &mock.Extractor{
			ExtractFn: func(html string) (*modharvest.ExtractResult, error) {
				return &modharvest.ExtractResult{ContentHTML: `<div><p>Recovered by the fallback.</p></div>`}, nil
			},
		}
		n := goquery.NewNormalizer(goquery.WithFallback(fallback))

		ext := n.Normalize(`<div>nothing useful</div>`, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, goquery.FallbackStrategyName, ext.Strategy)
		assert.Equal(t, "Recovered by the fallback.", ext.Text)
	})

	t.Run("returns no content when fallback fails", func(t *testing.T) {
		t.Parallel()

		fallback := &mock.Extractor{
			ExtractFn: func(html string) (*modharvest.ExtractResult, error) {
				return nil, errors.New("unreadable")
			},
		}
		n := goquery.NewNormalizer(goquery.WithFallback(fallback))

		ext := n.Normalize(`<div>nothing useful</div>`, "")

		assert.Equal(t, modharvest.ExtractionNoContent, ext.Status)
	})

	t.Run("keeps the own text of blocks holding nested blocks", func(t *testing.T) {
		t.Parallel()

		html := `<div class="ql-editor"><ul><li>Parent item introduction<ul><li>child item one</li><li>child item two</li></ul>parent closing words</li></ul></div>`

		ext := goquery.NewNormalizer().Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "Parent item introduction\n\nchild item one\n\nchild item two\n\nparent closing words", ext.Text)
	})

	t.Run("keeps blockquote text around nested paragraphs", func(t *testing.T) {
		t.Parallel()

		html := `<article><blockquote>Quoted lead in<p>Quoted paragraph body.</p></blockquote></article>`

		ext := goquery.NewNormalizer().Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "Quoted lead in\n\nQuoted paragraph body.", ext.Text)
	})

	t.Run("keeps the own text of a block container", func(t *testing.T) {
		t.Parallel()

		n := goquery.NewNormalizer(goquery.WithStrategies([]goquery.Strategy{
			{Name: "quote", Selector: "blockquote.lesson"},
		}))
		html := `<blockquote class="lesson">Container lead text<p>Nested paragraph text.</p></blockquote>`

		ext := n.Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "Container lead text\n\nNested paragraph text.", ext.Text)
	})

	t.Run("separates words around line breaks", func(t *testing.T) {
		t.Parallel()

		html := `<div class="ql-editor"><p>First line of text<br>second line here</p></div>`

		ext := goquery.NewNormalizer().Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "First line of text second line here", ext.Text)
	})

	t.Run("separates sibling divs without block units", func(t *testing.T) {
		t.Parallel()

		html := `<main><div>Hello there world</div><div>Another block</div></main>`

		ext := goquery.NewNormalizer().Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "Hello there world Another block", ext.Text)
	})

	t.Run("keeps inline elements inside words", func(t *testing.T) {
		t.Parallel()

		html := `<div class="ql-editor"><p>Un<strong>break</strong>able <a href="/x">link text</a> stays.</p></div>`

		ext := goquery.NewNormalizer().Normalize(html, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "Unbreakable link text stays.", ext.Text)
	})

	t.Run("tries fallback extractors in order", func(t *testing.T) {
		t.Parallel()

		var calls []string
		first := &mock.Extractor{
			ExtractFn: func(html string) (*modharvest.ExtractResult, error) {
				calls = append(calls, "first")
				return nil, modharvest.Errorf(modharvest.ENOTFOUND, "no article")
			},
		}
		second := &mock.Extractor{
			ExtractFn: func(html string) (*modharvest.ExtractResult, error) {
				calls = append(calls, "second")
				return &modharvest.ExtractResult{ContentHTML: `<p>Recovered by the second fallback.</p>`}, nil
			},
		}
		n := goquery.NewNormalizer(goquery.WithFallbacks(first, second))

		ext := n.Normalize(`<div>nothing useful</div>`, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, goquery.FallbackStrategyName, ext.Strategy)
		assert.Equal(t, "Recovered by the second fallback.", ext.Text)
		assert.Equal(t, []string{"first", "second"}, calls)
	})

	t.Run("renders markdown with converter", func(t *testing.T) {
		t.Parallel()

		var converted string
		conv := &mock.Converter{
			ConvertFn: func(html string) (string, error) {
				converted = html
				return "# Title", nil
			},
		}
		n := goquery.NewNormalizer(goquery.WithConverter(conv))

		ext := n.Normalize(`<div class="ql-editor"><h1>Title</h1><p>Body paragraph text.</p><script>x()</script></div>`, "")

		require.Equal(t, modharvest.ExtractionOK, ext.Status)
		assert.Equal(t, "# Title", ext.Markdown)
		assert.NotContains(t, converted, "script")
		assert.Contains(t, converted, "ql-editor")
	})

	t.Run("reports converter panic as extraction error", func(t *testing.T) {
		t.Parallel()

		conv := &mock.Converter{
			ConvertFn: func(html string) (string, error) {
				panic("converter exploded")
			},
		}
		n := goquery.NewNormalizer(goquery.WithConverter(conv))

		ext := n.Normalize(`<div class="ql-editor"><p>Body paragraph text.</p></div>`, "")

		assert.Equal(t, modharvest.ExtractionError, ext.Status)
		assert.Equal(t, "converter exploded", ext.Detail)
	})
}
