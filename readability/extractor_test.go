package readability_test

import (
	"testing"

	"github.com/fwojciec/modharvest"
	"github.com/fwojciec/modharvest/goquery"
	"github.com/fwojciec/modharvest/readability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_RejectsEmptyInput(t *testing.T) {
	t.Parallel()

	_, err := readability.NewExtractor().Extract("  ")

	require.Error(t, err)
	assert.Equal(t, modharvest.EINVALID, modharvest.ErrorCode(err))
}

func TestExtractor_ExtractsTitle(t *testing.T) {
	t.Parallel()

	html := `<!DOCTYPE html>
<html>
<head><title>Module 3</title></head>
<body><div><p>Content</p></div></body>
</html>`

	result, err := readability.NewExtractor().Extract(html)

	require.NoError(t, err)
	assert.Equal(t, "Module 3", result.Title)
}

func TestExtractor_RemovesNavigation(t *testing.T) {
	t.Parallel()

	html := `<!DOCTYPE html>
<html>
<head><title>Module</title></head>
<body>
<nav><a href="/home">Course Home Link</a><a href="/next">Next Module Link</a></nav>
<div class="lesson-body-x"><p>This lesson explains how cash flow statements reconcile operating income with changes in working capital over the period.</p>
<p>It continues with a second paragraph so that the content scoring has enough text to choose this block as the article body.</p></div>
</body>
</html>`

	result, err := readability.NewExtractor().Extract(html)

	require.NoError(t, err)
	assert.Contains(t, result.ContentHTML, "cash flow statements")
	assert.NotContains(t, result.ContentHTML, "Course Home Link")
}

func TestExtractor_AsNormalizerFallback(t *testing.T) {
	t.Parallel()

	html := `<!DOCTYPE html>
<html>
<head><title>Module</title></head>
<body>
<div class="unrecognised-wrapper"><p>This lesson explains how cash flow statements reconcile operating income with changes in working capital over the period.</p>
<p>It continues with a second paragraph so that the content scoring has enough text to choose this block as the article body.</p></div>
</body>
</html>`

	n := goquery.NewNormalizer(goquery.WithFallback(readability.NewExtractor()))
	ext := n.Normalize(html, "")

	require.Equal(t, modharvest.ExtractionOK, ext.Status)
	assert.Equal(t, goquery.FallbackStrategyName, ext.Strategy)
	assert.Contains(t, ext.Text, "cash flow statements")
}

func TestExtractor_RejectsShortArticles(t *testing.T) {
	t.Parallel()

	html := `<!DOCTYPE html>
<html>
<head><title>Module</title></head>
<body><div><p>Loading…</p></div></body>
</html>`

	_, err := readability.NewExtractor(readability.WithMinTextLength(40)).Extract(html)

	require.Error(t, err)
	assert.Equal(t, modharvest.ENOTFOUND, modharvest.ErrorCode(err))
}

func TestExtractor_ResolvesRelativeImages(t *testing.T) {
	t.Parallel()

	html := `<!DOCTYPE html>
<html>
<head><title>Module</title></head>
<body>
<div><p>This lesson explains how cash flow statements reconcile operating income with changes in working capital over the period.</p>
<img src="/img/flow.png" alt="Flow">
<p>It continues with a second paragraph so that the content scoring has enough text to choose this block as the article body.</p></div>
</body>
</html>`

	result, err := readability.NewExtractor(readability.WithPageURL("https://learn.test/modules/a")).Extract(html)

	require.NoError(t, err)
	assert.Contains(t, result.ContentHTML, "https://learn.test/img/flow.png")
}
