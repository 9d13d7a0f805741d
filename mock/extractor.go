package mock

import "github.com/fwojciec/modharvest"

var _ modharvest.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of modharvest.Extractor.
type Extractor struct {
	ExtractFn func(html string) (*modharvest.ExtractResult, error)
}

func (e *Extractor) Extract(html string) (*modharvest.ExtractResult, error) {
	return e.ExtractFn(html)
}

var _ modharvest.Normalizer = (*Normalizer)(nil)

// Normalizer is a mock implementation of modharvest.Normalizer.
type Normalizer struct {
	NormalizeFn func(html string, pageURL string) *modharvest.Extraction
}

func (n *Normalizer) Normalize(html string, pageURL string) *modharvest.Extraction {
	return n.NormalizeFn(html, pageURL)
}
