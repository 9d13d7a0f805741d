package slog

import (
	"log/slog"
	"time"

	"github.com/fwojciec/modharvest"
)

// Ensure LoggingNormalizer implements modharvest.Normalizer.
var _ modharvest.Normalizer = (*LoggingNormalizer)(nil)

// LoggingNormalizer wraps a Normalizer with debug logging of the strategy
// that matched.
type LoggingNormalizer struct {
	next   modharvest.Normalizer
	logger *slog.Logger
}

// NewLoggingNormalizer creates a new LoggingNormalizer.
func NewLoggingNormalizer(next modharvest.Normalizer, logger *slog.Logger) *LoggingNormalizer {
	return &LoggingNormalizer{next: next, logger: logger}
}

// Normalize delegates to the wrapped normalizer and logs the result.
func (n *LoggingNormalizer) Normalize(html string, pageURL string) *modharvest.Extraction {
	begin := time.Now()
	ext := n.next.Normalize(html, pageURL)
	attrs := []any{
		"url", pageURL,
		"status", string(ext.Status),
		"duration", time.Since(begin),
	}
	switch ext.Status {
	case modharvest.ExtractionOK:
		attrs = append(attrs,
			"strategy", ext.Strategy,
			"chars", len(ext.Text),
			"images", len(ext.Images),
			"links", len(ext.Links),
		)
	case modharvest.ExtractionError:
		attrs = append(attrs, "detail", ext.Detail)
	}
	n.logger.Debug("normalize", attrs...)
	return ext
}
