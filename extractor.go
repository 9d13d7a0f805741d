package modharvest

import (
	"fmt"
	"strings"
)

// ExtractResult holds the extracted content from an HTML page.
type ExtractResult struct {
	// Title is the page title extracted from metadata.
	Title string

	// ContentHTML is the main content as clean HTML.
	// Boilerplate (nav, footer, sidebar, ads) has been removed.
	ContentHTML string
}

// Extractor extracts main content from whole HTML pages, removing
// boilerplate. It serves as the last extraction strategy when none of the
// configured content containers yield meaningful text.
type Extractor interface {
	Extract(html string) (*ExtractResult, error)
}

// ExtractionStatus distinguishes a successful extraction from its sentinels.
type ExtractionStatus string

// Extraction statuses.
const (
	ExtractionOK        ExtractionStatus = "ok"
	ExtractionNoContent ExtractionStatus = "no_content"
	ExtractionError     ExtractionStatus = "error"
)

// Image is a media reference found in extracted content.
type Image struct {
	Src     string `json:"src"`
	Caption string `json:"caption,omitempty"`
}

// Link is a hyperlink reference found in extracted content.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// Extraction is the normalized content of a markup fragment.
type Extraction struct {
	Status   ExtractionStatus
	Strategy string
	Text     string
	Images   []Image
	Links    []Link
	Markdown string

	// Detail describes the failure when Status is ExtractionError.
	Detail string
}

// Render returns the text followed by a block of tagged media and link
// lines. Images are rendered before links. A reference without a label is
// rendered with its target alone.
func (e *Extraction) Render() string {
	var refs []string
	for _, img := range e.Images {
		refs = append(refs, reference("Image", img.Caption, img.Src))
	}
	for _, l := range e.Links {
		refs = append(refs, reference("Link", l.Text, l.Href))
	}
	if len(refs) == 0 {
		return e.Text
	}
	return e.Text + "\n\n" + strings.Join(refs, "\n")
}

func reference(tag, label, target string) string {
	if strings.TrimSpace(label) == "" {
		return fmt.Sprintf("[%s: %s]", tag, target)
	}
	return fmt.Sprintf("[%s: %s - %s]", tag, label, target)
}

// Content converts the extraction into the node content it produces.
func (e *Extraction) Content() Content {
	switch e.Status {
	case ExtractionOK:
		return TextContent(e.Render())
	case ExtractionNoContent:
		return ErrorContent(ReasonNoContent)
	default:
		return ErrorContent(ScrapeErrorReason(e.Detail))
	}
}

// Normalizer converts rendered page markup into normalized text plus media
// and link references. Implementations never return an error: failures are
// reported through the Extraction status.
type Normalizer interface {
	Normalize(html string, pageURL string) *Extraction
}
