package modharvest

import (
	"net/url"
	"strings"
	"time"
)

// ContentKind distinguishes the states of a node's content slot.
type ContentKind string

// Content kinds.
const (
	ContentUnset ContentKind = ""
	ContentText  ContentKind = "text"
	ContentError ContentKind = "error"
)

// Reasons recorded as error content.
const (
	ReasonNoLocator    = "no locator"
	ReasonNoContent    = "no content found"
	ReasonPageTimeout  = "no content found - page timeout"
	reasonScrapePrefix = "error scraping content: "
)

// ScrapeErrorReason formats the reason recorded for a generic per-node failure.
func ScrapeErrorReason(detail string) string {
	return reasonScrapePrefix + detail
}

// Content is the write-once-per-attempt content slot of a node.
type Content struct {
	Kind   ContentKind `json:"kind,omitempty"`
	Text   string      `json:"text,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// TextContent returns extracted text content.
func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// ErrorContent returns content recording a per-node failure.
func ErrorContent(reason string) Content {
	return Content{Kind: ContentError, Reason: reason}
}

// IsSet reports whether the content has been written.
func (c Content) IsSet() bool {
	return c.Kind != ContentUnset
}

// String returns the text for text content and the reason for error
// content, which is what output consumers see in place of content.
func (c Content) String() string {
	switch c.Kind {
	case ContentText:
		return c.Text
	case ContentError:
		return c.Reason
	default:
		return ""
	}
}

// Node is a harvestable module in the flattened tree.
type Node struct {
	Position        int       `json:"position"`
	ID              string    `json:"id,omitempty"`
	ParentSectionID string    `json:"parentSectionId"`
	SectionTitle    string    `json:"sectionTitle"`
	Title           string    `json:"title"`
	VideoLink       string    `json:"videoLink,omitempty"`
	Content         Content   `json:"content"`
	Markdown        string    `json:"markdown,omitempty"`
	ScrapedAt       time.Time `json:"scrapedAt,omitzero"`
}

// SetContent overwrites the node's content for the current attempt.
func (n *Node) SetContent(c Content, at time.Time) {
	n.Content = c
	n.ScrapedAt = at
	if c.Kind != ContentText {
		n.Markdown = ""
	}
}

// Locate builds the navigation target for a node from a base address.
// A "{id}" placeholder in base is replaced with the escaped node ID;
// otherwise the ID is appended as a path segment. Returns false when the
// node has no ID or base is missing or unparseable.
func Locate(base string, n *Node) (string, bool) {
	if n == nil || n.ID == "" || strings.TrimSpace(base) == "" {
		return "", false
	}

	if strings.Contains(base, "{id}") {
		loc := strings.ReplaceAll(base, "{id}", url.PathEscape(n.ID))
		if _, err := url.ParseRequestURI(loc); err != nil {
			return "", false
		}
		return loc, true
	}

	u, err := url.ParseRequestURI(base)
	if err != nil || u.Host == "" {
		return "", false
	}
	return u.JoinPath(n.ID).String(), true
}
