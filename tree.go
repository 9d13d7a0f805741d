package modharvest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Section is a non-leaf node of the content tree. It carries a title and
// an ordered list of modules but no content of its own.
type Section struct {
	ID      string    `json:"id,omitempty"`
	Title   string    `json:"title"`
	Modules []*Module `json:"modules"`
}

// Module is a leaf of the content tree as supplied by tree discovery.
// ID is empty when the source reported no identifier.
type Module struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	VideoLink string `json:"videoLink,omitempty"`
}

// Flatten returns the fixed harvest order: sections in order, then modules
// in order within each section. The returned nodes start with unset content.
func Flatten(sections []*Section) []*Node {
	var nodes []*Node
	for si, s := range sections {
		if s == nil {
			continue
		}
		sectionID := s.ID
		if sectionID == "" {
			sectionID = strconv.Itoa(si)
		}
		for _, m := range s.Modules {
			if m == nil {
				continue
			}
			nodes = append(nodes, &Node{
				Position:        len(nodes),
				ID:              m.ID,
				ParentSectionID: sectionID,
				SectionTitle:    s.Title,
				Title:           m.Title,
				VideoLink:       m.VideoLink,
			})
		}
	}
	return nodes
}

// CountModules returns the total number of modules across sections.
func CountModules(sections []*Section) int {
	var n int
	for _, s := range sections {
		if s != nil {
			n += len(s.Modules)
		}
	}
	return n
}

// DecodeTree decodes the embedded tree payload. The path is a dotted key
// path to the tree inside the payload (empty means the payload root). The
// target may be an array of sections or an object with a "sections" array.
// Returns ENOTFOUND if the payload yields no sections.
func DecodeTree(data []byte, path string) ([]*Section, error) {
	var root any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, Errorf(EINVALID, "invalid tree payload: %v", err)
	}

	target := root
	if path != "" {
		for _, key := range strings.Split(path, ".") {
			obj, ok := target.(map[string]any)
			if !ok {
				return nil, Errorf(ENOTFOUND, "tree path %q not found at %q", path, key)
			}
			target, ok = obj[key]
			if !ok {
				return nil, Errorf(ENOTFOUND, "tree path %q not found at %q", path, key)
			}
		}
	}

	if obj, ok := target.(map[string]any); ok {
		target = obj["sections"]
	}
	items, ok := target.([]any)
	if !ok || len(items) == 0 {
		return nil, Errorf(ENOTFOUND, "no sections in tree payload")
	}

	sections := make([]*Section, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		s := &Section{
			ID:    scalarString(obj["id"]),
			Title: scalarString(obj["title"]),
		}
		mods, _ := obj["modules"].([]any)
		for _, mi := range mods {
			mobj, ok := mi.(map[string]any)
			if !ok {
				continue
			}
			s.Modules = append(s.Modules, &Module{
				ID:        scalarString(mobj["id"]),
				Title:     scalarString(mobj["title"]),
				VideoLink: scalarString(mobj["videoLink"]),
			})
		}
		sections = append(sections, s)
	}

	if len(sections) == 0 {
		return nil, Errorf(ENOTFOUND, "no sections in tree payload")
	}
	return sections, nil
}

// scalarString renders a decoded JSON scalar as a string. Null and
// non-scalar values become the empty string.
func scalarString(v any) string {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
