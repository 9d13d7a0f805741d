package modharvest

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// NodeRecord is the per-node output record.
type NodeRecord struct {
	RunID        string    `json:"runId"`
	Position     int       `json:"position"`
	SectionTitle string    `json:"sectionTitle"`
	ModuleTitle  string    `json:"moduleTitle"`
	ModuleID     string    `json:"moduleId,omitempty"`
	VideoLink    string    `json:"videoLink,omitempty"`
	Content      string    `json:"content"`
	Failed       bool      `json:"failed,omitempty"`
	ContentHash  string    `json:"contentHash"`
	Markdown     string    `json:"markdown,omitempty"`
	ScrapedAt    time.Time `json:"scrapedAt,omitzero"`
}

// SectionData groups a section's node records in the aggregate record.
type SectionData struct {
	SectionTitle string        `json:"sectionTitle"`
	Modules      []*NodeRecord `json:"modules"`
}

// AggregateRecord summarizes a completed run.
type AggregateRecord struct {
	RunID         string         `json:"runId"`
	TotalSections int            `json:"totalSections"`
	TotalModules  int            `json:"totalModules"`
	Data          []*SectionData `json:"data"`
	RawStructure  []*Section     `json:"rawStructure"`
	CompletedAt   time.Time      `json:"completedAt"`
}

// Output is everything a completed run hands to sinks.
type Output struct {
	Aggregate *AggregateRecord
	Records   []*NodeRecord
}

// Sink receives the output of a completed run. Emitting the same output
// twice must leave the sink in the same state as emitting it once.
type Sink interface {
	Emit(ctx context.Context, out *Output) error
}

// HashContent computes a stable hex hash of content.
func HashContent(content string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(content))
}

// BuildOutput assembles the output of a completed checkpoint. Every
// flattened node yields exactly one record, in flattened order; failed
// nodes carry their error reason in place of content.
func BuildOutput(cp *Checkpoint) (*Output, error) {
	if cp.State.Phase != PhaseCompleted {
		return nil, Errorf(EINVALID, "output requires a completed run, phase is %q", cp.State.Phase)
	}

	records := make([]*NodeRecord, 0, len(cp.Nodes))
	var data []*SectionData
	bySection := make(map[string]*SectionData)
	for _, n := range cp.Nodes {
		if n == nil {
			continue
		}
		content := n.Content.String()
		rec := &NodeRecord{
			RunID:        cp.State.RunID,
			Position:     n.Position,
			SectionTitle: n.SectionTitle,
			ModuleTitle:  n.Title,
			ModuleID:     n.ID,
			VideoLink:    n.VideoLink,
			Content:      content,
			Failed:       n.Content.Kind != ContentText,
			ContentHash:  HashContent(content),
			Markdown:     n.Markdown,
			ScrapedAt:    n.ScrapedAt,
		}
		records = append(records, rec)

		sd, ok := bySection[n.ParentSectionID]
		if !ok {
			sd = &SectionData{SectionTitle: n.SectionTitle}
			bySection[n.ParentSectionID] = sd
			data = append(data, sd)
		}
		sd.Modules = append(sd.Modules, rec)
	}

	return &Output{
		Aggregate: &AggregateRecord{
			RunID:         cp.State.RunID,
			TotalSections: len(cp.Sections),
			TotalModules:  len(records),
			Data:          data,
			RawStructure:  cp.Sections,
			CompletedAt:   cp.State.SavedAt,
		},
		Records: records,
	}, nil
}
