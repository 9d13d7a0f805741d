package modharvest_test

import (
	"testing"
	"time"

	"github.com/fwojciec/modharvest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOutput(t *testing.T) {
	t.Parallel()

	t.Run("emits one record per flattened node", func(t *testing.T) {
		t.Parallel()

		sections := []*modharvest.Section{
			{ID: "s1", Title: "One", Modules: []*modharvest.Module{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}},
			{ID: "s2", Title: "Two", Modules: []*modharvest.Module{{Title: "Missing"}}},
		}
		nodes := modharvest.Flatten(sections)
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		nodes[0].SetContent(modharvest.TextContent("alpha"), at)
		nodes[1].SetContent(modharvest.ErrorContent(modharvest.ReasonPageTimeout), at)
		nodes[2].SetContent(modharvest.ErrorContent(modharvest.ReasonNoLocator), at)

		cp := &modharvest.Checkpoint{
			State:    modharvest.HarvestState{RunID: "run-1", Phase: modharvest.PhaseCompleted, Cursor: 3, TotalNodes: 3, SavedAt: at},
			Sections: sections,
			Nodes:    nodes,
		}

		out, err := modharvest.BuildOutput(cp)

		require.NoError(t, err)
		require.Len(t, out.Records, 3)
		assert.Equal(t, "alpha", out.Records[0].Content)
		assert.False(t, out.Records[0].Failed)
		assert.Equal(t, modharvest.ReasonPageTimeout, out.Records[1].Content)
		assert.True(t, out.Records[1].Failed)
		assert.Equal(t, modharvest.ReasonNoLocator, out.Records[2].Content)
		assert.Equal(t, modharvest.HashContent("alpha"), out.Records[0].ContentHash)

		assert.Equal(t, "run-1", out.Aggregate.RunID)
		assert.Equal(t, 2, out.Aggregate.TotalSections)
		assert.Equal(t, 3, out.Aggregate.TotalModules)
		require.Len(t, out.Aggregate.Data, 2)
		assert.Len(t, out.Aggregate.Data[0].Modules, 2)
		assert.Equal(t, "Two", out.Aggregate.Data[1].SectionTitle)
		assert.Equal(t, sections, out.Aggregate.RawStructure)
	})

	t.Run("rejects incomplete run", func(t *testing.T) {
		t.Parallel()

		cp := &modharvest.Checkpoint{
			State: modharvest.HarvestState{Phase: modharvest.PhaseHarvesting, Cursor: 1, TotalNodes: 2},
		}

		_, err := modharvest.BuildOutput(cp)

		require.Error(t, err)
		assert.Equal(t, modharvest.EINVALID, modharvest.ErrorCode(err))
	})
}

func TestHashContent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, modharvest.HashContent("same"), modharvest.HashContent("same"))
	assert.NotEqual(t, modharvest.HashContent("one"), modharvest.HashContent("two"))
	assert.Len(t, modharvest.HashContent(""), 16)
}

func TestExtraction_Content(t *testing.T) {
	t.Parallel()

	t.Run("renders references after text", func(t *testing.T) {
		t.Parallel()

		e := &modharvest.Extraction{
			Status: modharvest.ExtractionOK,
			Text:   "Body text",
			Images: []modharvest.Image{{Src: "https://cdn.example.com/a.png", Caption: "Diagram"}},
			Links:  []modharvest.Link{{Href: "https://example.com", Text: "Example"}},
		}

		c := e.Content()

		assert.Equal(t, modharvest.ContentText, c.Kind)
		assert.Equal(t, "Body text\n\n[Image: Diagram - https://cdn.example.com/a.png]\n[Link: Example - https://example.com]", c.Text)
	})

	t.Run("renders unlabeled references by target", func(t *testing.T) {
		t.Parallel()

		e := &modharvest.Extraction{
			Status: modharvest.ExtractionOK,
			Text:   "Body text",
			Images: []modharvest.Image{{Src: "https://cdn.example.com/b.png"}},
			Links:  []modharvest.Link{{Href: "https://example.com/bare", Text: " "}},
		}

		c := e.Content()

		assert.Equal(t, "Body text\n\n[Image: https://cdn.example.com/b.png]\n[Link: https://example.com/bare]", c.Text)
	})

	t.Run("maps sentinels to error content", func(t *testing.T) {
		t.Parallel()

		none := &modharvest.Extraction{Status: modharvest.ExtractionNoContent}
		failed := &modharvest.Extraction{Status: modharvest.ExtractionError, Detail: "boom"}

		assert.Equal(t, modharvest.ErrorContent(modharvest.ReasonNoContent), none.Content())
		assert.Equal(t, modharvest.ErrorContent("error scraping content: boom"), failed.Content())
	})
}
