package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/fwojciec/modharvest"
	"github.com/fwojciec/modharvest/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedOutput(t *testing.T) *modharvest.Output {
	t.Helper()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sections := []*modharvest.Section{
		{ID: "s1", Title: "Basics", Modules: []*modharvest.Module{
			{ID: "a", Title: "Intro", VideoLink: "https://video.test/a"},
			{ID: "b", Title: "Setup"},
		}},
		{ID: "s2", Title: "Extras", Modules: []*modharvest.Module{{Title: "Bonus"}}},
	}
	nodes := modharvest.Flatten(sections)
	nodes[0].SetContent(modharvest.TextContent("Welcome"), at)
	nodes[0].Markdown = "# Welcome"
	nodes[1].SetContent(modharvest.ErrorContent(modharvest.ReasonPageTimeout), at)
	nodes[2].SetContent(modharvest.ErrorContent(modharvest.ReasonNoLocator), at)

	out, err := modharvest.BuildOutput(&modharvest.Checkpoint{
		State: modharvest.HarvestState{
			RunID:      "run-1",
			Phase:      modharvest.PhaseCompleted,
			Cursor:     3,
			TotalNodes: 3,
			SavedAt:    at,
		},
		Sections: sections,
		Nodes:    nodes,
	})
	require.NoError(t, err)
	return out
}

func TestSink_Emit(t *testing.T) {
	t.Parallel()

	t.Run("stores run and records", func(t *testing.T) {
		t.Parallel()

		sink := sqlite.NewSink(setupTestDB(t))
		ctx := context.Background()
		out := completedOutput(t)

		require.NoError(t, sink.Emit(ctx, out))

		run, err := sink.FindRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, 2, run.TotalSections)
		assert.Equal(t, 3, run.TotalModules)
		assert.Equal(t, out.Aggregate.CompletedAt, run.CompletedAt)
		require.Len(t, run.RawStructure, 2)
		assert.Equal(t, "Intro", run.RawStructure[0].Modules[0].Title)

		records, err := sink.FindRecords(ctx, sqlite.RecordFilter{RunID: "run-1"})
		require.NoError(t, err)
		assert.Equal(t, out.Records, records)
	})

	t.Run("emitting twice is idempotent", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		sink := sqlite.NewSink(db)
		ctx := context.Background()
		out := completedOutput(t)

		require.NoError(t, sink.Emit(ctx, out))
		require.NoError(t, sink.Emit(ctx, out))

		var runs, records int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&runs))
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&records))
		assert.Equal(t, 1, runs)
		assert.Equal(t, 3, records)
	})

	t.Run("filters failed records", func(t *testing.T) {
		t.Parallel()

		sink := sqlite.NewSink(setupTestDB(t))
		ctx := context.Background()
		require.NoError(t, sink.Emit(ctx, completedOutput(t)))

		failed := true
		records, err := sink.FindRecords(ctx, sqlite.RecordFilter{RunID: "run-1", Failed: &failed})

		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, modharvest.ReasonPageTimeout, records[0].Content)
		assert.Equal(t, modharvest.ReasonNoLocator, records[1].Content)
	})

	t.Run("paginates records", func(t *testing.T) {
		t.Parallel()

		sink := sqlite.NewSink(setupTestDB(t))
		ctx := context.Background()
		require.NoError(t, sink.Emit(ctx, completedOutput(t)))

		page, err := sink.FindRecords(ctx, sqlite.RecordFilter{RunID: "run-1", Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, 1, page[0].Position)

		rest, err := sink.FindRecords(ctx, sqlite.RecordFilter{RunID: "run-1", Offset: 2})
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, 2, rest[0].Position)
	})

	t.Run("rejects output without aggregate", func(t *testing.T) {
		t.Parallel()

		sink := sqlite.NewSink(setupTestDB(t))

		err := sink.Emit(context.Background(), &modharvest.Output{})

		assert.Equal(t, modharvest.EINVALID, modharvest.ErrorCode(err))
	})

	t.Run("missing run is not found", func(t *testing.T) {
		t.Parallel()

		sink := sqlite.NewSink(setupTestDB(t))

		_, err := sink.FindRun(context.Background(), "nope")

		assert.Equal(t, modharvest.ENOTFOUND, modharvest.ErrorCode(err))
	})
}
