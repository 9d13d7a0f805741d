package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/modharvest"
	"github.com/fwojciec/modharvest/sqlite"
)

// Run executes the status command.
func (c *StatusCmd) Run(deps *Dependencies) error {
	cp, err := deps.Checkpoints.Peek(deps.Ctx)
	if modharvest.ErrorCode(err) == modharvest.ENOTFOUND {
		fmt.Fprintln(deps.Stdout, "No checkpoint. The next run starts fresh.")
		return nil
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", modharvest.ErrorMessage(err))
		return err
	}

	st := cp.State
	fmt.Fprintf(deps.Stdout, "Run:      %s\n", st.RunID)
	fmt.Fprintf(deps.Stdout, "Phase:    %s\n", st.Phase)
	fmt.Fprintf(deps.Stdout, "Progress: %d/%d\n", st.Cursor, st.TotalNodes)
	if st.CurrentNodeTitle != "" {
		fmt.Fprintf(deps.Stdout, "Current:  %s\n", st.CurrentNodeTitle)
	}
	fmt.Fprintf(deps.Stdout, "Saved:    %s\n", st.SavedAt.Format(time.RFC3339))
	if deps.Checkpoints.IsStale(cp) {
		fmt.Fprintln(deps.Stdout, "Stale:    yes (the next run starts fresh)")
	}

	if st.Phase == modharvest.PhaseCompleted && deps.Records != nil {
		run, err := deps.Records.FindRun(deps.Ctx, st.RunID)
		switch {
		case modharvest.ErrorCode(err) == modharvest.ENOTFOUND:
			fmt.Fprintln(deps.Stdout, "Stored:   no (the run has not reached the database)")
		case err != nil:
			fmt.Fprintf(deps.Stderr, "error: %s\n", modharvest.ErrorMessage(err))
			return err
		default:
			fmt.Fprintf(deps.Stdout, "Stored:   %d sections, %d modules\n", run.TotalSections, run.TotalModules)
		}

		failed := true
		records, err := deps.Records.FindRecords(deps.Ctx, sqlite.RecordFilter{RunID: st.RunID, Failed: &failed})
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", modharvest.ErrorMessage(err))
			return err
		}
		fmt.Fprintf(deps.Stdout, "Failed:   %d\n", len(records))
		for _, r := range records {
			fmt.Fprintf(deps.Stdout, "  %s / %s: %s\n", r.SectionTitle, r.ModuleTitle, r.Content)
		}
	}
	return nil
}
