package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/modharvest"
	"github.com/fwojciec/modharvest/harvest"
	"golang.org/x/sync/errgroup"
)

// Run executes the run command. A paused run is not an error: running the
// command again resumes it.
func (c *RunCmd) Run(deps *Dependencies) error {
	if c.Fresh {
		if err := deps.Checkpoints.Clear(deps.Ctx); err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", modharvest.ErrorMessage(err))
			return err
		}
	}

	sig := harvest.NewSignal()
	coord := &harvest.Coordinator{
		Browser:         deps.Browser,
		Credentials:     modharvest.Credentials{Username: c.Username, Password: c.Password},
		Normalizer:      deps.Normalizer,
		Checkpoints:     deps.Checkpoints,
		Sinks:           deps.Sinks,
		Signal:          sig,
		BaseURL:         c.BaseURL,
		CheckpointEvery: c.CheckpointEvery,
		RetryDelays:     retryDelays(c.Retries),
		Throttle:        harvest.NewThrottle(c.RPS),
		Progress:        c.progress(deps),
		Logger:          deps.Logger,
		Now:             deps.Checkpoints.Now,
	}

	// The relay turns the first OS signal into a pause request; the run
	// itself finishes its current step and checkpoints.
	var outcome harvest.Outcome
	done := make(chan struct{})
	g, gctx := errgroup.WithContext(deps.Ctx)
	g.Go(func() error {
		select {
		case s := <-deps.Interrupts:
			sig.Raise("received " + s.String())
		case <-gctx.Done():
		case <-done:
		}
		return nil
	})
	g.Go(func() error {
		defer close(done)
		outcome = coord.Run(gctx)
		return nil
	})
	_ = g.Wait()

	switch outcome.Kind {
	case harvest.OutcomePaused:
		st := outcome.Checkpoint.State
		fmt.Fprintf(deps.Stdout, "Paused with %d of %d modules done (%s). Run again to resume.\n",
			st.Cursor, st.TotalNodes, outcome.Reason)
		return nil
	case harvest.OutcomeFailed:
		fmt.Fprintf(deps.Stderr, "error: %s\n", modharvest.ErrorMessage(outcome.Err))
		return outcome.Err
	}

	var failed int
	for _, n := range outcome.Checkpoint.Nodes {
		if n.Content.Kind != modharvest.ContentText {
			failed++
		}
	}
	fmt.Fprintf(deps.Stdout, "Harvested %d modules in %d sections (%d failed), run %s\n",
		len(outcome.Checkpoint.Nodes), len(outcome.Checkpoint.Sections), failed, outcome.Checkpoint.State.RunID)
	return nil
}

func (c *RunCmd) progress(deps *Dependencies) harvest.ProgressFunc {
	return func(event harvest.ProgressEvent) {
		switch event.Type {
		case harvest.ProgressStarted:
			if event.Phase == modharvest.PhaseCompleted {
				fmt.Fprintln(deps.Stdout, "  Run already completed, re-emitting output")
			} else if event.Resumed {
				fmt.Fprintf(deps.Stdout, "  Resuming with %d of %d modules done\n", event.Cursor, event.Total)
			}
		case harvest.ProgressCheckpoint:
			if event.Phase == modharvest.PhaseTreeDiscovered {
				fmt.Fprintf(deps.Stdout, "  Found %d modules\n", event.Total)
			}
		case harvest.ProgressNode:
			if event.Node.Content.Kind != modharvest.ContentText {
				fmt.Fprintf(deps.Stderr, "  skip %s: %s\n", event.Node.Title, event.Node.Content.Reason)
			}
		}
	}
}

// retryDelays doubles from one second for each retry.
func retryDelays(retries int) []time.Duration {
	delays := make([]time.Duration, 0, max(retries, 0))
	d := time.Second
	for range retries {
		delays = append(delays, d)
		d *= 2
	}
	return delays
}
