// Package harvest drives a resumable, checkpointed harvest of a content
// tree through an authenticated browser session.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwojciec/modharvest"
	"github.com/google/uuid"
)

// DefaultCheckpointEvery is how many processed nodes pass between
// periodic checkpoints.
const DefaultCheckpointEvery = 3

// OutcomeKind identifies how a run ended.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomePaused
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomePaused:
		return "paused"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of Coordinator.Run. Interruptions and per-node
// failures never surface as Err; only run-aborting failures do.
type Outcome struct {
	Kind OutcomeKind

	// Checkpoint is the last state of the run. It is nil only when the run
	// failed before any state could be established.
	Checkpoint *modharvest.Checkpoint

	// Reason explains a pause.
	Reason string

	// Err is set when Kind is OutcomeFailed.
	Err error
}

// ProgressType indicates the type of progress event.
type ProgressType int

const (
	ProgressStarted ProgressType = iota
	ProgressNode
	ProgressCheckpoint
	ProgressPaused
	ProgressCompleted
)

// ProgressEvent reports progress during a run.
type ProgressEvent struct {
	Type    ProgressType
	Phase   modharvest.Phase
	Cursor  int
	Total   int
	Resumed bool
	Node    *modharvest.Node
	Reason  string
}

// ProgressFunc is a callback for reporting run progress.
type ProgressFunc func(event ProgressEvent)

// Coordinator runs the harvest state machine:
// Initializing → Authenticated → TreeDiscovered → Harvesting → Completed.
// It exclusively owns the browser session for the duration of a run.
type Coordinator struct {
	Browser     modharvest.Browser
	Credentials modharvest.Credentials
	Normalizer  modharvest.Normalizer
	Checkpoints *CheckpointStore
	Sinks       []modharvest.Sink

	// Signal is polled before each node and network-bound step. When nil
	// the run cannot be interrupted other than by canceling its context.
	Signal *Signal

	// BaseURL is combined with node IDs to build locators.
	BaseURL string

	// CheckpointEvery defaults to DefaultCheckpointEvery.
	CheckpointEvery int

	// RetryDelays are the delays between navigation attempts. Nil means
	// DefaultRetryDelays; an empty slice disables retries.
	RetryDelays []time.Duration

	Throttle *Throttle
	Progress ProgressFunc
	Logger   *slog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// NewRunID returns an identifier for a fresh run. Defaults to a UUID.
	NewRunID func() string
}

// harvestContext carries the mutable state of a single run.
type harvestContext struct {
	cp      *modharvest.Checkpoint
	sig     *Signal
	session modharvest.Session
	release *onceCloser
	resumed bool
}

// Run executes the harvest until it completes, pauses, or fails.
func (c *Coordinator) Run(ctx context.Context) Outcome {
	hc := &harvestContext{sig: c.Signal}
	if hc.sig == nil {
		hc.sig = NewSignal()
	}

	cp, resumed, err := c.load(ctx)
	if err != nil {
		return c.fail(nil, fmt.Errorf("loading checkpoint: %w", err))
	}
	hc.cp = cp
	hc.resumed = resumed

	c.progress(hc, ProgressEvent{Type: ProgressStarted})

	// A completed run is never harvested again, only re-emitted.
	if cp.State.Phase == modharvest.PhaseCompleted {
		return c.finish(ctx, hc)
	}

	if c.interrupted(ctx, hc) {
		return c.pause(ctx, hc)
	}

	sess, err := c.Browser.Open(ctx)
	if err != nil {
		if classify(err) == classInterrupt {
			return c.pause(ctx, hc)
		}
		return c.fail(hc, fmt.Errorf("opening browser: %w", err))
	}
	hc.session = sess
	hc.release = &onceCloser{c: sess}
	hc.sig.Bind(hc.release)
	defer func() {
		if err := hc.release.Close(); err != nil {
			c.logger().Warn("closing session", "err", err)
		}
	}()

	if outcome, ok := c.authenticate(ctx, hc); !ok {
		return outcome
	}
	if outcome, ok := c.discover(ctx, hc); !ok {
		return outcome
	}
	if outcome, ok := c.harvest(ctx, hc); !ok {
		return outcome
	}

	hc.cp.State.Advance(modharvest.PhaseCompleted)
	hc.cp.State.CurrentNodeTitle = ""
	if err := c.Checkpoints.Save(context.WithoutCancel(ctx), hc.cp); err != nil {
		return c.fail(hc, fmt.Errorf("saving completed checkpoint: %w", err))
	}
	return c.finish(ctx, hc)
}

// load returns the checkpoint to resume from, or a fresh one. Stale,
// absent and corrupt checkpoints all start a fresh run.
func (c *Coordinator) load(ctx context.Context) (*modharvest.Checkpoint, bool, error) {
	cp, err := c.Checkpoints.Load(ctx)
	switch modharvest.ErrorCode(err) {
	case "":
		return cp, true, nil
	case modharvest.ENOTFOUND:
		c.logger().Debug("starting fresh run", "reason", modharvest.ErrorMessage(err))
	case modharvest.EINVALID:
		c.logger().Warn("discarding unusable checkpoint", "err", err)
	default:
		return nil, false, err
	}

	return &modharvest.Checkpoint{
		State: modharvest.HarvestState{
			RunID: c.newRunID(),
			Phase: modharvest.PhaseInitializing,
		},
	}, false, nil
}

// authenticate signs the session in. Every run authenticates, including
// resumed ones: session state does not survive the process.
func (c *Coordinator) authenticate(ctx context.Context, hc *harvestContext) (Outcome, bool) {
	if c.interrupted(ctx, hc) {
		return c.pause(ctx, hc), false
	}
	if err := hc.session.Authenticate(ctx, c.Credentials); err != nil {
		if classify(err) == classInterrupt || hc.sig.Raised() {
			return c.pause(ctx, hc), false
		}
		return c.fail(hc, fmt.Errorf("authenticating: %w", err)), false
	}
	hc.cp.State.Advance(modharvest.PhaseAuthenticated)
	return Outcome{}, true
}

// discover reads and flattens the content tree unless the checkpoint
// already carries it.
func (c *Coordinator) discover(ctx context.Context, hc *harvestContext) (Outcome, bool) {
	if !hc.cp.State.Phase.Before(modharvest.PhaseTreeDiscovered) {
		return Outcome{}, true
	}
	if c.interrupted(ctx, hc) {
		return c.pause(ctx, hc), false
	}

	sections, err := hc.session.DiscoverTree(ctx)
	if err != nil {
		if classify(err) == classInterrupt || hc.sig.Raised() {
			return c.pause(ctx, hc), false
		}
		return c.fail(hc, fmt.Errorf("discovering tree: %w", err)), false
	}
	nodes := modharvest.Flatten(sections)
	if len(nodes) == 0 {
		return c.fail(hc, modharvest.Errorf(modharvest.ENOTFOUND, "content tree has no modules")), false
	}

	hc.cp.Sections = sections
	hc.cp.Nodes = nodes
	hc.cp.State.TotalNodes = len(nodes)
	hc.cp.State.Cursor = 0
	hc.cp.State.Advance(modharvest.PhaseTreeDiscovered)
	c.checkpoint(ctx, hc)
	return Outcome{}, true
}

// harvest processes nodes from the cursor to the end of the flattened tree.
func (c *Coordinator) harvest(ctx context.Context, hc *harvestContext) (Outcome, bool) {
	hc.cp.State.Advance(modharvest.PhaseHarvesting)

	every := c.CheckpointEvery
	if every <= 0 {
		every = DefaultCheckpointEvery
	}

	processed := 0
	for i := hc.cp.State.Cursor; i < len(hc.cp.Nodes); i++ {
		if c.interrupted(ctx, hc) {
			return c.pause(ctx, hc), false
		}

		node := hc.cp.Nodes[i]
		hc.cp.State.CurrentNodeTitle = node.Title
		if err := c.harvestNode(ctx, hc, node); err != nil {
			return c.pause(ctx, hc), false
		}

		hc.cp.State.Cursor = i + 1
		processed++
		c.progress(hc, ProgressEvent{Type: ProgressNode, Node: node})

		if processed%every == 0 {
			c.checkpoint(ctx, hc)
		}
	}
	return Outcome{}, true
}

// harvestNode attempts a single node and writes its content. Per-node
// failures are recorded on the node; only interruptions are returned.
func (c *Coordinator) harvestNode(ctx context.Context, hc *harvestContext, node *modharvest.Node) error {
	locator, ok := modharvest.Locate(c.BaseURL, node)
	if !ok {
		node.SetContent(modharvest.ErrorContent(modharvest.ReasonNoLocator), c.now())
		return nil
	}

	if err := c.Throttle.Wait(ctx); err != nil {
		return err
	}

	delays := c.RetryDelays
	if delays == nil {
		delays = DefaultRetryDelays()
	}
	html, err := NavigateWithRetry(ctx, locator, hc.session.Navigate, hc.sig, c.logger(), delays)
	if err == nil && hc.sig.Raised() {
		// The page may belong to a session that is being torn down.
		err = errInterrupted
	}
	if err != nil {
		switch classify(err) {
		case classInterrupt:
			return err
		case classTimeout:
			node.SetContent(modharvest.ErrorContent(modharvest.ReasonPageTimeout), c.now())
		default:
			node.SetContent(modharvest.ErrorContent(modharvest.ScrapeErrorReason(modharvest.ErrorMessage(err))), c.now())
		}
		return nil
	}

	ext := c.Normalizer.Normalize(html, locator)
	node.SetContent(ext.Content(), c.now())
	if ext.Status == modharvest.ExtractionOK {
		node.Markdown = ext.Markdown
	}
	return nil
}

// interrupted polls the interruption condition.
func (c *Coordinator) interrupted(ctx context.Context, hc *harvestContext) bool {
	return hc.sig.Raised() || ctx.Err() != nil
}

// checkpoint saves the run's state. Failures are logged and the run goes
// on: the next checkpoint or the pause path will try again.
func (c *Coordinator) checkpoint(ctx context.Context, hc *harvestContext) {
	if err := c.Checkpoints.Save(context.WithoutCancel(ctx), hc.cp); err != nil {
		c.logger().Warn("saving checkpoint", "cursor", hc.cp.State.Cursor, "err", err)
		return
	}
	c.progress(hc, ProgressEvent{Type: ProgressCheckpoint})
}

// pause releases the session and persists the cursor at the first node
// not yet attempted.
func (c *Coordinator) pause(ctx context.Context, hc *harvestContext) Outcome {
	if err := hc.sig.Release(); err != nil {
		c.logger().Warn("releasing session", "err", err)
	}
	if hc.release != nil {
		_ = hc.release.Close()
	}

	reason := hc.sig.Reason()
	if reason == "" {
		if err := ctx.Err(); err != nil {
			reason = err.Error()
		} else {
			reason = "session detached"
		}
	}

	if err := c.Checkpoints.Save(context.WithoutCancel(ctx), hc.cp); err != nil {
		return c.fail(hc, fmt.Errorf("saving checkpoint on pause: %w", err))
	}
	c.progress(hc, ProgressEvent{Type: ProgressPaused, Reason: reason})
	return Outcome{Kind: OutcomePaused, Checkpoint: hc.cp, Reason: reason}
}

// finish builds the output of a completed checkpoint and emits it.
func (c *Coordinator) finish(ctx context.Context, hc *harvestContext) Outcome {
	out, err := modharvest.BuildOutput(hc.cp)
	if err != nil {
		return c.fail(hc, err)
	}
	for _, sink := range c.Sinks {
		if err := sink.Emit(ctx, out); err != nil {
			return c.fail(hc, fmt.Errorf("emitting output: %w", err))
		}
	}
	c.progress(hc, ProgressEvent{Type: ProgressCompleted})
	return Outcome{Kind: OutcomeCompleted, Checkpoint: hc.cp}
}

func (c *Coordinator) fail(hc *harvestContext, err error) Outcome {
	var cp *modharvest.Checkpoint
	if hc != nil {
		cp = hc.cp
	}
	return Outcome{Kind: OutcomeFailed, Checkpoint: cp, Err: err}
}

func (c *Coordinator) progress(hc *harvestContext, ev ProgressEvent) {
	if c.Progress == nil {
		return
	}
	ev.Phase = hc.cp.State.Phase
	ev.Cursor = hc.cp.State.Cursor
	ev.Total = hc.cp.State.TotalNodes
	ev.Resumed = hc.resumed
	c.Progress(ev)
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c *Coordinator) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now()
}

func (c *Coordinator) newRunID() string {
	if c.NewRunID == nil {
		return uuid.NewString()
	}
	return c.NewRunID()
}
