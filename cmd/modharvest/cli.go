package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fwojciec/modharvest"
	"github.com/fwojciec/modharvest/harvest"
	"github.com/fwojciec/modharvest/sqlite"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	Checkpoints *harvest.CheckpointStore
	Records     *sqlite.Sink
	Sinks       []modharvest.Sink

	// Wired for the run command only.
	Browser    modharvest.Browser
	Normalizer modharvest.Normalizer

	// Interrupts delivers OS signals that pause a run. Nil never fires.
	Interrupts <-chan os.Signal
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose   bool          `short:"v" help:"Log every collaborator call at debug level"`
	DB        string        `env:"HARVEST_DB" help:"SQLite database for checkpoints and records"`
	StateDir  string        `name:"state-dir" env:"HARVEST_STORE" help:"Store checkpoints as JSON files in this directory instead of SQLite"`
	Key       string        `default:"HARVEST_STATE" help:"Checkpoint key"`
	Freshness time.Duration `default:"1h" help:"Checkpoints older than this are ignored"`

	Run    RunCmd    `cmd:"" help:"Harvest the content tree, resuming from a fresh checkpoint"`
	Status StatusCmd `cmd:"" help:"Show the stored checkpoint"`
	Reset  ResetCmd  `cmd:"" help:"Delete the stored checkpoint"`
}

// RunCmd is the "run" subcommand.
type RunCmd struct {
	BaseURL  string `name:"base-url" required:"" env:"HARVEST_BASE_URL" help:"Module locator base; {id} is replaced by the module ID, otherwise the ID is appended"`
	LoginURL string `name:"login-url" env:"HARVEST_LOGIN_URL" help:"Sign-in page (skip authentication when empty)"`
	TreeURL  string `name:"tree-url" env:"HARVEST_TREE_URL" help:"Page carrying the content tree payload"`
	Username string `env:"HARVEST_USERNAME" help:"Account username"`
	Password string `env:"HARVEST_PASSWORD" help:"Account password"`

	TreeSelector string   `name:"tree-selector" default:"script#__NEXT_DATA__" help:"Element holding the tree JSON"`
	TreePath     string   `name:"tree-path" help:"Dotted path to the sections inside the tree JSON"`
	Selectors    []string `name:"selector" short:"s" help:"Content container selector, in priority order (repeatable)"`

	Fresh           bool          `short:"f" help:"Discard any checkpoint and start over"`
	PageTimeout     time.Duration `name:"page-timeout" default:"30s" help:"Wait for content per page"`
	CheckpointEvery int           `name:"checkpoint-every" default:"3" help:"Save progress every N modules"`
	Retries         int           `default:"2" help:"Navigation retries for generic failures"`
	RPS             float64       `name:"rps" default:"1" help:"Navigations per second (0 disables throttling)"`
	Engine          string        `default:"rod" enum:"rod,http" help:"Page engine: rod drives Chrome, http fetches server-rendered pages (${enum})"`
	Headless        bool          `default:"true" negatable:"" help:"Run the browser headless"`
	ControlURL      string        `name:"control-url" help:"Connect to a running browser instead of launching one"`
	Markdown        bool          `default:"true" negatable:"" help:"Render module content as markdown"`
	Trafilatura     bool          `default:"true" negatable:"" help:"Fall back to main-content extraction when no container matches"`
	Readability     bool          `default:"true" negatable:"" help:"Fall back to article extraction after trafilatura"`
	Output          string        `short:"o" env:"HARVEST_OUTPUT" help:"Also export the completed run to this directory"`
}

// StatusCmd is the "status" subcommand.
type StatusCmd struct{}

// ResetCmd is the "reset" subcommand.
type ResetCmd struct {
	Force bool `help:"Confirm deletion"`
}
