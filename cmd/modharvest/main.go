package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/modharvest"
	"github.com/fwojciec/modharvest/fs"
	"github.com/fwojciec/modharvest/goquery"
	"github.com/fwojciec/modharvest/harvest"
	"github.com/fwojciec/modharvest/htmltomarkdown"
	mhhttp "github.com/fwojciec/modharvest/http"
	"github.com/fwojciec/modharvest/readability"
	"github.com/fwojciec/modharvest/rod"
	hslog "github.com/fwojciec/modharvest/slog"
	"github.com/fwojciec/modharvest/sqlite"
	"github.com/fwojciec/modharvest/trafilatura"
)

func main() {
	ctx := context.Background()

	m := NewMain()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	m.Interrupts = interrupts

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path. Set before calling Run().
	DBPath string

	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB

	// Interrupts delivers OS signals to the run command.
	Interrupts <-chan os.Signal

	// Browser replaces the rod browser, for end-to-end testing.
	Browser modharvest.Browser

	// Now replaces the clock, for end-to-end testing.
	Now func() time.Time
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath: defaultDBPath(),
		Now:    time.Now,
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:        ctx,
		Stdout:     stdout,
		Stderr:     stderr,
		Interrupts: m.Interrupts,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("modharvest"),
		kong.Description("Resumable harvest of module content from an authenticated web application"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'modharvest --help' to see available commands")
	}

	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	deps.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if cli.DB != "" {
		m.DBPath = cli.DB
	}
	m.DB = sqlite.NewDB(m.DBPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set HARVEST_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", m.DBPath, err)
	}
	defer m.Close()

	var kv modharvest.KeyValueStore = sqlite.NewKeyValueStore(m.DB)
	if cli.StateDir != "" {
		kv = fs.NewKeyValueStore(cli.StateDir)
	}
	if cli.Verbose {
		kv = hslog.NewLoggingKeyValueStore(kv, deps.Logger)
	}
	deps.Checkpoints = harvest.NewCheckpointStore(kv)
	deps.Checkpoints.Key = cli.Key
	deps.Checkpoints.Freshness = cli.Freshness
	deps.Checkpoints.Now = m.now

	deps.Records = sqlite.NewSink(m.DB)
	deps.Sinks = []modharvest.Sink{hslog.NewLoggingSink("sqlite", deps.Records, deps.Logger)}

	if cmd == "run" {
		if cli.Run.Output != "" {
			dir, name := filepath.Split(filepath.Clean(cli.Run.Output))
			deps.Sinks = append(deps.Sinks, hslog.NewLoggingSink("fs", fs.NewSink(dir, name), deps.Logger))
		}

		deps.Normalizer = newNormalizer(&cli.Run)
		deps.Browser = m.Browser
		if deps.Browser == nil {
			deps.Browser = newBrowser(&cli.Run)
		}
		if cli.Verbose {
			deps.Browser = hslog.NewLoggingBrowser(deps.Browser, deps.Logger)
			deps.Normalizer = hslog.NewLoggingNormalizer(deps.Normalizer, deps.Logger)
		}
	}

	return kongCtx.Run(deps)
}

func (m *Main) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

// newBrowser configures the page engine from run flags.
func newBrowser(c *RunCmd) modharvest.Browser {
	if c.Engine == "http" {
		return mhhttp.NewBrowser(
			mhhttp.WithTimeout(c.PageTimeout),
			mhhttp.WithLogin(mhhttp.Login{URL: c.LoginURL}),
			mhhttp.WithTree(mhhttp.Tree{URL: c.TreeURL, Selector: c.TreeSelector, Path: c.TreePath}),
		)
	}

	opts := []rod.Option{
		rod.WithHeadless(c.Headless),
		rod.WithPageTimeout(c.PageTimeout),
		rod.WithLogin(rod.Login{URL: c.LoginURL}),
		rod.WithTree(rod.Tree{URL: c.TreeURL, Selector: c.TreeSelector, Path: c.TreePath}),
	}
	if len(c.Selectors) > 0 {
		opts = append(opts, rod.WithContentSelectors(c.Selectors...))
	}
	if c.ControlURL != "" {
		opts = append(opts, rod.WithControlURL(c.ControlURL))
	}
	return rod.NewBrowser(opts...)
}

// newNormalizer configures the extraction strategies from run flags.
func newNormalizer(c *RunCmd) *goquery.Normalizer {
	var opts []goquery.Option
	if len(c.Selectors) > 0 {
		strategies := make([]goquery.Strategy, len(c.Selectors))
		for i, sel := range c.Selectors {
			strategies[i] = goquery.Strategy{Name: fmt.Sprintf("selector-%d", i+1), Selector: sel}
		}
		opts = append(opts, goquery.WithStrategies(strategies))
	}
	if c.Markdown {
		opts = append(opts, goquery.WithConverter(htmltomarkdown.NewConverter(htmltomarkdown.WithDomain(c.BaseURL))))
	}
	var fallbacks []modharvest.Extractor
	if c.Trafilatura {
		fallbacks = append(fallbacks, trafilatura.NewExtractor(
			trafilatura.WithPageURL(c.BaseURL),
			trafilatura.WithMinTextLength(goquery.DefaultMinLength),
		))
	}
	if c.Readability {
		fallbacks = append(fallbacks, readability.NewExtractor(
			readability.WithPageURL(c.BaseURL),
			readability.WithMinTextLength(goquery.DefaultMinLength),
		))
	}
	opts = append(opts, goquery.WithFallbacks(fallbacks...))
	return goquery.NewNormalizer(opts...)
}

func defaultDBPath() string {
	if path := os.Getenv("HARVEST_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "modharvest.db"
	}
	dir := filepath.Join(home, ".modharvest")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "modharvest.db")
}
