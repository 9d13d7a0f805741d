// Package rod implements the browser collaborators on top of go-rod.
package rod

import (
	"context"
	"fmt"
	"time"

	"github.com/fwojciec/modharvest"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Ensure Browser implements modharvest.Browser at compile time.
var _ modharvest.Browser = (*Browser)(nil)

// Defaults for session behavior.
const (
	DefaultPageTimeout   = 30 * time.Second
	DefaultTreeSelector  = "script#__NEXT_DATA__"
	DefaultUsernameInput = `input[type="email"], input[name="username"], input[name="email"]`
	DefaultPasswordInput = `input[type="password"]`
	DefaultSubmitButton  = `button[type="submit"], input[type="submit"]`
)

// DefaultContentSelectors are the containers whose appearance marks a
// module page as ready.
var DefaultContentSelectors = []string{
	".ql-editor",
	".ProseMirror",
	".fr-view",
	"[data-module-content]",
	"article",
	"main",
}

// Login describes the source application's sign-in form.
type Login struct {
	URL              string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
}

// Tree describes where the content tree payload lives.
type Tree struct {
	// URL is loaded before reading the payload. Empty means the page the
	// session is on after authentication.
	URL string

	// Selector locates the element whose text is the JSON payload.
	Selector string

	// Path is the dotted key path to the sections inside the payload.
	Path string
}

// Browser launches Chrome sessions, or connects to a running browser when
// a control URL is configured. Each Open creates an independent session.
type Browser struct {
	headless         bool
	bin              string
	controlURL       string
	pageTimeout      time.Duration
	contentSelectors []string
	login            Login
	tree             Tree
}

// Option configures a Browser.
type Option func(*Browser)

// WithHeadless toggles headless mode. Defaults to true.
func WithHeadless(headless bool) Option {
	return func(b *Browser) {
		b.headless = headless
	}
}

// WithBin sets the browser executable. By default rod finds or downloads one.
func WithBin(path string) Option {
	return func(b *Browser) {
		b.bin = path
	}
}

// WithControlURL connects to an existing browser instead of launching one.
func WithControlURL(u string) Option {
	return func(b *Browser) {
		b.controlURL = u
	}
}

// WithPageTimeout bounds each navigation. Defaults to 30s.
func WithPageTimeout(d time.Duration) Option {
	return func(b *Browser) {
		b.pageTimeout = d
	}
}

// WithContentSelectors sets the containers waited for after navigation.
func WithContentSelectors(selectors ...string) Option {
	return func(b *Browser) {
		b.contentSelectors = selectors
	}
}

// WithLogin configures the sign-in form. Empty selectors keep their defaults.
func WithLogin(l Login) Option {
	return func(b *Browser) {
		if l.UsernameSelector == "" {
			l.UsernameSelector = DefaultUsernameInput
		}
		if l.PasswordSelector == "" {
			l.PasswordSelector = DefaultPasswordInput
		}
		if l.SubmitSelector == "" {
			l.SubmitSelector = DefaultSubmitButton
		}
		b.login = l
	}
}

// WithTree configures tree discovery. An empty selector keeps the default.
func WithTree(t Tree) Option {
	return func(b *Browser) {
		if t.Selector == "" {
			t.Selector = DefaultTreeSelector
		}
		b.tree = t
	}
}

// NewBrowser creates a Browser. No process is started until Open.
func NewBrowser(opts ...Option) *Browser {
	b := &Browser{
		headless:         true,
		pageTimeout:      DefaultPageTimeout,
		contentSelectors: DefaultContentSelectors,
		login: Login{
			UsernameSelector: DefaultUsernameInput,
			PasswordSelector: DefaultPasswordInput,
			SubmitSelector:   DefaultSubmitButton,
		},
		tree: Tree{Selector: DefaultTreeSelector},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open starts a browser with stability flags, or connects to the configured
// one, and opens the page the session drives. The returned session owns the
// browser process and must be closed.
func (b *Browser) Open(ctx context.Context) (modharvest.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var lnchr *launcher.Launcher
	u := b.controlURL
	if u == "" {
		lnchr = launcher.New().
			Set("disable-background-timer-throttling").
			Set("disable-backgrounding-occluded-windows").
			Set("disable-renderer-backgrounding").
			Set("disable-dev-shm-usage").
			Set("disable-hang-monitor").
			Leakless(true).
			Headless(b.headless)
		if b.bin != "" {
			lnchr = lnchr.Bin(b.bin)
		}

		var err error
		u, err = lnchr.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching browser: %w", err)
		}
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		if lnchr != nil {
			lnchr.Kill()
		}
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		if lnchr != nil {
			lnchr.Kill()
		}
		return nil, fmt.Errorf("opening page: %w", err)
	}

	return &Session{
		browser:          browser,
		launcher:         lnchr,
		page:             page,
		pageTimeout:      b.pageTimeout,
		contentSelectors: b.contentSelectors,
		login:            b.login,
		tree:             b.tree,
	}, nil
}
