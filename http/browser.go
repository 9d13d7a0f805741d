// Package http implements the browser collaborators with plain HTTP
// requests, for source applications that render module pages on the
// server and do not require JavaScript.
package http

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/fwojciec/modharvest"
)

// DefaultTimeout bounds each request. Kept consistent with
// rod.DefaultPageTimeout.
const DefaultTimeout = 30 * time.Second

// Defaults for form and payload lookup.
const (
	DefaultTreeSelector  = "script#__NEXT_DATA__"
	DefaultUsernameInput = `input[type="email"], input[name="username"], input[name="email"]`
	DefaultPasswordInput = `input[type="password"]`
)

// Ensure Browser implements modharvest.Browser at compile time.
var _ modharvest.Browser = (*Browser)(nil)

// Login describes the source application's sign-in form.
type Login struct {
	URL              string
	UsernameSelector string
	PasswordSelector string
}

// Tree describes where the content tree payload lives.
type Tree struct {
	// URL is fetched for the payload. Empty means the last page the
	// session loaded.
	URL      string
	Selector string
	Path     string
}

// Browser opens cookie-backed HTTP sessions.
type Browser struct {
	timeout   time.Duration
	transport http.RoundTripper
	login     Login
	tree      Tree
}

// Option configures a Browser.
type Option func(*Browser)

// WithTimeout sets the timeout for each request.
// Defaults to DefaultTimeout if not specified.
func WithTimeout(d time.Duration) Option {
	return func(b *Browser) {
		b.timeout = d
	}
}

// WithTransport replaces the default transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(b *Browser) {
		b.transport = rt
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

// NewBrowser creates an HTTP Browser.
func NewBrowser(opts ...Option) *Browser {
	b := &Browser{
		timeout: DefaultTimeout,
		tree:    Tree{Selector: DefaultTreeSelector},
		login:   Login{UsernameSelector: DefaultUsernameInput, PasswordSelector: DefaultPasswordInput},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open returns a session with an empty cookie jar.
func (b *Browser) Open(ctx context.Context) (modharvest.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Session{
		client: &http.Client{
			Timeout:   b.timeout,
			Jar:       jar,
			Transport: b.transport,
		},
		login: b.login,
		tree:  b.tree,
	}, nil
}
