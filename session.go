package modharvest

import "context"

// Credentials authenticate a session against the source application.
type Credentials struct {
	Username string
	Password string
}

// Authenticator signs a session in to the source application.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) error
}

// TreeDiscoverer reads the content tree once per run.
type TreeDiscoverer interface {
	// DiscoverTree returns the ordered sections of the content tree.
	// Returns ENOTFOUND if no tree payload can be found.
	DiscoverTree(ctx context.Context) ([]*Section, error)
}

// Navigator brings a node's content container into a queryable state.
type Navigator interface {
	// Navigate loads the locator and waits, for a bounded time, until a
	// content container is present. It returns the rendered HTML.
	// Returns ETIMEOUT when the wait expires and EINTERRUPTED when the
	// session was torn down underneath the call.
	Navigate(ctx context.Context, locator string) (html string, err error)
}

// Session is an exclusively owned browser session.
type Session interface {
	Authenticator
	TreeDiscoverer
	Navigator

	// Close releases the session's external resources.
	// Close must be safe to call more than once.
	Close() error
}

// Browser acquires sessions.
type Browser interface {
	// Open launches or connects to a browser and returns a new session.
	// The caller owns the session and must Close it.
	Open(ctx context.Context) (Session, error)
}
