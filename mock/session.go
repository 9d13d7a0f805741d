package mock

import (
	"context"

	"github.com/fwojciec/modharvest"
)

// Compile-time interface verification.
var (
	_ modharvest.Browser = (*Browser)(nil)
	_ modharvest.Session = (*Session)(nil)
)

// Browser is a mock implementation of modharvest.Browser.
type Browser struct {
	OpenFn func(ctx context.Context) (modharvest.Session, error)
}

func (b *Browser) Open(ctx context.Context) (modharvest.Session, error) {
	return b.OpenFn(ctx)
}

// Session is a mock implementation of modharvest.Session.
type Session struct {
	AuthenticateFn func(ctx context.Context, creds modharvest.Credentials) error
	DiscoverTreeFn func(ctx context.Context) ([]*modharvest.Section, error)
	NavigateFn     func(ctx context.Context, locator string) (string, error)
	CloseFn        func() error
}

func (s *Session) Authenticate(ctx context.Context, creds modharvest.Credentials) error {
	return s.AuthenticateFn(ctx, creds)
}

func (s *Session) DiscoverTree(ctx context.Context) ([]*modharvest.Section, error) {
	return s.DiscoverTreeFn(ctx)
}

func (s *Session) Navigate(ctx context.Context, locator string) (string, error) {
	return s.NavigateFn(ctx, locator)
}

func (s *Session) Close() error {
	return s.CloseFn()
}
