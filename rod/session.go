package rod

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fwojciec/modharvest"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Ensure Session implements modharvest.Session at compile time.
var _ modharvest.Session = (*Session)(nil)

// Session drives a single browser page. It is not safe for concurrent use,
// except for Close which may be called from any goroutine.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page

	pageTimeout      time.Duration
	contentSelectors []string
	login            Login
	tree             Tree

	closeOnce sync.Once
	closeErr  error
}

// Authenticate fills in and submits the sign-in form. It is a no-op when no
// login URL is configured. Returns EINVALID if the form is still present
// after submitting.
func (s *Session) Authenticate(ctx context.Context, creds modharvest.Credentials) error {
	if s.login.URL == "" {
		return nil
	}

	page, cancel := s.bounded(ctx)
	defer cancel()

	if err := page.Navigate(s.login.URL); err != nil {
		return s.mapError(ctx, "opening login page", err)
	}
	if err := page.WaitLoad(); err != nil {
		return s.mapError(ctx, "loading login page", err)
	}

	user, err := page.Element(s.login.UsernameSelector)
	if err != nil {
		return s.mapError(ctx, "finding username input", err)
	}
	if err := user.Input(creds.Username); err != nil {
		return s.mapError(ctx, "typing username", err)
	}
	pass, err := page.Element(s.login.PasswordSelector)
	if err != nil {
		return s.mapError(ctx, "finding password input", err)
	}
	if err := pass.Input(creds.Password); err != nil {
		return s.mapError(ctx, "typing password", err)
	}
	submit, err := page.Element(s.login.SubmitSelector)
	if err != nil {
		return s.mapError(ctx, "finding submit button", err)
	}

	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return s.mapError(ctx, "submitting login form", err)
	}
	wait()

	still, _, err := page.Has(s.login.PasswordSelector)
	if err != nil {
		return s.mapError(ctx, "checking login result", err)
	}
	if still {
		return modharvest.Errorf(modharvest.EINVALID, "authentication rejected: login form still present")
	}
	return nil
}

// DiscoverTree reads the tree payload element and decodes its sections.
func (s *Session) DiscoverTree(ctx context.Context) ([]*modharvest.Section, error) {
	page, cancel := s.bounded(ctx)
	defer cancel()

	if s.tree.URL != "" {
		if err := page.Navigate(s.tree.URL); err != nil {
			return nil, s.mapError(ctx, "opening tree page", err)
		}
		if err := page.WaitLoad(); err != nil {
			return nil, s.mapError(ctx, "loading tree page", err)
		}
	}

	el, err := page.Element(s.tree.Selector)
	if err != nil {
		if mapped := s.mapError(ctx, "finding tree payload", err); modharvest.ErrorCode(mapped) != modharvest.ETIMEOUT {
			return nil, mapped
		}
		return nil, modharvest.Errorf(modharvest.ENOTFOUND, "tree payload %q not found", s.tree.Selector)
	}
	text, err := el.Property("textContent")
	if err != nil {
		return nil, s.mapError(ctx, "reading tree payload", err)
	}

	return modharvest.DecodeTree([]byte(text.Str()), s.tree.Path)
}

// Navigate loads locator and waits for the first content container to
// appear, then returns the rendered HTML.
func (s *Session) Navigate(ctx context.Context, locator string) (string, error) {
	page, cancel := s.bounded(ctx)
	defer cancel()

	if err := page.Navigate(locator); err != nil {
		return "", s.mapError(ctx, "navigating to "+locator, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", s.mapError(ctx, "loading "+locator, err)
	}

	if len(s.contentSelectors) > 0 {
		race := page.Race()
		for _, sel := range s.contentSelectors {
			race = race.Element(sel)
		}
		if _, err := race.Do(); err != nil {
			return "", s.mapError(ctx, "waiting for content on "+locator, err)
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", s.mapError(ctx, "reading "+locator, err)
	}
	return html, nil
}

// Close closes the page and the browser and kills a launched process.
// Close is safe to call multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.page.Close()
		s.closeErr = s.browser.Close()
		if s.launcher != nil {
			s.launcher.Kill()
		}
	})
	return s.closeErr
}

// LauncherPID returns the PID of the launched browser process, or 0 when
// the session connected to an existing browser.
func (s *Session) LauncherPID() int {
	if s.launcher == nil {
		return 0
	}
	return s.launcher.PID()
}

// bounded returns the session page bound to ctx with the page timeout.
func (s *Session) bounded(ctx context.Context) (*rod.Page, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(ctx, s.pageTimeout)
	return s.page.Context(tctx), cancel
}

// mapError translates rod failures into application errors. The page
// timeout becomes ETIMEOUT and a torn-down session becomes EINTERRUPTED.
// Cancellation of the caller's context is returned unchanged.
func (s *Session) mapError(ctx context.Context, op string, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		return modharvest.Errorf(modharvest.ETIMEOUT, "%s: no response within %s", op, s.pageTimeout)
	case modharvest.IsDetachedError(err):
		return modharvest.Errorf(modharvest.EINTERRUPTED, "%s: %v", op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
