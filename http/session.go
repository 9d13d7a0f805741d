package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/modharvest"
)

// Ensure Session implements modharvest.Session at compile time.
var _ modharvest.Session = (*Session)(nil)

// errClosed is returned by every call after Close.
var errClosed = modharvest.Errorf(modharvest.EINTERRUPTED, "session closed")

// Session carries the cookies of one signed-in visitor.
type Session struct {
	client *http.Client
	login  Login
	tree   Tree

	// last is the final URL of the most recent successful request.
	last   string
	closed atomic.Bool
}

// Authenticate submits the form containing the password input, keeping
// its hidden fields. It is a no-op when no login URL is configured.
// Returns EINVALID if the response still shows a password input.
func (s *Session) Authenticate(ctx context.Context, creds modharvest.Credentials) error {
	if s.login.URL == "" {
		return nil
	}

	page, err := s.get(ctx, "opening login page", s.login.URL)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.body))
	if err != nil {
		return fmt.Errorf("parsing login page: %w", err)
	}

	password := doc.Find(s.login.PasswordSelector).First()
	if password.Length() == 0 {
		return modharvest.Errorf(modharvest.EINVALID, "login form not found at %s", s.login.URL)
	}
	form := password.Closest("form")
	values := formValues(form)
	if name := form.Find(s.login.UsernameSelector).First().AttrOr("name", ""); name != "" {
		values.Set(name, creds.Username)
	}
	if name := password.AttrOr("name", ""); name != "" {
		values.Set(name, creds.Password)
	}

	action, err := page.url.Parse(form.AttrOr("action", ""))
	if err != nil {
		return modharvest.Errorf(modharvest.EINVALID, "invalid form action: %v", err)
	}
	resp, err := s.do(ctx, "submitting login form", http.MethodPost, action.String(), strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}

	after, err := goquery.NewDocumentFromReader(strings.NewReader(resp.body))
	if err != nil {
		return fmt.Errorf("parsing login response: %w", err)
	}
	if after.Find(s.login.PasswordSelector).Length() > 0 {
		return modharvest.Errorf(modharvest.EINVALID, "authentication rejected")
	}
	return nil
}

// DiscoverTree fetches the tree page and decodes the text of the payload
// element. Returns ENOTFOUND if the element is missing.
func (s *Session) DiscoverTree(ctx context.Context) ([]*modharvest.Section, error) {
	target := s.tree.URL
	if target == "" {
		target = s.last
	}
	if target == "" {
		return nil, modharvest.Errorf(modharvest.EINVALID, "no tree URL configured")
	}

	page, err := s.get(ctx, "opening tree page", target)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.body))
	if err != nil {
		return nil, fmt.Errorf("parsing tree page: %w", err)
	}
	el := doc.Find(s.tree.Selector).First()
	if el.Length() == 0 {
		return nil, modharvest.Errorf(modharvest.ENOTFOUND, "tree payload %q not found", s.tree.Selector)
	}
	return modharvest.DecodeTree([]byte(el.Text()), s.tree.Path)
}

// Navigate returns the HTML served at locator.
func (s *Session) Navigate(ctx context.Context, locator string) (string, error) {
	page, err := s.get(ctx, "navigating to "+locator, locator)
	if err != nil {
		return "", err
	}
	return page.body, nil
}

// Close drops idle connections. Close is safe to call multiple times.
func (s *Session) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.client.CloseIdleConnections()
	}
	return nil
}

type response struct {
	url  *url.URL
	body string
}

func (s *Session) get(ctx context.Context, op, target string) (*response, error) {
	return s.do(ctx, op, http.MethodGet, target, nil)
}

func (s *Session) do(ctx context.Context, op, method, target string, body io.Reader) (*response, error) {
	if s.closed.Load() {
		return nil, errClosed
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, modharvest.Errorf(modharvest.EINVALID, "%s: %v", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, mapError(ctx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d", op, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mapError(ctx, op, err)
	}

	s.last = resp.Request.URL.String()
	return &response{url: resp.Request.URL, body: string(data)}, nil
}

// formValues collects the submittable fields of form.
func formValues(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input[name]").Each(func(_ int, in *goquery.Selection) {
		switch strings.ToLower(in.AttrOr("type", "text")) {
		case "submit", "button", "image", "file":
			return
		case "checkbox", "radio":
			if _, checked := in.Attr("checked"); !checked {
				return
			}
		}
		name, _ := in.Attr("name")
		values.Set(name, in.AttrOr("value", ""))
	})
	return values
}

// mapError reports context errors as themselves and client timeouts as
// ETIMEOUT.
func mapError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return modharvest.Errorf(modharvest.ETIMEOUT, "%s: %v", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
