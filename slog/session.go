// Package slog provides logging decorators for the harvest collaborators.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/modharvest"
)

// Ensure the decorators implement their interfaces.
var (
	_ modharvest.Browser = (*LoggingBrowser)(nil)
	_ modharvest.Session = (*LoggingSession)(nil)
)

// LoggingBrowser wraps a Browser so that every session it opens is logged.
type LoggingBrowser struct {
	next   modharvest.Browser
	logger *slog.Logger
}

// NewLoggingBrowser creates a new LoggingBrowser.
func NewLoggingBrowser(next modharvest.Browser, logger *slog.Logger) *LoggingBrowser {
	return &LoggingBrowser{next: next, logger: logger}
}

// Open logs the launch and wraps the returned session.
func (b *LoggingBrowser) Open(ctx context.Context) (sess modharvest.Session, err error) {
	defer func(begin time.Time) {
		b.logger.Info("browser open",
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	sess, err = b.next.Open(ctx)
	if err != nil {
		return nil, err
	}
	return NewLoggingSession(sess, b.logger), nil
}

// LoggingSession wraps a Session with logging.
type LoggingSession struct {
	next   modharvest.Session
	logger *slog.Logger
}

// NewLoggingSession creates a new LoggingSession.
func NewLoggingSession(next modharvest.Session, logger *slog.Logger) *LoggingSession {
	return &LoggingSession{next: next, logger: logger}
}

// Authenticate logs the username, never the password.
func (s *LoggingSession) Authenticate(ctx context.Context, creds modharvest.Credentials) (err error) {
	defer func(begin time.Time) {
		s.logger.Info("authenticate",
			"username", creds.Username,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Authenticate(ctx, creds)
}

// DiscoverTree logs the size of the discovered tree.
func (s *LoggingSession) DiscoverTree(ctx context.Context) (sections []*modharvest.Section, err error) {
	defer func(begin time.Time) {
		s.logger.Info("tree discovery",
			"sections", len(sections),
			"modules", modharvest.CountModules(sections),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.DiscoverTree(ctx)
}

// Navigate logs the locator and the size of the rendered page.
func (s *LoggingSession) Navigate(ctx context.Context, locator string) (html string, err error) {
	defer func(begin time.Time) {
		s.logger.Info("navigate",
			"locator", locator,
			"bytes", len(html),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Navigate(ctx, locator)
}

// Close logs the release of the session.
func (s *LoggingSession) Close() (err error) {
	defer func() {
		s.logger.Debug("session close", "err", err)
	}()
	return s.next.Close()
}
