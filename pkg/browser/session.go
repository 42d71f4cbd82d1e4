package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/pagepilot/pkg/page"
)

// Session is a named Chromium instance with a single page.
type Session struct {
	Name     string
	Headless bool

	Browser playwright.Browser
	Context playwright.BrowserContext
	Page    playwright.Page

	CreatedAt time.Time

	now        func() time.Time
	mu         sync.Mutex
	lastUsedAt time.Time
	currentURL string
	observing  bool
}

var _ page.Page = (*Session)(nil)

func newSession(name string, headless bool, now func() time.Time) *Session {
	t := now()
	return &Session{
		Name:       name,
		Headless:   headless,
		CreatedAt:  t,
		now:        now,
		lastUsedAt: t,
		currentURL: "about:blank",
	}
}

// NavigateOptions configures page navigation.
type NavigateOptions struct {
	// WaitUntil is one of "load", "domcontentloaded", "networkidle", "commit".
	WaitUntil string

	// Timeout overrides the session default when positive.
	Timeout time.Duration
}

// Navigate loads url in the session's page.
func (s *Session) Navigate(ctx context.Context, url string, opts NavigateOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.touch()

	gotoOpts := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		gotoOpts.WaitUntil = &waitUntil
	}
	if opts.Timeout > 0 {
		gotoOpts.Timeout = playwright.Float(float64(opts.Timeout.Milliseconds()))
	}

	if _, err := s.Page.Goto(url, gotoOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}

	s.mu.Lock()
	s.currentURL = s.Page.URL()
	s.mu.Unlock()
	return nil
}

// Snapshot captures the page's current DOM.
func (s *Session) Snapshot(ctx context.Context) (*page.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.touch()

	html, err := s.Page.Content()
	if err != nil {
		return nil, fmt.Errorf("reading page content: %w", err)
	}
	title, err := s.Page.Title()
	if err != nil {
		return nil, fmt.Errorf("reading page title: %w", err)
	}
	return page.Parse(s.Page.URL(), title, html)
}

// setValueScript assigns the value and fires the events frameworks listen for.
const setValueScript = `(el, value) => {
	el.focus();
	el.value = value;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
}`

// SetFieldValue sets the value of the first element matching selector.
func (s *Session) SetFieldValue(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.touch()

	loc := s.Page.Locator(selector)
	n, err := loc.Count()
	if err != nil {
		return fmt.Errorf("selector query failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", page.ErrNoElement, selector)
	}

	if _, err := loc.First().Evaluate(setValueScript, value); err != nil {
		return fmt.Errorf("setting %s: %w", selector, err)
	}
	return nil
}

// Info describes the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		Name:       s.Name,
		CurrentURL: s.currentURL,
		Headless:   s.Headless,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.lastUsedAt,
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsedAt = s.now()
	s.mu.Unlock()
}

func (s *Session) lastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsedAt
}

// close releases the page, context and browser, continuing past failures.
func (s *Session) close() error {
	var errs []error
	if s.Page != nil {
		errs = append(errs, s.Page.Close())
	}
	if s.Context != nil {
		errs = append(errs, s.Context.Close())
	}
	if s.Browser != nil {
		errs = append(errs, s.Browser.Close())
	}
	return errors.Join(errs...)
}
