package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNoElement is returned when a selector matches nothing.
	ErrNoElement = errors.New("page: no element matches selector")

	// ErrNoSnapshot is returned when a page reference carries neither HTML nor a session.
	ErrNoSnapshot = errors.New("page: page snapshot is required")

	// ErrUnknownSession is returned when a live session is requested but none is available.
	ErrUnknownSession = errors.New("page: browser session not available")
)

// Page is a page the core can inspect and fill, whatever hosts it.
type Page interface {
	// Snapshot returns the current state of the page.
	Snapshot(ctx context.Context) (*Document, error)

	// SetFieldValue sets the value of the first element matching selector and
	// notifies the page with input and change events.
	SetFieldValue(ctx context.Context, selector, value string) error
}

// Ref identifies a page in a request: either an HTML snapshot or the name of
// a live browser session.
type Ref struct {
	Session string `json:"session,omitempty"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// Resolver turns a page reference into a Page.
type Resolver interface {
	Resolve(ctx context.Context, ref Ref) (Page, error)
}

// SnapshotResolver resolves references carrying an HTML snapshot.
type SnapshotResolver struct{}

// Resolve parses the snapshot into a Static page.
func (SnapshotResolver) Resolve(_ context.Context, ref Ref) (Page, error) {
	if ref.Session != "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, ref.Session)
	}
	if strings.TrimSpace(ref.HTML) == "" {
		return nil, ErrNoSnapshot
	}
	doc, err := Parse(ref.URL, ref.Title, ref.HTML)
	if err != nil {
		return nil, err
	}
	return NewStatic(doc), nil
}

// FieldEvent records a DOM event dispatched while filling a static page.
type FieldEvent struct {
	Selector string `json:"selector"`
	Type     string `json:"type"`
}

// Static is a Page over a parsed snapshot. Field values are written into the
// snapshot so the updated HTML can be sent back to the caller.
type Static struct {
	mu     sync.Mutex
	doc    *Document
	events []FieldEvent
}

// NewStatic wraps a parsed document.
func NewStatic(doc *Document) *Static {
	return &Static{doc: doc}
}

// Snapshot returns the underlying document.
func (s *Static) Snapshot(_ context.Context) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, nil
}

// SetFieldValue writes value into the matching input, textarea or select.
func (s *Static) SetFieldValue(_ context.Context, selector, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.doc.Find(selector).First()
	if sel.Length() == 0 {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}

	switch goquery.NodeName(sel) {
	case "textarea":
		sel.SetText(value)
	case "select":
		sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
			optValue, ok := opt.Attr("value")
			if !ok {
				optValue = strings.TrimSpace(opt.Text())
			}
			if optValue == value {
				opt.SetAttr("selected", "selected")
			} else {
				opt.RemoveAttr("selected")
			}
		})
	default:
		sel.SetAttr("value", value)
	}

	s.events = append(s.events,
		FieldEvent{Selector: selector, Type: "input"},
		FieldEvent{Selector: selector, Type: "change"},
	)
	return nil
}

// Events returns the events dispatched so far.
func (s *Static) Events() []FieldEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FieldEvent, len(s.events))
	copy(out, s.events)
	return out
}
