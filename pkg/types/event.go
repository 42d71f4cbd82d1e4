package types

import "time"

// EventType defines the type of unsolicited event pushed to the extension.
type EventType string

const (
	EventTypePageContextAnalyzed EventType = "PAGE_CONTEXT_ANALYZED" // EventTypePageContextAnalyzed indicates the classifier finished (re-)analysing a page.
	EventTypeSessionChanged      EventType = "SESSION_CHANGED"       // EventTypeSessionChanged indicates a sign-in, sign-up or sign-out happened.
)

// Event is a message pushed to listeners without a matching request.
type Event struct {
	// Type indicates the kind of event.
	Type EventType `json:"type"`

	// Context is the analysed page context (for PAGE_CONTEXT_ANALYZED).
	Context *PageContext `json:"context,omitempty"`

	// Visibility is the quick-action visibility derived from Context.
	Visibility Visibility `json:"visibility,omitempty"`

	// User is the signed-in user after a session change, nil when signed out.
	User *User `json:"user,omitempty"`

	// Timestamp is when the event was produced.
	Timestamp time.Time `json:"timestamp"`
}

// NewPageContextEvent creates a page context analysed event.
// The context is copied so the event never aliases the caller's value.
func NewPageContextEvent(ctx PageContext, visibility Visibility) *Event {
	vis := make(Visibility, len(visibility))
	for k, v := range visibility {
		vis[k] = v
	}
	return &Event{
		Type:       EventTypePageContextAnalyzed,
		Context:    &ctx,
		Visibility: vis,
		Timestamp:  time.Now(),
	}
}

// NewSessionChangedEvent creates a session changed event. A nil user means signed out.
func NewSessionChangedEvent(user *User) *Event {
	return &Event{
		Type:      EventTypeSessionChanged,
		User:      user,
		Timestamp: time.Now(),
	}
}
