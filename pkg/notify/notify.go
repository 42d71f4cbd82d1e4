// Package notify delivers page events to whoever is listening: the native
// messaging host, the CLI watch loop, or tests.
package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/entrhq/pagepilot/pkg/logging"
	"github.com/entrhq/pagepilot/pkg/types"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// ErrClosed is returned when notifying through a closed broadcaster.
var ErrClosed = errors.New("notify: broadcaster closed")

// Notifier publishes events.
type Notifier interface {
	Notify(ctx context.Context, event *types.Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event *types.Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event *types.Event) error {
	return f(ctx, event)
}

// Broadcaster fans events out to every subscriber. Delivery is non-blocking:
// a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan *types.Event
	closed      bool
	logger      *logging.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger to discard logs.
func NewBroadcaster(logger *logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan *types.Event),
		logger:      logger,
	}
}

// Subscribe registers a subscriber and returns its channel and id. The
// subscription is removed when ctx is cancelled. Subscribing to a closed
// broadcaster returns an already closed channel.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan *types.Event, string) {
	subID := uuid.New().String()
	ch := make(chan *types.Event, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debugf("subscriber added: %s", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Notify sends event to all subscribers.
func (b *Broadcaster) Notify(_ context.Context, event *types.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Debugf("dropped %s event for slow subscriber %s", event.Type, id)
		}
	}
	return nil
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debugf("subscriber removed: %s", subID)
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel. Later Notify calls return ErrClosed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}

	b.logger.Debugf("broadcaster closed")
}
