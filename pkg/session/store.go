// Package session owns everything PagePilot persists: local accounts, the
// active session, and the per-user collections of summaries, leads, price
// monitors and activity.
//
// A Store is constructed once per process and shared by reference. At most
// one session is active per Store. Expiry is checked lazily on every read.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/pagepilot/pkg/logging"
	"github.com/entrhq/pagepilot/pkg/notify"
	"github.com/entrhq/pagepilot/pkg/storage"
	"github.com/entrhq/pagepilot/pkg/types"
)

// DefaultSessionTTL is how long a session stays valid after sign-in.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Storage keys.
const (
	keyUsers          = "users"
	keySession        = "session"
	keySigningKey     = "signing_key"
	keyCredentialPref = "credential:"
)

// Options configures a Store. Zero values select defaults.
type Options struct {
	// SessionTTL is the lifetime of a session. Defaults to DefaultSessionTTL.
	SessionTTL time.Duration

	// TokenSecret signs session tokens. When empty a random key is
	// generated once and persisted in the store.
	TokenSecret string

	// Notifier receives SESSION_CHANGED events. Optional.
	Notifier notify.Notifier

	Logger *logging.Logger

	// Now overrides the clock.
	Now func() time.Time
}

// Store implements authentication and per-user persistence on top of a
// storage.Store.
type Store struct {
	kv       storage.Store
	ttl      time.Duration
	tokens   *tokenIssuer
	notifier notify.Notifier
	logger   *logging.Logger
	now      func() time.Time

	mu      sync.Mutex
	loaded  bool
	session *types.Session
	user    *types.User
}

// New creates a session store backed by kv.
func New(ctx context.Context, kv storage.Store, opts Options) (*Store, error) {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	secret := []byte(opts.TokenSecret)
	if len(secret) == 0 {
		key, err := loadSigningKey(ctx, kv)
		if err != nil {
			return nil, err
		}
		secret = key
	}

	return &Store{
		kv:       kv,
		ttl:      opts.SessionTTL,
		tokens:   &tokenIssuer{secret: secret, now: opts.Now},
		notifier: opts.Notifier,
		logger:   opts.Logger,
		now:      opts.Now,
	}, nil
}

// getJSON decodes the value under key into v. A missing key leaves v
// untouched and reports false.
func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// updateList atomically rewrites the JSON list stored under key.
func updateList[T any](ctx context.Context, kv storage.Store, key string, fn func([]T) ([]T, error)) error {
	return kv.Update(ctx, key, func(current []byte) ([]byte, error) {
		var items []T
		if current != nil {
			if err := json.Unmarshal(current, &items); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", key, err)
			}
		}
		next, err := fn(items)
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []T{}
		}
		return json.Marshal(next)
	})
}

// readList returns up to limit items of the list under key. A non-positive
// limit returns everything.
func readList[T any](ctx context.Context, kv storage.Store, key string, limit int) ([]T, error) {
	items := make([]T, 0)
	raw, err := kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	if items == nil {
		items = make([]T, 0)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) publish(ctx context.Context, user *types.User) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, types.NewSessionChangedEvent(user)); err != nil {
		s.logger.Warnf("failed to publish session change: %v", err)
	}
}
