package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/pagepilot/pkg/page"
)

// Resolver resolves page refs naming a session to the live page and all
// other refs through page.SnapshotResolver.
type Resolver struct {
	manager  *SessionManager
	fallback page.Resolver
}

// NewResolver creates a resolver backed by m.
func NewResolver(m *SessionManager) *Resolver {
	return &Resolver{manager: m, fallback: page.SnapshotResolver{}}
}

// Resolve implements page.Resolver.
func (r *Resolver) Resolve(ctx context.Context, ref page.Ref) (page.Page, error) {
	if ref.Session == "" {
		return r.fallback.Resolve(ctx, ref)
	}

	s, err := r.manager.GetSession(ref.Session)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %s", page.ErrUnknownSession, ref.Session)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
