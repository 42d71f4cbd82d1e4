// Package dispatcher maps named actions to page inspection, session and
// storage operations, and wraps every outcome in the uniform response
// envelope. Nothing escapes Dispatch: errors and panics become failed
// responses.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/entrhq/pagepilot/pkg/classifier"
	"github.com/entrhq/pagepilot/pkg/logging"
	"github.com/entrhq/pagepilot/pkg/page"
	"github.com/entrhq/pagepilot/pkg/types"
)

// ErrUnknownAction is returned for actions without a handler.
var ErrUnknownAction = errors.New("Unknown action")

// HandlerFunc executes one action. data is the raw request payload and may
// be empty.
type HandlerFunc func(ctx context.Context, data json.RawMessage) (any, error)

// SessionStore is the subset of the session store the dispatcher needs.
type SessionStore interface {
	SignUp(ctx context.Context, email, password, name string) (*types.User, error)
	SignIn(ctx context.Context, email, password string) (*types.User, error)
	SignOut(ctx context.Context) error
	CurrentUser(ctx context.Context) (*types.User, error)

	SaveSummary(ctx context.Context, summary types.Summary) (*types.Summary, error)
	GetSummaries(ctx context.Context, limit int) ([]types.Summary, error)
	SaveLeads(ctx context.Context, leads []types.Lead, source string) ([]types.Lead, error)
	GetLeads(ctx context.Context, limit int) ([]types.Lead, error)
	SavePriceMonitor(ctx context.Context, monitor types.PriceMonitor) (*types.PriceMonitor, error)
	GetPriceMonitors(ctx context.Context) ([]types.PriceMonitor, error)
	LogActivity(ctx context.Context, action string, details map[string]any) (*types.Activity, error)
	GetHistory(ctx context.Context, limit int) ([]types.Activity, error)
	Stats(ctx context.Context) (*types.UserStats, error)
	ClearAllData(ctx context.Context) error
}

// Dispatcher routes requests to handlers.
type Dispatcher struct {
	sessions SessionStore
	resolver page.Resolver
	watcher  *classifier.Watcher
	logger   *logging.Logger

	handlers map[string]HandlerFunc
}

// New creates a dispatcher with every built-in action registered. A nil
// resolver accepts HTML snapshots only; a nil watcher gets a default one
// that publishes nowhere.
func New(sessions SessionStore, resolver page.Resolver, watcher *classifier.Watcher, logger *logging.Logger) *Dispatcher {
	if resolver == nil {
		resolver = page.SnapshotResolver{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if watcher == nil {
		watcher = classifier.NewWatcher(0, nil, logger)
	}

	d := &Dispatcher{
		sessions: sessions,
		resolver: resolver,
		watcher:  watcher,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}
	d.registerSessionActions()
	d.registerPageActions()
	return d
}

// Register adds or replaces the handler for action.
func (d *Dispatcher) Register(action string, h HandlerFunc) {
	d.handlers[action] = h
}

// Actions lists the registered action names in sorted order.
func (d *Dispatcher) Actions() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler for req.Action and returns the response
// envelope. The request id is echoed back.
func (d *Dispatcher) Dispatch(ctx context.Context, req types.Request) (resp types.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("action %s panicked: %v", req.Action, r)
			resp = types.Fail(fmt.Sprintf("internal error: %v", r))
		}
		resp.ID = req.ID
	}()

	h, ok := d.handlers[req.Action]
	if !ok {
		d.logger.Warnf("unknown action %q", req.Action)
		return types.Fail(ErrUnknownAction.Error())
	}

	data, err := h(ctx, req.Data)
	if err != nil {
		d.logger.Debugf("action %s failed: %v", req.Action, err)
		return types.Fail(err.Error())
	}
	return types.OK(data)
}

// decode unmarshals data into v. Empty data leaves v at its zero value.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid request data: %w", err)
	}
	return nil
}

// handle adapts a typed handler to HandlerFunc.
func handle[P any](fn func(ctx context.Context, params P) (any, error)) HandlerFunc {
	return func(ctx context.Context, data json.RawMessage) (any, error) {
		var params P
		if err := decode(data, &params); err != nil {
			return nil, err
		}
		return fn(ctx, params)
	}
}
