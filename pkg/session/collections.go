package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/entrhq/pagepilot/pkg/types"
)

// MaxActivities bounds the activity log of each user.
const MaxActivities = 100

// Per-user collections live under data:<userId>:<collection>.
const (
	collSummaries = "summaries"
	collLeads     = "leads"
	collMonitors  = "monitors"
	collActivity  = "activity"
)

func userDataPrefix(userID string) string {
	return "data:" + userID + ":"
}

func userKey(userID, collection string) string {
	return userDataPrefix(userID) + collection
}

// SaveSummary stores summary at the front of the user's summaries.
func (s *Store) SaveSummary(ctx context.Context, summary types.Summary) (*types.Summary, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	summary.ID = uuid.New().String()
	summary.CreatedAt = s.now()

	err = updateList(ctx, s.kv, userKey(user.ID, collSummaries), func(items []types.Summary) ([]types.Summary, error) {
		return prepend(items, summary), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}
	return &summary, nil
}

// GetSummaries returns the newest summaries first.
func (s *Store) GetSummaries(ctx context.Context, limit int) ([]types.Summary, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return readList[types.Summary](ctx, s.kv, userKey(user.ID, collSummaries), limit)
}

// SaveLeads stores leads at the front of the user's leads, keeping their
// order. Leads without a source get source; all are stored unverified.
func (s *Store) SaveLeads(ctx context.Context, leads []types.Lead, source string) ([]types.Lead, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	saved := make([]types.Lead, 0, len(leads))
	for _, l := range leads {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if l.Source == "" {
			l.Source = source
		}
		if l.ExtractedAt.IsZero() {
			l.ExtractedAt = now
		}
		l.Verified = false
		saved = append(saved, l)
	}

	err = updateList(ctx, s.kv, userKey(user.ID, collLeads), func(items []types.Lead) ([]types.Lead, error) {
		return append(append(make([]types.Lead, 0, len(saved)+len(items)), saved...), items...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save leads: %w", err)
	}
	return saved, nil
}

// GetLeads returns the newest leads first.
func (s *Store) GetLeads(ctx context.Context, limit int) ([]types.Lead, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return readList[types.Lead](ctx, s.kv, userKey(user.ID, collLeads), limit)
}

// SavePriceMonitor stores monitor at the front of the user's monitors.
func (s *Store) SavePriceMonitor(ctx context.Context, monitor types.PriceMonitor) (*types.PriceMonitor, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	monitor.ID = uuid.New().String()
	monitor.CreatedAt = now
	if monitor.LastChecked.IsZero() {
		monitor.LastChecked = now
	}

	err = updateList(ctx, s.kv, userKey(user.ID, collMonitors), func(items []types.PriceMonitor) ([]types.PriceMonitor, error) {
		return prepend(items, monitor), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save price monitor: %w", err)
	}
	return &monitor, nil
}

// GetPriceMonitors returns every monitor, newest first.
func (s *Store) GetPriceMonitors(ctx context.Context) ([]types.PriceMonitor, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return readList[types.PriceMonitor](ctx, s.kv, userKey(user.ID, collMonitors), 0)
}

// LogActivity records an activity. Only the newest MaxActivities entries
// are kept.
func (s *Store) LogActivity(ctx context.Context, action string, details map[string]any) (*types.Activity, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	activity := types.Activity{
		ID:        uuid.New().String(),
		Action:    action,
		Details:   details,
		Timestamp: s.now(),
	}

	err = updateList(ctx, s.kv, userKey(user.ID, collActivity), func(items []types.Activity) ([]types.Activity, error) {
		items = prepend(items, activity)
		if len(items) > MaxActivities {
			items = items[:MaxActivities]
		}
		return items, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to log activity: %w", err)
	}
	return &activity, nil
}

// GetHistory returns the newest activities first.
func (s *Store) GetHistory(ctx context.Context, limit int) ([]types.Activity, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return readList[types.Activity](ctx, s.kv, userKey(user.ID, collActivity), limit)
}

// Stats summarizes the signed-in user's collections.
func (s *Store) Stats(ctx context.Context) (*types.UserStats, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	summaries, err := readList[types.Summary](ctx, s.kv, userKey(user.ID, collSummaries), 0)
	if err != nil {
		return nil, err
	}
	leads, err := readList[types.Lead](ctx, s.kv, userKey(user.ID, collLeads), 0)
	if err != nil {
		return nil, err
	}
	monitors, err := readList[types.PriceMonitor](ctx, s.kv, userKey(user.ID, collMonitors), 0)
	if err != nil {
		return nil, err
	}
	activities, err := readList[types.Activity](ctx, s.kv, userKey(user.ID, collActivity), 0)
	if err != nil {
		return nil, err
	}

	stats := &types.UserStats{
		Summaries:     len(summaries),
		Leads:         len(leads),
		PriceMonitors: len(monitors),
		Activities:    len(activities),
		Plan:          user.Plan,
		MemberSince:   user.CreatedAt,
	}
	if len(activities) > 0 {
		last := activities[0].Timestamp
		stats.LastActivity = &last
	}
	return stats, nil
}

// ClearAllData deletes the signed-in user's collections. The account and
// the session are kept.
func (s *Store) ClearAllData(ctx context.Context) error {
	user, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	keys, err := s.kv.Keys(ctx, userDataPrefix(user.ID))
	if err != nil {
		return fmt.Errorf("failed to list data of user %s: %w", user.ID, err)
	}
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}

	s.logger.Infof("cleared data of user %s", user.ID)
	return nil
}

func prepend[T any](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}
