package dispatcher

import (
	"context"

	"github.com/entrhq/pagepilot/pkg/types"
)

type credentialsParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type limitParams struct {
	Limit int `json:"limit"`
}

type saveLeadsParams struct {
	Leads  []types.Lead `json:"leads"`
	Source string       `json:"source"`
}

type logActivityParams struct {
	Action  string         `json:"action"`
	Details map[string]any `json:"details"`
}

type none struct{}

func (d *Dispatcher) registerSessionActions() {
	d.Register("sign_up", handle(func(ctx context.Context, p credentialsParams) (any, error) {
		return d.sessions.SignUp(ctx, p.Email, p.Password, p.Name)
	}))
	d.Register("sign_in", handle(func(ctx context.Context, p credentialsParams) (any, error) {
		return d.sessions.SignIn(ctx, p.Email, p.Password)
	}))
	d.Register("sign_out", handle(func(ctx context.Context, _ none) (any, error) {
		return nil, d.sessions.SignOut(ctx)
	}))
	d.Register("get_user", handle(func(ctx context.Context, _ none) (any, error) {
		return d.sessions.CurrentUser(ctx)
	}))

	d.Register("save_summary", handle(func(ctx context.Context, p types.Summary) (any, error) {
		return d.sessions.SaveSummary(ctx, p)
	}))
	d.Register("get_summaries", handle(func(ctx context.Context, p limitParams) (any, error) {
		return d.sessions.GetSummaries(ctx, p.Limit)
	}))
	d.Register("save_leads", handle(func(ctx context.Context, p saveLeadsParams) (any, error) {
		return d.sessions.SaveLeads(ctx, p.Leads, p.Source)
	}))
	d.Register("get_leads", handle(func(ctx context.Context, p limitParams) (any, error) {
		return d.sessions.GetLeads(ctx, p.Limit)
	}))
	d.Register("save_price_monitor", handle(func(ctx context.Context, p types.PriceMonitor) (any, error) {
		return d.sessions.SavePriceMonitor(ctx, p)
	}))
	d.Register("get_price_monitors", handle(func(ctx context.Context, _ none) (any, error) {
		return d.sessions.GetPriceMonitors(ctx)
	}))
	d.Register("get_user_stats", handle(func(ctx context.Context, _ none) (any, error) {
		return d.sessions.Stats(ctx)
	}))
	d.Register("log_activity", handle(func(ctx context.Context, p logActivityParams) (any, error) {
		return d.sessions.LogActivity(ctx, p.Action, p.Details)
	}))
	d.Register("get_user_history", handle(func(ctx context.Context, p limitParams) (any, error) {
		return d.sessions.GetHistory(ctx, p.Limit)
	}))
	d.Register("clear_all_data", handle(func(ctx context.Context, _ none) (any, error) {
		return nil, d.sessions.ClearAllData(ctx)
	}))
}
