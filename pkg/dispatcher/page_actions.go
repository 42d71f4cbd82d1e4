package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/pagepilot/pkg/extract"
	"github.com/entrhq/pagepilot/pkg/page"
	"github.com/entrhq/pagepilot/pkg/session"
	"github.com/entrhq/pagepilot/pkg/types"
)

type pageParams struct {
	Page page.Ref `json:"page"`
}

type mutationParams struct {
	Page       page.Ref `json:"page"`
	AddedNodes []string `json:"addedNodes"`
}

type monitorPriceParams struct {
	Page     page.Ref `json:"page"`
	Selector string   `json:"selector"`
}

type fillFormParams struct {
	Page   page.Ref          `json:"page"`
	Fields map[string]string `json:"fields"`
}

// AnalyzeResult is the outcome of analyze_page.
type AnalyzeResult struct {
	Context    types.PageContext `json:"context"`
	Visibility types.Visibility  `json:"visibility"`
}

// FillFormResult is the outcome of fill_form. HTML carries the updated
// snapshot when the page was given as HTML.
type FillFormResult struct {
	extract.FillResult
	HTML string `json:"html,omitempty"`
}

func (d *Dispatcher) registerPageActions() {
	d.Register("analyze_page", handle(d.analyzePage))
	d.Register("page_mutated", handle(d.pageMutated))
	d.Register("extract_content", handle(d.extractContent))
	d.Register("extract_leads", handle(d.extractLeads))
	d.Register("monitor_price", handle(d.monitorPrice))
	d.Register("fill_form", handle(d.fillForm))
	d.Register("summarize_page", handle(d.summarizePage))
}

func (d *Dispatcher) analyzePage(ctx context.Context, p pageParams) (any, error) {
	pg, err := d.resolver.Resolve(ctx, p.Page)
	if err != nil {
		return nil, err
	}
	pc, vis, err := d.watcher.Analyze(ctx, pg)
	if err != nil {
		return nil, err
	}
	return AnalyzeResult{Context: pc, Visibility: vis}, nil
}

func (d *Dispatcher) pageMutated(ctx context.Context, p mutationParams) (any, error) {
	pg, err := d.resolver.Resolve(ctx, p.Page)
	if err != nil {
		return nil, err
	}
	scheduled := d.watcher.Observe(ctx, pageKey(p.Page), pg, p.AddedNodes)
	return map[string]bool{"scheduled": scheduled}, nil
}

func (d *Dispatcher) extractContent(ctx context.Context, p pageParams) (any, error) {
	doc, err := d.snapshot(ctx, p.Page)
	if err != nil {
		return nil, err
	}
	result := extract.Content(doc)
	d.recordActivity(ctx, "extract_content", map[string]any{"url": doc.URL, "wordCount": result.WordCount})
	return result, nil
}

func (d *Dispatcher) extractLeads(ctx context.Context, p pageParams) (any, error) {
	doc, err := d.snapshot(ctx, p.Page)
	if err != nil {
		return nil, err
	}
	leads := extract.Leads(doc)
	d.recordActivity(ctx, "extract_leads", map[string]any{"url": doc.URL, "count": len(leads)})
	return leads, nil
}

func (d *Dispatcher) monitorPrice(ctx context.Context, p monitorPriceParams) (any, error) {
	doc, err := d.snapshot(ctx, p.Page)
	if err != nil {
		return nil, err
	}
	result, err := extract.Price(doc, p.Selector)
	if err != nil {
		return nil, err
	}
	d.recordActivity(ctx, "monitor_price", map[string]any{"url": doc.URL, "price": result.Price})
	return result, nil
}

func (d *Dispatcher) fillForm(ctx context.Context, p fillFormParams) (any, error) {
	pg, err := d.resolver.Resolve(ctx, p.Page)
	if err != nil {
		return nil, err
	}
	result, err := extract.FillForm(ctx, pg, p.Fields)
	if err != nil {
		return nil, err
	}

	out := FillFormResult{FillResult: result}
	if static, ok := pg.(*page.Static); ok {
		doc, err := static.Snapshot(ctx)
		if err == nil {
			out.HTML = doc.HTML()
		}
	}

	d.recordActivity(ctx, "fill_form", map[string]any{"fieldsFound": result.FieldsFound, "fieldsTotal": result.FieldsTotal})
	return out, nil
}

func (d *Dispatcher) summarizePage(ctx context.Context, p pageParams) (any, error) {
	doc, err := d.snapshot(ctx, p.Page)
	if err != nil {
		return nil, err
	}
	summary := extract.Summarize(doc)
	d.recordActivity(ctx, "summarize_page", map[string]any{"url": doc.URL, "wordCount": summary.WordCount})
	return summary, nil
}

func (d *Dispatcher) snapshot(ctx context.Context, ref page.Ref) (*page.Document, error) {
	pg, err := d.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	doc, err := pg.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}
	return doc, nil
}

// recordActivity logs an extraction for the signed-in user. Failures are
// logged and otherwise ignored.
func (d *Dispatcher) recordActivity(ctx context.Context, action string, details map[string]any) {
	_, err := d.sessions.LogActivity(ctx, action, details)
	if err != nil && !errors.Is(err, session.ErrNotAuthenticated) {
		d.logger.Warnf("failed to record %s activity: %v", action, err)
	}
}

// pageKey identifies a page for mutation debouncing.
func pageKey(ref page.Ref) string {
	if ref.Session != "" {
		return "session:" + ref.Session
	}
	return "url:" + ref.URL
}
