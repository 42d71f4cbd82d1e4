package classifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/pagepilot/pkg/logging"
	"github.com/entrhq/pagepilot/pkg/notify"
	"github.com/entrhq/pagepilot/pkg/page"
	"github.com/entrhq/pagepilot/pkg/types"
)

// DefaultDebounce is the quiet period after the last significant mutation
// before a page is re-analysed.
const DefaultDebounce = 500 * time.Millisecond

// analysisTimeout bounds a single debounced re-analysis.
const analysisTimeout = 10 * time.Second

// Watcher re-analyses pages after significant DOM mutations. Bursts of
// mutations on the same page collapse into one analysis.
type Watcher struct {
	delay    time.Duration
	notifier notify.Notifier
	logger   *logging.Logger

	mu      sync.Mutex
	pending map[string]*pendingAnalysis
	stopped bool
}

type pendingAnalysis struct {
	timer *time.Timer
	page  page.Page
	ctx   context.Context
}

// NewWatcher creates a watcher. A non-positive delay selects DefaultDebounce;
// a nil notifier discards results.
func NewWatcher(delay time.Duration, notifier notify.Notifier, logger *logging.Logger) *Watcher {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Watcher{
		delay:    delay,
		notifier: notifier,
		logger:   logger,
		pending:  make(map[string]*pendingAnalysis),
	}
}

// Observe reports a mutation of the page identified by key. Insignificant
// mutations are ignored. Otherwise an analysis is scheduled after the
// debounce delay, replacing any analysis already pending for key. It
// returns whether an analysis is scheduled.
func (w *Watcher) Observe(ctx context.Context, key string, p page.Page, addedNodes []string) bool {
	if !Significant(addedNodes) {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return false
	}

	// The analysis outlives the request that reported the mutation.
	detached := context.WithoutCancel(ctx)

	if pa, ok := w.pending[key]; ok && pa.timer.Stop() {
		pa.page = p
		pa.ctx = detached
		pa.timer.Reset(w.delay)
		return true
	}

	pa := &pendingAnalysis{page: p, ctx: detached}
	pa.timer = time.AfterFunc(w.delay, func() { w.fire(key, pa) })
	w.pending[key] = pa
	return true
}

func (w *Watcher) fire(key string, pa *pendingAnalysis) {
	w.mu.Lock()
	if w.stopped || w.pending[key] != pa {
		w.mu.Unlock()
		return
	}
	delete(w.pending, key)
	p, parent := pa.page, pa.ctx
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, analysisTimeout)
	defer cancel()

	if _, _, err := w.Analyze(ctx, p); err != nil {
		w.logger.Warnf("re-analysis of %s failed: %v", key, err)
	}
}

// Analyze classifies p now and publishes the result.
func (w *Watcher) Analyze(ctx context.Context, p page.Page) (types.PageContext, types.Visibility, error) {
	doc, err := p.Snapshot(ctx)
	if err != nil {
		return types.PageContext{}, nil, fmt.Errorf("failed to snapshot page: %w", err)
	}

	pc := Classify(doc)
	vis := Visibility(pc)

	w.logger.Debugf("analysed %s: type=%s form=%t pricing=%t contact=%t",
		pc.URL, pc.PageType, pc.HasForm, pc.HasPricing, pc.HasContactInfo)

	if w.notifier != nil {
		if err := w.notifier.Notify(ctx, types.NewPageContextEvent(pc, vis)); err != nil {
			w.logger.Warnf("failed to publish page context for %s: %v", pc.URL, err)
		}
	}
	return pc, vis, nil
}

// Pending returns the number of scheduled analyses.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stop cancels every pending analysis. Later observations are ignored.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	for key, pa := range w.pending {
		pa.timer.Stop()
		delete(w.pending, key)
	}
}
