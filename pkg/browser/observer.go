package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/pagepilot/pkg/classifier"
)

const mutationBinding = "__pagepilotMutation"

// observerScript forwards the outer HTML of added elements to the binding.
// It runs on every document the context loads.
const observerScript = `(() => {
	if (window.__pagepilotObserver) return;
	const observer = new MutationObserver((mutations) => {
		const added = [];
		for (const m of mutations) {
			for (const n of m.addedNodes) {
				if (n.nodeType === Node.ELEMENT_NODE) added.push(n.outerHTML);
			}
		}
		if (added.length > 0 && window.` + mutationBinding + `) {
			window.` + mutationBinding + `(added);
		}
	});
	const start = () => observer.observe(document.documentElement, { childList: true, subtree: true });
	if (document.documentElement) {
		start();
	} else {
		document.addEventListener('DOMContentLoaded', start);
	}
	window.__pagepilotObserver = observer;
})();`

// WatchKey is the debounce key used for mutations of the named session.
// It matches the key the dispatcher derives for page refs naming a session.
func WatchKey(session string) string {
	return "session:" + session
}

// Observe reports DOM mutations of the session's page to w. Calling it again
// is a no-op.
func (s *Session) Observe(ctx context.Context, w *classifier.Watcher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observing {
		return nil
	}

	key := WatchKey(s.Name)
	err := s.Context.ExposeBinding(mutationBinding, func(_ *playwright.BindingSource, args ...interface{}) interface{} {
		w.Observe(ctx, key, s, addedNodes(args))
		return nil
	})
	if err != nil {
		return fmt.Errorf("exposing mutation binding: %w", err)
	}

	if err := s.Context.AddInitScript(playwright.Script{Content: playwright.String(observerScript)}); err != nil {
		return fmt.Errorf("installing mutation observer: %w", err)
	}
	// The init script only runs on later navigations.
	if _, err := s.Page.Evaluate(observerScript); err != nil {
		return fmt.Errorf("starting mutation observer: %w", err)
	}

	s.observing = true
	return nil
}

// addedNodes converts binding arguments into HTML fragments.
func addedNodes(args []interface{}) []string {
	var nodes []string
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			nodes = append(nodes, v)
		case []interface{}:
			nodes = append(nodes, addedNodes(v)...)
		}
	}
	return nodes
}
