// Package browser drives live Chromium pages through Playwright.
//
// A SessionManager owns named sessions. Each Session implements page.Page,
// so the classifier and extractors run against a live page exactly as they
// do against an HTML snapshot. Observe bridges the page's MutationObserver
// to a classifier.Watcher.
package browser
