// Package page is the host-agnostic view of a web page used by the classifier
// and the extractors.
//
// A Document is an immutable-by-convention parsed snapshot of a page (URL,
// title and DOM). A Page is the port through which core code reaches a page it
// does not own: it can take a fresh snapshot and set a form field's value. Two
// implementations exist: Static, backed by an HTML snapshot sent over the
// messaging channel, and the Playwright-backed session in package browser.
//
// Selector lookups never fail loudly. An invalid CSS selector or a missing
// element yields an empty selection, which callers treat as "absent".
package page
