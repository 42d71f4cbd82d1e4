// Package extract pulls structured data out of pages: main content, contact
// leads, a price reading, a placeholder summary, and form filling.
//
// Extractors work on a parsed page.Document. Form filling goes through the
// page.Page port so the same code drives HTML snapshots and live browser tabs.
package extract
