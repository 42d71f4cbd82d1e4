package extract

import (
	"time"
	"unicode/utf8"

	"github.com/entrhq/pagepilot/pkg/page"
)

// MaxContentLength is the maximum number of characters returned as content.
const MaxContentLength = 10000

// mainContentSelectors are tried in order; the first with visible text wins.
var mainContentSelectors = []string{
	"main",
	"article",
	"[role=main]",
	".main-content",
	".content",
	"#content",
	".post-content",
	".entry-content",
}

// ContentResult is the main readable content of a page.
type ContentResult struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	WordCount   int       `json:"wordCount"`
	Truncated   bool      `json:"truncated,omitempty"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// Content extracts the main content of doc, falling back to the whole body.
func Content(doc *page.Document) ContentResult {
	text := mainText(doc)
	wordCount := countWords(text)

	text, truncated := truncate(text, MaxContentLength)

	return ContentResult{
		Title:       doc.Title,
		URL:         doc.URL,
		Content:     text,
		WordCount:   wordCount,
		Truncated:   truncated,
		ExtractedAt: time.Now(),
	}
}

// mainText returns the collapsed visible text of the main content area.
func mainText(doc *page.Document) string {
	for _, selector := range mainContentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if text := page.CollapseWhitespace(page.SelectionText(sel)); text != "" {
			return text
		}
	}
	return page.CollapseWhitespace(doc.Text())
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) (string, bool) {
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:max]), true
}
