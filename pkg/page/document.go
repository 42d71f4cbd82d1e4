package page

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Document is a parsed page snapshot.
type Document struct {
	URL   string
	Title string

	doc *goquery.Document
}

// Parse builds a Document from raw HTML. When title is empty the <title>
// element is used instead.
func Parse(pageURL, title, rawHTML string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	return &Document{
		URL:   pageURL,
		Title: title,
		doc:   doc,
	}, nil
}

// Domain returns the lower-cased host name of the document URL, or "" when
// the URL cannot be parsed.
func (d *Document) Domain() string {
	u, err := url.Parse(d.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Find returns all elements matching selector. Invalid selectors match nothing.
func (d *Document) Find(selector string) *goquery.Selection {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return d.doc.FindNodes()
	}
	return d.doc.FindMatcher(m)
}

// Has reports whether at least one element matches selector.
func (d *Document) Has(selector string) bool {
	return d.Find(selector).Length() > 0
}

// HasAny reports whether any of the selectors matches.
func (d *Document) HasAny(selectors []string) bool {
	for _, sel := range selectors {
		if d.Has(sel) {
			return true
		}
	}
	return false
}

// Text returns the visible text of the body (or the whole document when
// there is no body) with script and style content removed.
func (d *Document) Text() string {
	body := d.doc.Find("body")
	if body.Length() == 0 {
		return SelectionText(d.doc.Selection)
	}
	return SelectionText(body)
}

// HTML renders the current DOM, including any values set on a static page.
func (d *Document) HTML() string {
	out, err := d.doc.Html()
	if err != nil {
		return ""
	}
	return out
}

// SelectionText returns the visible text of every node in sel.
func SelectionText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeVisibleText(n, &b)
	}
	return b.String()
}

// CollapseWhitespace replaces every run of whitespace with a single space and
// trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// writeVisibleText walks n and appends text nodes outside skipped elements,
// separating adjacent nodes with a space.
func writeVisibleText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
		return
	case html.ElementNode:
		if isSkippedElement(strings.ToLower(n.Data)) {
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeVisibleText(c, b)
	}
}

// isSkippedElement returns true for elements whose text is never visible
func isSkippedElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "template", "iframe", "object", "embed", "svg", "head":
		return true
	}
	return false
}
