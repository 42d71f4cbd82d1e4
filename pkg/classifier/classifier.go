// Package classifier infers what kind of page is loaded and which quick
// actions make sense for it.
//
// Classification is a pure function of the page URL, title and DOM. Detection
// never fails: malformed markup or selectors only make a detector report false.
package classifier

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/entrhq/pagepilot/pkg/page"
	"github.com/entrhq/pagepilot/pkg/types"
)

// Classify derives the page context of doc.
//
// PageType and the Is* detectors are computed independently and can
// disagree, e.g. a social page showing a price is not marked ecommerce.
func Classify(doc *page.Document) types.PageContext {
	domain := doc.Domain()
	lowerURL := strings.ToLower(doc.URL)
	text := doc.Text()
	lowerText := strings.ToLower(text)

	ctx := types.PageContext{
		URL:            doc.URL,
		Title:          doc.Title,
		Domain:         domain,
		HasForm:        doc.Has("form"),
		HasPricing:     doc.HasAny(pricingSelectors) || currencyPattern.MatchString(text),
		HasContactInfo: EmailPattern.MatchString(text) || PhonePattern.MatchString(text),
		IsSocialMedia:  matchDomain(socialDomains, domain),
		IsEcommerce:    matchDomain(ecommerceDomains, domain) || containsAny(lowerText, ecommerceTextKeywords),
		IsJobBoard:     matchDomain(jobBoardDomains, domain) || containsAny(lowerText, jobBoardTextKeywords),
	}
	ctx.PageType = pageType(doc, domain, lowerURL, ctx.HasForm)
	return ctx
}

// pageType resolves the single category; the first match wins.
func pageType(doc *page.Document, domain, lowerURL string, hasForm bool) types.PageType {
	switch {
	case matchDomain(socialDomains, domain):
		return types.PageTypeSocialMedia
	case matchDomain(ecommerceDomains, domain) || containsAny(lowerURL, ecommerceURLKeywords):
		return types.PageTypeEcommerce
	case matchDomain(jobBoardDomains, domain) || containsAny(lowerURL, jobBoardURLKeywords):
		return types.PageTypeJobBoard
	case doc.HasAny(articleSelectors):
		return types.PageTypeArticle
	case hasForm:
		return types.PageTypeFormPage
	default:
		return types.PageTypeGeneral
	}
}

// Visibility decides which quick actions to show for ctx.
func Visibility(ctx types.PageContext) types.Visibility {
	lowerURL := strings.ToLower(ctx.URL)
	return types.Visibility{
		types.QuickActionSummarize: ctx.PageType == types.PageTypeArticle || containsAny(lowerURL, summarizeURLKeywords),
		types.QuickActionExtract:   true,
		types.QuickActionAutofill:  ctx.HasForm,
		types.QuickActionLeads:     ctx.HasContactInfo || ctx.IsSocialMedia,
		types.QuickActionMonitor:   ctx.IsEcommerce && ctx.HasPricing,
	}
}

// Significant reports whether any inserted node (given as outer HTML) is or
// contains a form or a price element.
func Significant(addedNodes []string) bool {
	for _, fragment := range addedNodes {
		if strings.TrimSpace(fragment) == "" {
			continue
		}
		nodes, err := parseFragment(fragment)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			if significantMatcher.Match(n) || cascadia.Query(n, significantMatcher) != nil {
				return true
			}
		}
	}
	return false
}

// parseFragment parses outer HTML as template content, which accepts any
// element including table rows and cells.
func parseFragment(fragment string) ([]*html.Node, error) {
	tmpl := &html.Node{Type: html.ElementNode, Data: "template", DataAtom: atom.Template}
	return html.ParseFragment(strings.NewReader(fragment), tmpl)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
