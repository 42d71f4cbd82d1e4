package extract

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/entrhq/pagepilot/pkg/page"
)

var (
	// ErrNoPriceElement is returned when no price element with text exists.
	ErrNoPriceElement = errors.New("price element not found")

	// ErrNoPriceValue is returned when price elements exist but none holds a number.
	ErrNoPriceValue = errors.New("could not extract price value")
)

// defaultPriceSelectors are tried after the caller's selector.
var defaultPriceSelectors = []string{
	".price",
	"[data-price]",
	"[itemprop=price]",
	".product-price",
	".current-price",
	".a-price .a-offscreen",
	".sale-price",
	"[class*=price]",
}

var (
	numberPattern       = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	currencyCodePattern = regexp.MustCompile(`\b(USD|EUR|GBP|INR|JPY|CAD|AUD)\b`)
)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"₹", "INR"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"$", "USD"},
}

// PriceResult is a single price reading.
type PriceResult struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Selector    string    `json:"selector"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency,omitempty"`
	PriceText   string    `json:"priceText"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// Price reads the price shown on doc. The caller's selector is tried first,
// then the default selectors. The first element with any text decides: if
// that text holds no number, Price fails rather than looking further. The
// returned price is always a finite number.
func Price(doc *page.Document, selector string) (PriceResult, error) {
	selectors := defaultPriceSelectors
	if s := strings.TrimSpace(selector); s != "" {
		selectors = append([]string{s}, defaultPriceSelectors...)
	}

	sel, text := firstPriceText(doc, selectors)
	if text == "" {
		return PriceResult{}, ErrNoPriceElement
	}

	value, ok := parsePrice(text)
	if !ok {
		return PriceResult{}, fmt.Errorf("%w from %q", ErrNoPriceValue, text)
	}

	return PriceResult{
		URL:         doc.URL,
		Title:       doc.Title,
		Selector:    sel,
		Price:       value,
		Currency:    detectCurrency(text),
		PriceText:   text,
		ExtractedAt: time.Now(),
	}, nil
}

// firstPriceText returns the first selector with an element carrying text,
// and that text.
func firstPriceText(doc *page.Document, selectors []string) (string, string) {
	for _, sel := range selectors {
		var text string
		doc.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			text = priceText(el)
			return text == ""
		})
		if text != "" {
			return sel, text
		}
	}
	return "", ""
}

// priceText returns the visible text of el, or a machine-readable price
// attribute when the element has no text.
func priceText(el *goquery.Selection) string {
	if text := page.CollapseWhitespace(page.SelectionText(el)); text != "" {
		return text
	}
	for _, attr := range []string{"content", "data-price"} {
		if v, ok := el.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parsePrice extracts the first number from text, ignoring thousands separators.
func parsePrice(text string) (float64, bool) {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func detectCurrency(text string) string {
	if code := currencyCodePattern.FindString(text); code != "" {
		return code
	}
	for _, c := range currencySymbols {
		if strings.Contains(text, c.symbol) {
			return c.code
		}
	}
	return ""
}
