package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pagepilot/pkg/page"
	"github.com/entrhq/pagepilot/pkg/types"
)

func parse(t *testing.T, url, body string) *page.Document {
	t.Helper()
	doc, err := page.Parse(url, "Test", "<html><head><title>Test</title></head><body>"+body+"</body></html>")
	require.NoError(t, err)
	return doc
}

func TestClassify_PageType(t *testing.T) {
	tests := []struct {
		name string
		url  string
		body string
		want types.PageType
	}{
		{"social domain", "https://www.facebook.com/some.page", "<p>hello</p>", types.PageTypeSocialMedia},
		{"social beats ecommerce url", "https://x.com/shop/item/1", "<p>hi</p>", types.PageTypeSocialMedia},
		{"ecommerce domain", "https://www.amazon.co.uk/gp/bestsellers", "<p>hi</p>", types.PageTypeEcommerce},
		{"ecommerce url keyword", "https://store.example.com/products/42", "<p>hi</p>", types.PageTypeEcommerce},
		{"amazon dp path", "https://example.org/dp/B000", "", types.PageTypeEcommerce},
		{"job board domain", "https://www.indeed.com/viewjob?jk=1", "<p>hi</p>", types.PageTypeJobBoard},
		{"job board glob", "https://www.glassdoor.co.in/Job/index.htm", "<p>hi</p>", types.PageTypeJobBoard},
		{"careers url", "https://example.com/careers/backend", "<p>hi</p>", types.PageTypeJobBoard},
		{"article element", "https://example.com/2024/01/post", "<article><p>Story</p></article>", types.PageTypeArticle},
		{"itemtype article", "https://example.com/x", `<div itemtype="https://schema.org/NewsArticle">x</div>`, types.PageTypeArticle},
		{"article beats form", "https://example.com/x", `<div class="post">x</div><form></form>`, types.PageTypeArticle},
		{"form page", "https://example.com/signup", `<form><input name="email"></form>`, types.PageTypeFormPage},
		{"general", "https://example.com/", "<div>nothing here</div>", types.PageTypeGeneral},
		{"lookalike domain is not social", "https://notfacebook.com/", "<div>x</div>", types.PageTypeGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(parse(t, tt.url, tt.body))
			assert.Equal(t, tt.want, got.PageType)
		})
	}
}

func TestClassify_Detectors(t *testing.T) {
	t.Run("pricing selector", func(t *testing.T) {
		ctx := Classify(parse(t, "https://example.com", `<span class="product-price">12</span>`))
		assert.True(t, ctx.HasPricing)
	})

	t.Run("currency code in text", func(t *testing.T) {
		ctx := Classify(parse(t, "https://example.com", `<p>Costs 12 EUR per month</p>`))
		assert.True(t, ctx.HasPricing)
	})

	t.Run("currency symbol in text", func(t *testing.T) {
		ctx := Classify(parse(t, "https://example.com", `<p>Only ₹499</p>`))
		assert.True(t, ctx.HasPricing)
	})

	t.Run("currency in script is ignored", func(t *testing.T) {
		ctx := Classify(parse(t, "https://example.com", `<script>var p = "$5";</script><p>plain</p>`))
		assert.False(t, ctx.HasPricing)
	})

	t.Run("email contact", func(t *testing.T) {
		ctx := Classify(parse(t, "https://example.com", `<p>Write to sales@example.com</p>`))
		assert.True(t, ctx.HasContactInfo)
	})

	t.Run("phone contact", func(t *testing.T) {
		ctx := Classify(parse(t, "https://example.com", `<p>Call (555) 123-4567</p>`))
		assert.True(t, ctx.HasContactInfo)
	})

	t.Run("ecommerce text keyword", func(t *testing.T) {
		ctx := Classify(parse(t, "https://example.com", `<button>Add to Cart</button>`))
		assert.True(t, ctx.IsEcommerce)
		assert.Equal(t, types.PageTypeGeneral, ctx.PageType)
	})

	t.Run("job text keyword", func(t *testing.T) {
		ctx := Classify(parse(t, "https://example.com/role", `<p>3+ years of experience required</p>`))
		assert.True(t, ctx.IsJobBoard)
	})

	t.Run("detectors may disagree with page type", func(t *testing.T) {
		ctx := Classify(parse(t, "https://www.linkedin.com/feed", `<span class="price">$10</span><button>Buy now</button>`))
		assert.Equal(t, types.PageTypeSocialMedia, ctx.PageType)
		assert.True(t, ctx.IsSocialMedia)
		assert.True(t, ctx.IsEcommerce)
		assert.True(t, ctx.HasPricing)
	})

	t.Run("domain is lower-cased host", func(t *testing.T) {
		ctx := Classify(parse(t, "https://Shop.Example.COM:8443/a", ""))
		assert.Equal(t, "shop.example.com", ctx.Domain)
	})
}

func TestClassify_MalformedInput(t *testing.T) {
	doc, err := page.Parse("::not a url::", "", `<div><form><span class="price">$<<<</div>`)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		ctx := Classify(doc)
		assert.Equal(t, "", ctx.Domain)
		assert.True(t, ctx.HasForm)
	})
}

func TestClassify_Deterministic(t *testing.T) {
	doc := parse(t, "https://news.example.com/a", `<article>x@y.io</article><form></form><span class="price">$5</span>`)

	first := Classify(doc)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(doc))
	}
}

func TestVisibility(t *testing.T) {
	tests := []struct {
		name string
		ctx  types.PageContext
		want types.Visibility
	}{
		{
			name: "general page shows only extract",
			ctx:  types.PageContext{URL: "https://example.com", PageType: types.PageTypeGeneral},
			want: types.Visibility{
				types.QuickActionSummarize: false,
				types.QuickActionExtract:   true,
				types.QuickActionAutofill:  false,
				types.QuickActionLeads:     false,
				types.QuickActionMonitor:   false,
			},
		},
		{
			name: "article",
			ctx:  types.PageContext{URL: "https://example.com/x", PageType: types.PageTypeArticle},
			want: types.Visibility{
				types.QuickActionSummarize: true,
				types.QuickActionExtract:   true,
				types.QuickActionAutofill:  false,
				types.QuickActionLeads:     false,
				types.QuickActionMonitor:   false,
			},
		},
		{
			name: "blog url on general page",
			ctx:  types.PageContext{URL: "https://example.com/Blog/entry", PageType: types.PageTypeGeneral},
			want: types.Visibility{
				types.QuickActionSummarize: true,
				types.QuickActionExtract:   true,
				types.QuickActionAutofill:  false,
				types.QuickActionLeads:     false,
				types.QuickActionMonitor:   false,
			},
		},
		{
			name: "shop with form and contact",
			ctx: types.PageContext{
				URL: "https://shop.example.com", PageType: types.PageTypeEcommerce,
				HasForm: true, HasPricing: true, HasContactInfo: true, IsEcommerce: true,
			},
			want: types.Visibility{
				types.QuickActionSummarize: false,
				types.QuickActionExtract:   true,
				types.QuickActionAutofill:  true,
				types.QuickActionLeads:     true,
				types.QuickActionMonitor:   true,
			},
		},
		{
			name: "social shows leads without contact info",
			ctx:  types.PageContext{URL: "https://x.com", PageType: types.PageTypeSocialMedia, IsSocialMedia: true, HasPricing: true},
			want: types.Visibility{
				types.QuickActionSummarize: false,
				types.QuickActionExtract:   true,
				types.QuickActionAutofill:  false,
				types.QuickActionLeads:     true,
				types.QuickActionMonitor:   false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Visibility(tt.ctx))
		})
	}
}

func TestVisibility_CoversEveryAction(t *testing.T) {
	vis := Visibility(types.PageContext{})
	for _, a := range types.QuickActions {
		_, ok := vis[a]
		assert.True(t, ok, "missing %s", a)
	}
	assert.Len(t, vis, len(types.QuickActions))
}

func TestSignificant(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		want  bool
	}{
		{"nothing", nil, false},
		{"empty fragment", []string{"  "}, false},
		{"plain div", []string{"<div>hello</div>"}, false},
		{"form", []string{`<form action="/x"><input></form>`}, true},
		{"nested price", []string{`<div><p><span class="price big">$3</span></p></div>`}, true},
		{"price-like class is not price", []string{`<span class="prices">1</span>`}, false},
		{"any of many", []string{"<p>a</p>", `<section><form></form></section>`}, true},
		{"table row with price class", []string{`<tr class="price"><td>$5</td></tr>`}, true},
		{"table cell with price class", []string{`<td class="price">$5</td>`}, true},
		{"price cell inside row", []string{`<tr><td>Item</td><td class="price">$5</td></tr>`}, true},
		{"plain table row", []string{`<tr><td>Item</td></tr>`}, false},
		{"list item with price class", []string{`<li class="price">$5</li>`}, true},
		{"text only", []string{"price $5"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Significant(tt.nodes))
		})
	}
}
