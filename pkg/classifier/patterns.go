package classifier

import (
	"regexp"

	"github.com/andybalholm/cascadia"
	"github.com/gobwas/glob"
)

// Domain lists. Each entry matches the domain itself and any subdomain.
var (
	socialDomains = compileDomains(
		"facebook.com", "twitter.com", "x.com", "linkedin.com", "instagram.com",
		"tiktok.com", "reddit.com", "pinterest.com", "youtube.com", "threads.net",
	)

	ecommerceDomains = compileDomains(
		"amazon.*", "ebay.*", "etsy.com", "walmart.com", "target.com",
		"bestbuy.com", "aliexpress.com", "shopify.com", "flipkart.com", "myshopify.com",
	)

	jobBoardDomains = compileDomains(
		"indeed.com", "glassdoor.*", "monster.com", "ziprecruiter.com",
		"wellfound.com", "lever.co", "greenhouse.io", "workable.com", "dice.com",
	)
)

var (
	ecommerceURLKeywords = []string{"/product", "/products/", "/cart", "/checkout", "/shop", "/dp/", "/item/"}
	jobBoardURLKeywords  = []string{"/jobs", "/careers", "/job/"}

	ecommerceTextKeywords = []string{"add to cart", "buy now", "add to basket", "add to bag", "checkout"}
	jobBoardTextKeywords  = []string{"apply now", "job description", "years of experience", "employment type", "apply for this job"}

	summarizeURLKeywords = []string{"news", "blog"}
)

var (
	articleSelectors = []string{
		"article", "[role=article]", ".article", ".post", ".blog-post",
		".entry-content", ".post-content", "[itemtype*=Article]",
	}

	pricingSelectors = []string{
		".price", "[class*=price]", "[data-price]", "[itemprop=price]", ".cost", ".amount",
	}

	// significantSelector marks inserted content worth a re-analysis.
	significantSelector = "form, .price"
)

var significantMatcher = cascadia.MustCompile(significantSelector)

var (
	// EmailPattern matches an email address in free text.
	EmailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// PhonePattern matches a North American style phone number with an
	// optional country code.
	PhonePattern = regexp.MustCompile(`(?:\+?\d{1,3}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)

	currencyPattern = regexp.MustCompile(`[$€£¥₹]|\b(?:USD|EUR|GBP|INR|JPY)\b`)
)

func compileDomains(domains ...string) []glob.Glob {
	globs := make([]glob.Glob, 0, len(domains))
	for _, d := range domains {
		globs = append(globs, glob.MustCompile("{"+d+",*."+d+"}"))
	}
	return globs
}

func matchDomain(globs []glob.Glob, domain string) bool {
	if domain == "" {
		return false
	}
	for _, g := range globs {
		if g.Match(domain) {
			return true
		}
	}
	return false
}
