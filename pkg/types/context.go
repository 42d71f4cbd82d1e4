package types

// PageType is the single inferred category of a page.
type PageType string

const (
	PageTypeSocialMedia PageType = "social-media"
	PageTypeEcommerce   PageType = "ecommerce"
	PageTypeJobBoard    PageType = "job-board"
	PageTypeArticle     PageType = "article"
	PageTypeFormPage    PageType = "form-page"
	PageTypeGeneral     PageType = "general"
)

// PageContext describes a loaded page and its capabilities.
// The boolean detectors are independent of PageType and may disagree with it.
type PageContext struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Domain         string   `json:"domain"`
	PageType       PageType `json:"pageType"`
	HasForm        bool     `json:"hasForm"`
	HasPricing     bool     `json:"hasPricing"`
	HasContactInfo bool     `json:"hasContactInfo"`
	IsEcommerce    bool     `json:"isEcommerce"`
	IsSocialMedia  bool     `json:"isSocialMedia"`
	IsJobBoard     bool     `json:"isJobBoard"`
}

// QuickAction is a floating action the UI may surface for a page.
type QuickAction string

const (
	QuickActionSummarize QuickAction = "summarize"
	QuickActionExtract   QuickAction = "extract"
	QuickActionAutofill  QuickAction = "autofill"
	QuickActionLeads     QuickAction = "leads"
	QuickActionMonitor   QuickAction = "monitor"
)

// QuickActions lists every quick action in display order.
var QuickActions = []QuickAction{
	QuickActionSummarize,
	QuickActionExtract,
	QuickActionAutofill,
	QuickActionLeads,
	QuickActionMonitor,
}

// Visibility maps each quick action to whether it should be shown.
type Visibility map[QuickAction]bool
