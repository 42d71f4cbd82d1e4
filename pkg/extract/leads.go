package extract

import (
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/pagepilot/pkg/classifier"
	"github.com/entrhq/pagepilot/pkg/page"
	"github.com/entrhq/pagepilot/pkg/types"
)

// Leads returns one unverified lead per distinct email and phone number in
// the visible text of doc. Emails come first, each group in page order.
func Leads(doc *page.Document) []types.Lead {
	text := doc.Text()
	now := time.Now()

	leads := make([]types.Lead, 0)
	seen := make(map[string]bool)

	for _, email := range classifier.EmailPattern.FindAllString(text, -1) {
		if seen[email] {
			continue
		}
		seen[email] = true
		leads = append(leads, types.Lead{
			ID:          uuid.New().String(),
			Email:       email,
			Source:      doc.URL,
			ExtractedAt: now,
		})
	}

	for _, phone := range classifier.PhonePattern.FindAllString(text, -1) {
		if seen[phone] {
			continue
		}
		seen[phone] = true
		leads = append(leads, types.Lead{
			ID:          uuid.New().String(),
			Phone:       phone,
			Source:      doc.URL,
			ExtractedAt: now,
		})
	}

	return leads
}
