package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/entrhq/pagepilot/pkg/page"
)

// FillResult reports which fields were written.
type FillResult struct {
	FieldsFound int               `json:"fieldsFound"`
	FieldsTotal int               `json:"fieldsTotal"`
	Matched     map[string]string `json:"matched"`
	Missing     []string          `json:"missing,omitempty"`
}

// fieldSelectors returns the candidate selectors for a field key, most
// specific first.
func fieldSelectors(key string) []string {
	k := cssString(key)
	return []string{
		"input[name=" + k + "]",
		"input[id=" + k + "]",
		"input[placeholder*=" + k + "]",
		"textarea[name=" + k + "]",
		"select[name=" + k + "]",
	}
}

// FillForm writes each value into the first element matching its key. Fields
// without a matching element are reported as missing, not as errors.
func FillForm(ctx context.Context, p page.Page, fields map[string]string) (FillResult, error) {
	result := FillResult{
		FieldsTotal: len(fields),
		Matched:     make(map[string]string),
	}

	doc, err := p.Snapshot(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to snapshot page: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		selector, err := fillField(ctx, p, doc, key, fields[key])
		if err != nil {
			return result, err
		}
		if selector == "" {
			result.Missing = append(result.Missing, key)
			continue
		}
		result.Matched[key] = selector
		result.FieldsFound++
	}

	return result, nil
}

// fillField fills the first candidate present in doc and returns its selector,
// or "" when no candidate could be filled.
func fillField(ctx context.Context, p page.Page, doc *page.Document, key, value string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", nil
	}
	for _, selector := range fieldSelectors(key) {
		if !doc.Has(selector) {
			continue
		}
		err := p.SetFieldValue(ctx, selector, value)
		if errors.Is(err, page.ErrNoElement) {
			// the live page changed since the snapshot
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to fill %s: %w", key, err)
		}
		return selector, nil
	}
	return "", nil
}

// cssString quotes s as a CSS string literal.
func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}
