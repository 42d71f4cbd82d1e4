package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/entrhq/pagepilot/pkg/page"
	"github.com/entrhq/pagepilot/pkg/types"
)

const (
	summarySentences = 3
	maxKeyPoints     = 5

	// fallbackSummaryLength is used when the content has no sentence breaks.
	fallbackSummaryLength = 300
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Summarize builds an extractive summary draft: the opening sentences of the
// main content, followed by a few key points. It does not assign an id.
func Summarize(doc *page.Document) types.Summary {
	text := mainText(doc)

	var sentences []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	summary := types.Summary{
		Title:     doc.Title,
		URL:       doc.URL,
		WordCount: countWords(text),
		CreatedAt: time.Now(),
	}

	if len(sentences) == 0 {
		summary.Summary, _ = truncate(text, fallbackSummaryLength)
		return summary
	}

	n := min(summarySentences, len(sentences))
	summary.Summary = strings.Join(sentences[:n], " ")

	rest := sentences[n:]
	if len(rest) > maxKeyPoints {
		rest = rest[:maxKeyPoints]
	}
	summary.KeyPoints = append([]string(nil), rest...)

	return summary
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
