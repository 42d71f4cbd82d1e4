package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pagepilot/pkg/browser"
	"github.com/entrhq/pagepilot/pkg/types"
)

func TestBuildRequest(t *testing.T) {
	t.Run("adds session page ref", func(t *testing.T) {
		req, err := buildRequest("analyze_page", "cli", "")
		require.NoError(t, err)
		assert.Equal(t, "analyze_page", req.Action)
		assert.JSONEq(t, `{"page":{"session":"cli"}}`, string(req.Data))
	})

	t.Run("merges data", func(t *testing.T) {
		req, err := buildRequest("monitor_price", "main", `{"selector":".price"}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"page":{"session":"main"},"selector":".price"}`, string(req.Data))
	})

	t.Run("explicit page wins", func(t *testing.T) {
		req, err := buildRequest("analyze_page", "cli", `{"page":{"html":"<p>x</p>"}}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"page":{"html":"<p>x</p>"}}`, string(req.Data))
	})

	t.Run("rejects non-object", func(t *testing.T) {
		_, err := buildRequest("analyze_page", "cli", `[1,2]`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "-data must be a JSON object")
	})
}

func TestRenderResponse(t *testing.T) {
	out := renderResponse("extract_leads", types.OK([]string{"a@example.com"}))
	assert.Contains(t, out, "extract_leads")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "a@example.com")

	out = renderResponse("monitor_price", types.Fail("price element not found"))
	assert.Contains(t, out, "failed: price element not found")
}

func TestRenderEvent(t *testing.T) {
	ctx := types.PageContext{URL: "https://shop.example.com", PageType: types.PageTypeEcommerce}
	vis := types.Visibility{types.QuickActionMonitor: true, types.QuickActionSummarize: true, types.QuickActionLeads: false}

	out := renderEvent(types.NewPageContextEvent(ctx, vis))
	assert.Contains(t, out, "ecommerce")
	assert.Contains(t, out, "https://shop.example.com")
	assert.Contains(t, out, "monitor, summarize")

	out = renderEvent(types.NewSessionChangedEvent(nil))
	assert.Contains(t, out, "signed out")

	out = renderEvent(&types.Event{Type: "OTHER", Timestamp: time.Now()})
	assert.True(t, strings.HasSuffix(out, "OTHER"))
}

func TestVisibleActions(t *testing.T) {
	assert.Equal(t, "none", visibleActions(nil))
	assert.Equal(t, "extract", visibleActions(types.Visibility{types.QuickActionExtract: true}))
}

func TestRenderSession(t *testing.T) {
	out := renderSession(browser.SessionInfo{Name: "cli", CurrentURL: "https://example.com/", Headless: false})
	assert.Equal(t, "session cli (headed) at https://example.com/", out)
}
