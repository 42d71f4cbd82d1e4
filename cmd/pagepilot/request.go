package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/pagepilot/pkg/page"
	"github.com/entrhq/pagepilot/pkg/types"
)

// buildRequest merges the -data object with a page ref naming the live
// session. A "page" key in data wins.
func buildRequest(action, sessionName, data string) (types.Request, error) {
	payload := map[string]any{}
	if strings.TrimSpace(data) != "" {
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return types.Request{}, fmt.Errorf("-data must be a JSON object: %w", err)
		}
	}
	if _, ok := payload["page"]; !ok {
		payload["page"] = page.Ref{Session: sessionName}
	}
	return types.NewRequest(action, payload)
}
