package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/pagepilot/pkg/browser"
	"github.com/entrhq/pagepilot/pkg/types"
)

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	mutedGray  = lipgloss.Color("#6B7280")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	okStyle = lipgloss.NewStyle().
		Foreground(mintGreen).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)
)

// renderResponse formats an action response for the terminal.
func renderResponse(action string, resp types.Response) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(action))
	b.WriteString("  ")
	if resp.Success {
		b.WriteString(okStyle.Render("ok"))
	} else {
		b.WriteString(errorStyle.Render("failed: " + resp.Error))
	}

	if resp.Data != nil {
		data, err := json.MarshalIndent(resp.Data, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf("%v", resp.Data))
		}
		b.WriteString("\n")
		b.WriteString(string(data))
	}
	return boxStyle.Render(b.String())
}

// renderEvent formats a broadcast event on one or two lines.
func renderEvent(ev *types.Event) string {
	ts := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case types.EventTypePageContextAnalyzed:
		if ev.Context == nil {
			break
		}
		return fmt.Sprintf("%s %s %s\n  actions: %s",
			statusStyle.Render(ts),
			headerStyle.Render(string(ev.Context.PageType)),
			ev.Context.URL,
			visibleActions(ev.Visibility))
	case types.EventTypeSessionChanged:
		who := "signed out"
		if ev.User != nil {
			who = ev.User.Email
		}
		return fmt.Sprintf("%s %s %s", statusStyle.Render(ts), headerStyle.Render("session"), who)
	}
	return fmt.Sprintf("%s %s", statusStyle.Render(ts), ev.Type)
}

// visibleActions lists the enabled actions in a stable order.
func visibleActions(v types.Visibility) string {
	var names []string
	for action, on := range v {
		if on {
			names = append(names, string(action))
		}
	}
	if len(names) == 0 {
		return "none"
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// renderSession describes an open browser session on one line.
func renderSession(info browser.SessionInfo) string {
	mode := "headless"
	if !info.Headless {
		mode = "headed"
	}
	return fmt.Sprintf("session %s (%s) at %s", info.Name, mode, info.CurrentURL)
}
