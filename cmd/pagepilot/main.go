// Package main provides the PagePilot developer CLI.
//
// It opens a URL in a Playwright-driven Chromium, runs one dispatcher action
// against the live page and prints the response. With -watch it keeps the
// page open and prints every re-analysis triggered by DOM mutations.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atotto/clipboard"

	"github.com/entrhq/pagepilot/pkg/browser"
	"github.com/entrhq/pagepilot/pkg/classifier"
	"github.com/entrhq/pagepilot/pkg/config"
	"github.com/entrhq/pagepilot/pkg/dispatcher"
	"github.com/entrhq/pagepilot/pkg/logging"
	"github.com/entrhq/pagepilot/pkg/notify"
	"github.com/entrhq/pagepilot/pkg/session"
	"github.com/entrhq/pagepilot/pkg/storage"
	"github.com/entrhq/pagepilot/pkg/types"
)

const (
	version        = "0.1.0"
	defaultSession = "cli"
	cleanupEvery   = time.Minute
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	URL         string
	Action      string
	Data        string
	ConfigFile  string
	Session     string
	Watch       bool
	Copy        bool
	Headless    bool
	headlessSet bool
	ShowVersion bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("PagePilot v%s\n", version)
		return
	}
	if cli.URL == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cli); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}

func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.URL, "url", "", "URL to open (required)")
	flag.StringVar(&cli.Action, "action", "analyze_page", "Action to run against the page")
	flag.StringVar(&cli.Data, "data", "", "Additional action data as a JSON object")
	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cli.Session, "session", defaultSession, "Browser session name")
	flag.BoolVar(&cli.Watch, "watch", false, "Keep the page open and print re-analyses")
	flag.BoolVar(&cli.Copy, "copy", false, "Copy the response JSON to the clipboard")
	flag.BoolVar(&cli.Headless, "headless", true, "Run the browser without a window (overrides config)")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "PagePilot - page assistant developer CLI\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pagepilot -url URL [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pagepilot -url https://example.com\n")
		fmt.Fprintf(os.Stderr, "  pagepilot -url https://shop.example.com/item -action monitor_price -data '{\"selector\":\".price\"}'\n")
		fmt.Fprintf(os.Stderr, "  pagepilot -url https://example.com/contact -action fill_form -data '{\"fields\":{\"email\":\"me@example.com\"}}' -headless=false\n")
	}

	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			cli.headlessSet = true
		}
	})
	return cli
}

//nolint:gocyclo
func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cli.headlessSet {
		cfg.Browser.Headless = cli.Headless
	}

	req, err := buildRequest(cli.Action, cli.Session, cli.Data)
	if err != nil {
		return err
	}

	if cfg.Logging.Dir != "" {
		logging.SetDirectory(cfg.Logging.Dir)
	}
	logger, _ := logging.NewLogger("cli")
	defer logger.Close()

	kv, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer kv.Close()

	events := notify.NewBroadcaster(logger.With("notify"))
	defer events.Close()

	sessions, err := session.New(ctx, kv, session.Options{
		SessionTTL:  cfg.Auth.SessionTTL,
		TokenSecret: cfg.Auth.TokenSecret,
		Notifier:    events,
		Logger:      logger.With("session"),
	})
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}

	manager := browser.NewSessionManager(logger.With("browser"))
	manager.SetMaxSessions(cfg.Browser.MaxSessions)
	manager.SetIdleTimeout(cfg.Browser.IdleTimeout)
	if err := manager.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Warnf("browser shutdown: %v", err)
		}
	}()

	live, err := manager.StartSession(cli.Session, browser.SessionOptions{
		Headless: cfg.Browser.Headless,
		Timeout:  cfg.Browser.Timeout,
	})
	if err != nil {
		return err
	}

	fmt.Println(statusStyle.Render("Opening " + cli.URL + " ..."))
	if err := live.Navigate(ctx, cli.URL, browser.NavigateOptions{WaitUntil: "domcontentloaded"}); err != nil {
		return err
	}

	watcher := classifier.NewWatcher(cfg.Classifier.Debounce, events, logger.With("classifier"))
	defer watcher.Stop()

	d := dispatcher.New(sessions, browser.NewResolver(manager), watcher, logger.With("dispatcher"))

	// Subscribe before dispatching so analyze_page's own event is seen.
	sub, _ := events.Subscribe(ctx)

	resp := d.Dispatch(ctx, req)
	fmt.Println(renderResponse(req.Action, resp))

	if cli.Copy {
		if err := copyResponse(resp); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Copy failed: "+err.Error()))
		} else {
			fmt.Println(statusStyle.Render("Response copied to clipboard"))
		}
	}

	if !cli.Watch {
		return manager.CloseSession(cli.Session)
	}

	if err := live.Observe(ctx, watcher); err != nil {
		return err
	}
	for _, info := range manager.ListSessions() {
		fmt.Println(statusStyle.Render(renderSession(info)))
	}
	fmt.Println(statusStyle.Render("Watching for page changes, Ctrl+C to stop"))
	return watch(ctx, manager, sub)
}

// watch prints events until ctx ends or the session goes idle.
func watch(ctx context.Context, manager *browser.SessionManager, events <-chan *types.Event) error {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			fmt.Println(renderEvent(ev))
		case <-ticker.C:
			if err := manager.CleanupIdleSessions(); err != nil {
				return err
			}
			if !manager.HasSessions() {
				fmt.Println(statusStyle.Render("Session idle, stopping"))
				return nil
			}
		}
	}
}

func copyResponse(resp types.Response) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	return clipboard.WriteAll(string(data))
}
