// Package main provides the PagePilot native messaging host.
//
// The browser starts the host with the caller's origin as an argument and
// exchanges length-prefixed JSON messages over stdin and stdout. Nothing
// else may be written to stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/pagepilot/pkg/classifier"
	"github.com/entrhq/pagepilot/pkg/config"
	"github.com/entrhq/pagepilot/pkg/dispatcher"
	"github.com/entrhq/pagepilot/pkg/logging"
	"github.com/entrhq/pagepilot/pkg/messaging"
	"github.com/entrhq/pagepilot/pkg/notify"
	"github.com/entrhq/pagepilot/pkg/session"
	"github.com/entrhq/pagepilot/pkg/storage"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to configuration file (YAML)")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "PagePilot native messaging host\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pagepilot-host [options] [origin]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Fprintf(os.Stderr, "PagePilot host v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "pagepilot-host: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, origin string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Logging.Dir != "" {
		logging.SetDirectory(cfg.Logging.Dir)
	}
	logger, err := logging.NewLogger("host")
	if err != nil {
		fmt.Fprintf(os.Stderr, "pagepilot-host: logging to stderr: %v\n", err)
	}
	defer logger.Close()

	logger.Infof("starting host v%s (origin=%q, storage=%s)", version, origin, cfg.Storage.Backend)

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

	watcher := classifier.NewWatcher(cfg.Classifier.Debounce, events, logger.With("classifier"))
	defer watcher.Stop()

	d := dispatcher.New(sessions, nil, watcher, logger.With("dispatcher"))

	sub, _ := events.Subscribe(ctx)
	host := messaging.NewHost(os.Stdin, os.Stdout, d, logger.With("messaging"))
	host.Forward(sub)

	err = host.Serve(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Infof("signal received, exiting")
		return nil
	case err != nil:
		logger.Errorf("host stopped: %v", err)
		return err
	}
	logger.Infof("extension disconnected, exiting")
	return nil
}
