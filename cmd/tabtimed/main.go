package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/five82/tabtime/internal/background"
	"github.com/five82/tabtime/internal/config"
	"github.com/five82/tabtime/internal/logging"
	"github.com/five82/tabtime/internal/tracker"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override tabtime config path (optional)")
	apiBind := flag.String("api", "", "listen address (optional, overrides api_bind)")
	simulate := flag.Duration("simulate", 5*time.Second, "simulated browsing tick; 0 disables")
	user := flag.String("user", "", "signed-in display name (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tabtimed: load config: %v\n", err)
		return 1
	}
	if *apiBind != "" {
		cfg.APIBind = *apiBind
	}

	logger, closeLog, err := logging.OpenFile(cfg.DaemonLogPath(), logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "tabtimed: open log: %v\n", err)
		return 1
	}
	defer func() { _ = closeLog() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	state := background.NewState()
	if name := *user; name != "" {
		state.SetUser(tracker.UserInfo{UserID: "local", DisplayName: name, SignedIn: true})
	}
	srv := background.NewServer(state, logger)
	go srv.Simulate(ctx, *simulate, background.DefaultSites)

	// SIGHUP asks every popup to re-render from fresh state.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				srv.Publish(tracker.PushForceStateRefresh, nil)
			}
		}
	}()

	fmt.Fprintf(os.Stderr, "tabtimed listening on %s (log: %s)\n", cfg.APIBind, cfg.DaemonLogPath())
	if err := srv.Run(ctx, cfg.APIBind); err != nil {
		fmt.Fprintf(os.Stderr, "tabtimed: %v\n", err)
		return 1
	}
	return 0
}
