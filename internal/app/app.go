package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tabtime/internal/backup"
	"github.com/five82/tabtime/internal/channel"
	"github.com/five82/tabtime/internal/config"
	"github.com/five82/tabtime/internal/events"
	"github.com/five82/tabtime/internal/icons"
	"github.com/five82/tabtime/internal/logging"
	"github.com/five82/tabtime/internal/popup"
	"github.com/five82/tabtime/internal/prefs"
	"github.com/five82/tabtime/internal/schedule"
	"github.com/five82/tabtime/internal/tracker"
)

// Options configure the popup application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/tabtime/prefs.toml
	APIBind    string // overrides api_bind from the config file
	View       string // "focus" or "usage"; empty restores the last view
}

// Run mounts the popup and blocks until it is closed or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	userPrefs := prefs.Load(opts.PrefsPath)

	logger, closeLog, err := logging.OpenFile(cfg.LogPath(), logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = closeLog() }()

	transport, err := tracker.NewHTTPTransport(cfg.APIBind)
	if err != nil {
		return fmt.Errorf("init transport: %w", err)
	}
	critical, background := requestOptions(cfg)
	client := tracker.NewClient(channel.NewRequester(transport, logger), background)

	var userBackup popup.UserBackup
	if store, err := backup.New(cfg.BackupPath()); err != nil {
		logger.Warn("user info backup disabled", logging.F("error", err))
	} else {
		userBackup = store
	}

	view := schedule.ParseView(userPrefs.View)
	if opts.View != "" {
		view = schedule.ParseView(opts.View)
	}

	model := popup.New(popup.Options{
		Context:    ctx,
		Backend:    client,
		Acker:      transport,
		Backup:     userBackup,
		Logger:     logger,
		Critical:   critical,
		Background: background,
		Schedule: schedule.Options{
			CriticalEvery:   cfg.CriticalFallbackEvery,
			StatisticsEvery: cfg.StatisticsEvery,
		},
		Icons: icons.Options{
			Lookup:  cfg.IconLookup,
			Timeout: cfg.IconTimeout,
		},
		View:      view,
		ThemeName: userPrefs.Theme,
		PrefsPath: opts.PrefsPath,
	})
	session := model.Session()
	defer session.Teardown()

	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)

	events.StartPump(session.Context(), transport, program, logger, 0)

	bus, err := events.NewBusWatcher(cfg.BusDir, program, logger)
	if err != nil {
		logger.Warn("event bus disabled", logging.F("dir", cfg.BusDir), logging.F("error", err))
	} else {
		session.Defer(func() { _ = bus.Close() })
	}

	logger.Info("popup mounted", logging.F("api", transport.BaseURL()), logging.F("view", string(view)))
	_, err = program.Run()
	if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return fmt.Errorf("run popup: %w", err)
	}
	return nil
}

// Emit publishes one push event to the cross-surface bus and returns its id.
func Emit(opts Options, kind tracker.PushKind, payload []byte) (string, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return "", err
	}
	id, err := events.Publish(cfg.BusDir, tracker.PushEvent{Kind: kind, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", kind, err)
	}
	return id, nil
}

func loadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if opts.APIBind != "" {
		cfg.APIBind = opts.APIBind
	}
	return cfg, nil
}

func requestOptions(cfg config.Config) (critical, background channel.Options) {
	critical = channel.Options{Timeout: cfg.CriticalTimeout, MaxAttempts: 1}
	background = channel.Options{Timeout: cfg.BackgroundTimeout, MaxAttempts: cfg.BackgroundAttempts}
	return critical, background
}
