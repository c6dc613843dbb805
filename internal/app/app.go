package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"npbc-dashboard/internal/alerting"
	"npbc-dashboard/internal/config"
	"npbc-dashboard/internal/dashboard"
	"npbc-dashboard/internal/fetcher"
	"npbc-dashboard/internal/metrics"
	"npbc-dashboard/internal/poller"
	"npbc-dashboard/internal/render"
	"npbc-dashboard/internal/storage"
	"npbc-dashboard/internal/timerange"
	"npbc-dashboard/internal/version"
	"npbc-dashboard/internal/visibility"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives command output; defaults to os.Stdout.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newSource(observer fetcher.Observer) *fetcher.DeviceAPI {
	userAgent := a.Config.API.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	retrying := fetcher.NewRetrying(fetcher.Options{
		BaseURL:     a.Config.API.BaseURL,
		Timeout:     a.Config.API.RequestTimeout,
		MaxAttempts: a.Config.API.MaxAttempts,
		BaseDelay:   a.Config.API.BaseDelay,
		UserAgent:   userAgent,
	}, observer, a.Logger)
	return fetcher.NewDeviceAPI(retrying)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (storage.Backend, func(), error) {
	store, err := storage.Open(ctx, a.Config.Database, a.Config.SQLite)
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return store, store.Close, nil
}

func (a *App) newPoller(source poller.Source, opts poller.Options) (*poller.Poller, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, err
	}
	opts.Interval = a.Config.Poller.Interval
	opts.Location = loc
	if opts.Range == 0 {
		opts.Range = a.Config.DefaultRange()
	}
	return poller.New(source, opts, a.Logger), nil
}

func (a *App) newRenderer() (*render.Renderer, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, err
	}
	return render.New(a.Config.Charts.Width, a.Config.Charts.Height, loc), nil
}

// resolveRange validates a --range flag; zero selects the configured
// default.
func (a *App) resolveRange(hours int) (timerange.Range, error) {
	if hours == 0 {
		return a.Config.DefaultRange(), nil
	}
	r, err := timerange.Parse(hours)
	if err != nil {
		return 0, fmt.Errorf("--range: %w", err)
	}
	return r, nil
}

// Serve runs the poller and the HTTP dashboard until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	collector := metrics.New()
	opts := poller.Options{
		Notifier:         a.newNotifier(),
		Metrics:          collector,
		JournalRetention: a.Config.Poller.JournalRetention,
	}
	if store != nil {
		opts.Journal = store
	} else {
		a.Logger.Warn().Msg("no storage configured; theme and cycle journal are not persisted")
	}

	p, err := a.newPoller(a.newSource(collector), opts)
	if err != nil {
		return err
	}
	renderer, err := a.newRenderer()
	if err != nil {
		return err
	}

	deps := dashboard.Deps{
		Source:     p,
		Visibility: visibility.New(),
		Renderer:   renderer,
		Metrics:    collector.Handler(),
	}
	if store != nil {
		deps.Preferences = store
	}
	handler := dashboard.NewHandler(deps, a.Logger)
	server := dashboard.NewServer(a.Config.HTTP.Addr, handler.InitRoutes(), a.Config.HTTP.ShutdownTimeout, a.Logger)

	a.Logger.Info().
		Str("version", version.Version).
		Str("api", a.Config.API.BaseURL).
		Dur("interval", a.Config.Poller.Interval).
		Msg("starting dashboard")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := p.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("dashboard terminated with error")
		return err
	}

	a.Logger.Info().Msg("dashboard stopped")
	return nil
}

// SnapshotOptions configure the snapshot command.
type SnapshotOptions struct {
	Range int
	JSON  bool
	Rows  int
}

// ExportOptions configure the export command.
type ExportOptions struct {
	Range  int
	Dir    string
	Theme  string
	NoPNG  bool
	NoCSV  bool
	Hidden []string
}

// CyclesOptions configure the cycles command.
type CyclesOptions struct {
	Limit int
}
