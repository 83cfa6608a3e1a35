package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/breakfast/internal/adapters/advisor"
	"github.com/okian/breakfast/internal/adapters/http/api"
	"github.com/okian/breakfast/internal/adapters/notify"
	repository "github.com/okian/breakfast/internal/adapters/repository"
	app "github.com/okian/breakfast/internal/app"
	"github.com/okian/breakfast/internal/catalog"
	"github.com/okian/breakfast/internal/config"
	"github.com/okian/breakfast/internal/supervisor"
	"github.com/okian/breakfast/pkg/logger"
	"github.com/okian/breakfast/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readHeaderTimeout = 5 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "breakfast server failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(logger.Format(cfg.LogFormat))); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Setup(metricsOptions(cfg)...)

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Stop()
	if err := svc.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewServer(svc,
			api.WithCORSOrigins(cfg.Server.CORSOrigins),
			api.WithRateLimit(cfg.Server.RateLimit),
			api.WithHistoryLimits(cfg.Server.HistoryLimit, cfg.Server.MaxHistoryLimit),
			api.WithLogger(log.Named("api")),
		).Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	tree := supervisor.NewTree(logger.Slog(), supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	tree.AddAPI(supervisor.NewHTTPService(srv, cfg.Server.ShutdownTimeout))
	tree.AddBackground(supervisor.NewFuncService("reminder-workers", svc.ReminderPool().Serve))
	if sched := svc.ReminderScheduler(); sched != nil {
		tree.AddBackground(sched)
	}
	tree.AddBackground(supervisor.NewFuncService("system-metrics", func(ctx context.Context) error {
		return metrics.RunSystemCollector(ctx, 0)
	}))

	log.Info(ctx, "starting HTTP server",
		logger.String("addr", cfg.Server.Addr),
		logger.String("store", cfg.Store.Driver),
		logger.String("timezone", cfg.Timezone))

	err = tree.Serve(ctx)
	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, u := range unstopped {
			log.Warn(context.Background(), "service failed to stop", logger.String("service", u.Name))
		}
	}
	log.Info(context.Background(), "server stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildService assembles the store, catalog, advisor and notifier.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	hour, minute, err := cfg.ReminderTime()
	if err != nil {
		return nil, err
	}

	store, err := repository.Open(ctx, repository.Config{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		DSN:    cfg.Store.DSN,
	},
		repository.WithLogger(log.Named("store")),
		repository.WithPool(cfg.Store.MaxOpenConns, cfg.Store.MaxIdleConns, cfg.Store.ConnMaxLifetime),
		repository.WithDebugSQL(cfg.Store.DebugSQL),
	)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithAdvisor(newAdvisor(cfg, log)),
		app.WithNotifier(newNotifier(cfg, log)),
		app.WithLocation(loc),
		app.WithDrawSeed(cfg.Draw.Seed),
		app.WithRecordProvisional(cfg.Draw.RecordProvisional),
		app.WithReminder(cfg.Reminder.Enabled, hour, minute),
		app.WithQueueSize(cfg.Reminder.QueueSize),
		app.WithWorkerCount(cfg.Reminder.Workers),
		app.WithJobTimeout(cfg.Reminder.JobTimeout),
	}
	if cfg.Store.Seed {
		drafts, err := catalog.Load(cfg.Store.SeedPath)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		opts = append(opts, app.WithCatalog(drafts))
	}
	return app.New(opts...), nil
}

func metricsOptions(cfg *config.Config) []metrics.Option {
	m := cfg.Metrics
	return []metrics.Option{
		metrics.WithNamespace(m.Namespace),
		metrics.WithSubsystem(m.Subsystem),
		metrics.WithHistogramBuckets(m.Buckets),
		metrics.WithCustomLabels(m.Labels),
		metrics.WithRefreshInterval(m.RefreshInterval),
	}
}

func newAdvisor(cfg *config.Config, log logger.Logger) *advisor.Advisor {
	a := advisor.New(advisor.Config{
		PerplexityKey:     cfg.AI.PerplexityAPIKey,
		PerplexityURL:     cfg.AI.PerplexityURL,
		PerplexityModel:   cfg.AI.PerplexityModel,
		OpenAIKey:         cfg.AI.OpenAIAPIKey,
		OpenAIURL:         cfg.AI.OpenAIURL,
		OpenAIModel:       cfg.AI.OpenAIModel,
		VisionModel:       cfg.AI.VisionModel,
		Timeout:           cfg.AI.Timeout,
		RequestsPerSecond: cfg.AI.RequestsPerSecond,
		Burst:             cfg.AI.Burst,
		BreakerFailures:   cfg.AI.BreakerFailures,
		BreakerTimeout:    cfg.AI.BreakerTimeout,
	}, advisor.WithLogger(log.Named("advisor")))
	if !a.Configured() {
		log.Warn(context.Background(), "no AI provider key set, using built-in answers")
	}
	return a
}

func newNotifier(cfg *config.Config, log logger.Logger) *notify.Dispatcher {
	smtp := cfg.Notify.SMTP
	wa := cfg.Notify.WhatsApp
	return notify.NewDispatcher(log.Named("notify"),
		notify.NewEmailChannel(notify.SMTPConfig{
			Host:     smtp.Host,
			Port:     smtp.Port,
			Username: smtp.Username,
			Password: smtp.Password,
			From:     smtp.From,
			To:       smtp.To,
			StartTLS: smtp.StartTLS,
			Timeout:  smtp.Timeout,
		}),
		notify.NewWhatsAppChannel(notify.TwilioConfig{
			AccountSID: wa.AccountSID,
			AuthToken:  wa.AuthToken,
			From:       wa.From,
			To:         wa.To,
			BaseURL:    wa.BaseURL,
		}),
	)
}
