package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/donaldgifford/price-monitor/internal/config"
	"github.com/donaldgifford/price-monitor/internal/engine"
	"github.com/donaldgifford/price-monitor/internal/manager"
	"github.com/donaldgifford/price-monitor/internal/notify"
	"github.com/donaldgifford/price-monitor/internal/store"
	"github.com/donaldgifford/price-monitor/internal/streak"
	"github.com/donaldgifford/price-monitor/pkg/extract"
	"github.com/donaldgifford/price-monitor/pkg/logger"
)

// app holds the wired components shared by serve and check.
type app struct {
	store     store.Store
	extractor *extract.PageExtractor
	engine    *engine.Engine
	scheduler *engine.Scheduler
	manager   *manager.Manager

	// readiness lists dependencies beyond the store that /readyz pings.
	readiness []readyCheck
	closers   []func()
}

type readyCheck struct {
	name string
	ping func(context.Context) error
}

// newApp connects the store and streak backend and wires the engine,
// scheduler and command surface from cfg.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}

	s, err := openStore(ctx, &cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.store = s
	if ps, ok := s.(*store.PostgresStore); ok {
		a.closers = append(a.closers, ps.Close)
	}

	tracker, err := a.openStreaks(ctx, &cfg.Redis, log)
	if err != nil {
		a.close()
		return nil, err
	}

	a.extractor = extract.NewPageExtractor(
		newRenderer(&cfg.Renderer),
		extract.WithSiteLimiter(extract.NewSiteLimiter(cfg.Extract.RequestsPerSecond, cfg.Extract.Burst)),
		extract.WithLogger(logger.Component(log, "extract")),
	)

	a.engine = engine.NewEngine(
		a.store,
		a.extractor,
		newNotifier(&cfg.Notify, &cfg.Notifications.Telegram, log),
		engine.WithLogger(logger.Component(log, "engine")),
		engine.WithWorkers(cfg.Schedule.Workers),
		engine.WithItemTimeout(cfg.Schedule.ItemTimeout),
		engine.WithCycleTimeout(cfg.Schedule.CycleTimeout),
		engine.WithPolicy(engine.Policy{
			NotifyIncrease:         *cfg.Notify.Increase,
			NotifyDecrease:         *cfg.Notify.Decrease,
			FailureStreakThreshold: cfg.Notify.FailureStreakThreshold,
		}),
		engine.WithOperatorAlerter(newOperatorAlerter(&cfg.Notifications.Discord, log)),
		engine.WithStreakTracker(tracker),
	)

	a.scheduler, err = engine.NewScheduler(
		a.engine, a.store, cfg.Schedule.PollInterval, logger.Component(log, "scheduler"),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	a.manager = manager.New(
		a.store,
		a.extractor.Registry(),
		a.scheduler,
		manager.WithLogger(logger.Component(log, "manager")),
	)

	return a, nil
}

// close releases connections in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openStore(ctx context.Context, cfg *config.DatabaseConfig, log *slog.Logger) (store.Store, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("using in-memory store; subscriptions are lost on restart")
		return store.NewMemoryStore(), nil
	}

	ps, err := store.NewPostgresStore(ctx, cfg.DSN(), int32(cfg.PoolSize)) //nolint:gosec // pool size is small
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := ps.Migrate(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("connected to database", "host", cfg.Host, "name", cfg.Name)
	return ps, nil
}

func (a *app) openStreaks(ctx context.Context, cfg *config.RedisConfig, log *slog.Logger) (streak.Tracker, error) {
	if cfg.URL == "" {
		return streak.NewMemoryTracker(), nil
	}

	client, err := streak.Connect(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			log.Warn("closing redis client", "error", err)
		}
	})
	a.readiness = append(a.readiness, readyCheck{
		name: "redis",
		ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	})

	log.Info("failure streaks stored in redis", "prefix", cfg.KeyPrefix)
	return streak.NewRedisTracker(client,
		streak.WithKeyPrefix(cfg.KeyPrefix),
		streak.WithTTL(cfg.StreakTTL),
	), nil
}

func newRenderer(cfg *config.RendererConfig) extract.Renderer {
	if cfg.Backend == config.RendererStatic {
		opts := []extract.StaticOption{extract.WithRequestTimeout(cfg.RequestTimeout)}
		if cfg.UserAgent != "" {
			opts = append(opts, extract.WithUserAgent(cfg.UserAgent))
		}
		return extract.NewStaticRenderer(opts...)
	}

	opts := []extract.ChromeOption{
		extract.WithExecPath(cfg.ExecPath),
		extract.WithHeadless(*cfg.Headless),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, extract.WithChromeUserAgent(cfg.UserAgent))
	}
	return extract.NewChromeRenderer(opts...)
}

func newNotifier(policy *config.NotifyConfig, cfg *config.TelegramConfig, log *slog.Logger) notify.Notifier {
	if !cfg.Enabled {
		log.Warn("telegram disabled; subscriber notifications are discarded")
		return notify.NewNoOpNotifier(logger.Component(log, "notify"))
	}

	mode := notify.ModeHTML
	if cfg.ParseMode == "none" {
		mode = notify.ModePlain
	}

	return notify.NewMessageNotifier(
		notify.NewTelegramTransport(cfg.BotToken, notify.WithAPIBaseURL(cfg.APIBaseURL)),
		notify.WithMode(mode),
		notify.WithMaxMessageLength(policy.MaxMessageLength),
		notify.WithLogger(logger.Component(log, "notify")),
	)
}

func newOperatorAlerter(cfg *config.DiscordConfig, log *slog.Logger) notify.OperatorAlerter {
	if !cfg.Enabled {
		return notify.NewNoOpNotifier(logger.Component(log, "operator"))
	}
	return notify.NewDiscordNotifier(cfg.WebhookURL,
		notify.WithUsername(cfg.Username),
		notify.WithMention(cfg.Mention),
	)
}
