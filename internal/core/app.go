// Package core assembles the application: config, logging, storage,
// the connector, the delivery and dispatch pipeline, HTTP surface and
// cron triggers, all running under one supervisor.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"celebot/internal/bot"
	"celebot/internal/cards"
	"celebot/internal/config"
	"celebot/internal/delivery"
	"celebot/internal/dispatch"
	"celebot/internal/runtime/supervisor"
	"celebot/internal/scheduler"
	"celebot/internal/server"
	"celebot/internal/storage"
	"celebot/internal/transport/msteams"
	logx "celebot/pkg/logx"
	"celebot/pkg/systemd"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store  storage.Store
	conn   *msteams.Client
	engine *delivery.Engine
	disp   *dispatch.Dispatcher
	bot    *bot.Handler
	srv    *server.Server
	sched  *scheduler.Service
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	conn := msteams.New(msteams.Config{
		AppID:         cfg.Bot.AppID,
		AppSecret:     cfg.Bot.AppPassword,
		TokenEndpoint: cfg.Bot.TokenEndpoint,
	}, log.With(logx.String("comp", "connector")))

	engine := delivery.New(delivery.Config{
		RatePerSec: cfg.Delivery.RatePerSec,
	}, store, conn, log.With(logx.String("comp", "delivery")))

	builder := &cards.Builder{
		BaseURL:       cfg.Notifications.BaseURL,
		ManifestAppID: cfg.Notifications.ManifestAppID,
	}

	disp := dispatch.New(dispatchConfig(cfg), store, engine, conn, builder,
		log.With(logx.String("comp", "dispatch")))

	botHandler := bot.New(store, conn, engine, builder,
		log.With(logx.String("comp", "bot")))

	app := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		conn:    conn,
		engine:  engine,
		disp:    disp,
		bot:     botHandler,
	}

	// Teams the bot gets thrown out of stop receiving notifications.
	engine.SetTeamGoneHandler(app.cleanupGoneTeam)

	app.srv = server.New(serverConfig(cfg), store, botHandler, disp,
		log.With(logx.String("comp", "http")))

	runner := cycles{disp: disp}
	app.sched = scheduler.New(schedulerConfig(cfg),
		log.With(logx.String("comp", "cron")))
	app.sched.Register("preview", scheduler.PreviewSpecFor(cfg.Notifications.TimeToPost), runner.PreviewCycle)
	app.sched.Register("event", scheduler.DefaultEventSpec, runner.EventCycle)
	app.sched.Register("retry", scheduler.DefaultRetrySpec, runner.RetryCycle)

	return app, nil
}

// cycles adapts the dispatcher to the ctx-only shape the cron jobs
// expect, pinning each run to the wall clock.
type cycles struct {
	disp *dispatch.Dispatcher
}

func (c cycles) PreviewCycle(ctx context.Context) error { return c.disp.PreviewCycle(ctx, time.Now()) }
func (c cycles) EventCycle(ctx context.Context) error   { return c.disp.EventCycle(ctx, time.Now()) }
func (c cycles) RetryCycle(ctx context.Context) error   { return c.disp.RetryCycle(ctx, time.Now()) }

// cleanupGoneTeam drops all records of a team the bot can no longer
// reach. Invoked by the delivery engine on 404 sends.
func (a *App) cleanupGoneTeam(ctx context.Context, teamID string) {
	a.log.Info("team unreachable, removing records", logx.String("team_id", teamID))
	if err := a.store.DeleteTeam(ctx, teamID); err != nil {
		a.log.Error("team cleanup failed", logx.String("team_id", teamID), logx.Err(err))
		return
	}
	if err := a.store.DeleteMembershipsByTeamID(ctx, teamID); err != nil {
		a.log.Error("membership cleanup failed", logx.String("team_id", teamID), logx.Err(err))
	}
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	// Reloads are transactional: a config that fails validation never
	// replaces the running one.
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	a.srv.SetRunner(func(name string, fn func(ctx context.Context)) {
		a.sup.Go0(name, fn)
	})
	a.sup.GoRestart("http", func(ctx context.Context) error {
		return a.srv.Run(ctx)
	})

	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}

	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)

	systemd.NotifyReady()
	systemd.NotifyStatus("serving")
	a.log.Info("app started")
	return nil
}

// reloadLoop applies validated config updates to the running services.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the latest config matters.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, attrs := config.SummarizeChange(lastApplied, newCfg)
			lastApplied = newCfg

			a.logs.Apply(logx.Config{
				Level:   newCfg.Logging.Level,
				Console: newCfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: newCfg.Logging.File.Enabled,
					Path:    newCfg.Logging.File.Path,
				},
			})
			a.engine.Apply(delivery.Config{RatePerSec: newCfg.Delivery.RatePerSec})
			a.disp.Apply(dispatchConfig(newCfg))
			a.sched.Apply(schedulerConfig(newCfg))

			// Server address and bot credential changes need a restart;
			// say so instead of silently ignoring them.
			for _, section := range sections {
				if section == "server" || section == "bot" {
					a.log.Warn("config section needs restart to take effect",
						logx.String("section", section))
				}
			}

			if len(sections) > 0 {
				a.log.Info("config reloaded",
					append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
			} else {
				a.log.Info("config reloaded (no changes)")
			}
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	systemd.NotifyStopping()
	a.log.Info("stopping")

	// Cancel the run context first so loops start unwinding.
	a.sup.Cancel()

	// Each shutdown step is bounded so one component cannot stall the
	// whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem > 0 && rem < max {
					max = rem
				}
			}
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("cron", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("supervisor", 5*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 2*time.Second, func(context.Context) error { return a.store.Close() })

	err := a.sup.Err()
	_ = a.logs.Close()
	return err
}

func dispatchConfig(cfg *config.Config) dispatch.Config {
	return dispatch.Config{
		DaysInAdvance:        cfg.Notifications.DaysInAdvance,
		MinProcessingBuffer:  time.Duration(cfg.Notifications.MinProcessingHours) * time.Hour,
		TimeToPost:           cfg.Notifications.TimeToPost,
		MaxEventsPerCarousel: cfg.Notifications.MaxBatch,
	}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:     cfg.Scheduler.Enabled,
		Timezone:    cfg.Scheduler.Timezone,
		PreviewSpec: firstNonEmpty(cfg.Scheduler.PreviewSpec, scheduler.PreviewSpecFor(cfg.Notifications.TimeToPost)),
		EventSpec:   cfg.Scheduler.EventSpec,
		RetrySpec:   cfg.Scheduler.RetrySpec,
	}
}

func serverConfig(cfg *config.Config) server.Config {
	readTimeout, _ := config.ParseDurationField("server.read_timeout", cfg.Server.ReadTimeout)
	writeTimeout, _ := config.ParseDurationField("server.write_timeout", cfg.Server.WriteTimeout)
	return server.Config{
		Addr:         cfg.Server.Addr,
		SharedSecret: cfg.Server.SharedSecret,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
