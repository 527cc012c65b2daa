// Package app wires soatbot together: config, logging, storage, the
// messaging channel, the reminder engine and its periodic trigger.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"soatbot/internal/config"
	"soatbot/internal/reminder"
	"soatbot/internal/runtime/supervisor"
	"soatbot/internal/storage"
	"soatbot/internal/transport/telegram"
	"soatbot/internal/trigger"
	logx "soatbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	channel *telegram.Adapter
	rem     *reminder.Service
	trig    *trigger.Service

	ownerMu sync.Mutex
	owners  []int64
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
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
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	channel, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	sendDelay, err := config.ParseDurationOrDefault("reminders.send_delay", cfg.Reminders.SendDelay, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rem := reminder.New(reminder.Config{SendDelay: sendDelay},
		store, channel, log.With(logx.String("comp", "reminder")))

	trig := trigger.New(trigger.Config{
		Timezone:      cfg.Reminders.Timezone,
		DeliverySpec:  cfg.Reminders.DeliverySpec,
		ReconcileSpec: cfg.Reminders.ReconcileSpec,
	}, trigger.Jobs{
		Delivery: func(ctx context.Context) {
			if _, err := rem.RunDueBatch(ctx); err != nil {
				log.Error("due batch failed", logx.Err(err))
			}
		},
		Reconcile: func(ctx context.Context) {
			if _, err := rem.ReconcileFleet(ctx); err != nil {
				log.Error("fleet reconciliation failed", logx.Err(err))
			}
		},
	}, log.With(logx.String("comp", "trigger")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		channel: channel,
		rem:     rem,
		trig:    trig,
		owners:  cfg.Telegram.OwnerUserIDs,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
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

	// Reloaded configs are validated before they are committed; a broken edit
	// keeps the running config.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return err
		}
		if _, err := config.ParseDurationField("reminders.send_delay", cfg.Reminders.SendDelay); err != nil {
			return err
		}
		if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
		return a.trig.Validate(trigger.Config{
			Timezone:      cfg.Reminders.Timezone,
			DeliverySpec:  cfg.Reminders.DeliverySpec,
			ReconcileSpec: cfg.Reminders.ReconcileSpec,
		})
	})

	a.channel.OnCommand(a.handleCommand)
	if err := a.channel.Start(a.sup.Context()); err != nil {
		return err
	}
	a.trig.Start(a.sup.Context())

	// config reload fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(newCfg)
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	sendDelay, err := config.ParseDurationOrDefault("reminders.send_delay", cfg.Reminders.SendDelay, 2*time.Second)
	if err == nil {
		a.rem.Apply(reminder.Config{SendDelay: sendDelay})
	}

	a.trig.Apply(trigger.Config{
		Timezone:      cfg.Reminders.Timezone,
		DeliverySpec:  cfg.Reminders.DeliverySpec,
		ReconcileSpec: cfg.Reminders.ReconcileSpec,
	})

	a.ownerMu.Lock()
	a.owners = cfg.Telegram.OwnerUserIDs
	a.ownerMu.Unlock()

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Run each shutdown step with an upper bound so one component can't
	// stall the whole stop.
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

	// An in-flight batch runs to completion; each channel call is a bounded
	// network round trip owned by the adapter.
	step("trigger", 4*time.Second, func(c context.Context) error { a.trig.Stop(c); return nil })
	step("channel", 2*time.Second, func(c context.Context) error { return a.channel.Stop(c) })
	step("storage", 1*time.Second, func(context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}
