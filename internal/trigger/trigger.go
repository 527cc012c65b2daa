// Package trigger owns the two time-based schedules of the reminder engine:
// the business-hours delivery window and the daily fleet reconciliation.
package trigger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "soatbot/pkg/logx"
)

const (
	// DefaultDeliverySpec fires hourly on weekdays during business hours.
	// Sending at night or on weekends gets the sender flagged as spam.
	DefaultDeliverySpec = "0 8-18 * * 1-5"
	// DefaultReconcileSpec runs once daily before the delivery window opens.
	DefaultReconcileSpec = "0 7 * * *"
)

type Config struct {
	Timezone      string // IANA TZ; empty = process local time
	DeliverySpec  string
	ReconcileSpec string
}

// Jobs are the two entry points the trigger invokes. Both must tolerate
// overlap with manual invocations (scheduling is idempotent and delivery
// only touches unsent rows).
type Jobs struct {
	Delivery  func(ctx context.Context)
	Reconcile func(ctx context.Context)
}

type Service struct {
	mu   sync.Mutex
	cfg  Config
	jobs Jobs
	log  logx.Logger

	parser cron.Parser
	c      *cron.Cron
	ctx    context.Context
}

func New(cfg Config, jobs Jobs, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		jobs:   jobs,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Validate checks that cfg's cron specs and timezone parse. Used by the
// config-reload validator before committing a new config.
func (s *Service) Validate(cfg Config) error {
	if _, err := s.parser.Parse(specOrDefault(cfg.DeliverySpec, DefaultDeliverySpec)); err != nil {
		return fmt.Errorf("delivery_spec: %w", err)
	}
	if _, err := s.parser.Parse(specOrDefault(cfg.ReconcileSpec, DefaultReconcileSpec)); err != nil {
		return fmt.Errorf("reconcile_spec: %w", err)
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("timezone: invalid %q: %w", tz, err)
		}
	}
	return nil
}

// Apply swaps specs/timezone at runtime by restarting the cron runner.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := cfg != s.cfg
	s.cfg = cfg
	if s.c == nil || !changed {
		return
	}
	s.stopLocked()
	s.startLocked()
}

// Start begins triggering. An in-flight job is never forcibly aborted on
// Stop; each job run gets the service's run context for cooperative cancel.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx = ctx
	s.startLocked()
}

func (s *Service) startLocked() {
	loc := s.loadLocationLocked()
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))

	deliverySpec := specOrDefault(s.cfg.DeliverySpec, DefaultDeliverySpec)
	reconcileSpec := specOrDefault(s.cfg.ReconcileSpec, DefaultReconcileSpec)

	runCtx := s.ctx
	if s.jobs.Delivery != nil {
		if _, err := c.AddFunc(deliverySpec, func() { s.jobs.Delivery(runCtx) }); err != nil {
			s.log.Error("delivery schedule rejected", logx.String("spec", deliverySpec), logx.Err(err))
		}
	}
	if s.jobs.Reconcile != nil {
		if _, err := c.AddFunc(reconcileSpec, func() { s.jobs.Reconcile(runCtx) }); err != nil {
			s.log.Error("reconcile schedule rejected", logx.String("spec", reconcileSpec), logx.Err(err))
		}
	}

	c.Start()
	s.c = c
	s.log.Info("trigger started",
		logx.String("tz", loc.String()),
		logx.String("delivery", deliverySpec),
		logx.String("reconcile", reconcileSpec))
}

// Stop stops triggering and waits for a running job to finish (bounded by ctx).
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	s.log.Info("trigger stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) stopLocked() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func specOrDefault(spec, def string) string {
	if strings.TrimSpace(spec) == "" {
		return def
	}
	return spec
}
