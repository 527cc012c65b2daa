package reminder

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"soatbot/internal/storage"
	"soatbot/internal/transport"
	logx "soatbot/pkg/logx"
)

// Config controls the reminder engine.
type Config struct {
	// SendDelay is the fixed pause between consecutive channel sends.
	// The channel is a single shared session; pacing is part of the delivery
	// contract, not an optimization. Default 2s.
	SendDelay time.Duration
}

// Service is the reminder engine. It is safe for concurrent use, but
// delivery batches are serialized internally: the channel session cannot
// interleave sends.
type Service struct {
	mu  sync.Mutex
	cfg Config

	store   storage.Store
	channel transport.Channel
	log     logx.Logger

	now     func() time.Time
	limiter *rate.Limiter

	// batchMu serializes RunDueBatch; an overlapping manual trigger just
	// waits and then finds fewer (or no) due items.
	batchMu sync.Mutex
}

func New(cfg Config, store storage.Store, channel transport.Channel, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		store:   store,
		channel: channel,
		log:     log,
		now:     time.Now,
	}
	s.applyLocked(cfg)
	return s
}

// SetClock replaces the time source (tests).
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Apply updates the engine config (send pacing) at runtime.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.SendDelay <= 0 {
		cfg.SendDelay = 2 * time.Second
	}
	s.cfg = cfg
	// One send per delay interval; burst 1 lets the first item go immediately.
	s.limiter = rate.NewLimiter(rate.Every(cfg.SendDelay), 1)
}

func (s *Service) clock() func() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Service) pacer() *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limiter
}

// today is the current calendar date at midnight UTC, built from the wall
// clock's local date. All stored dates are date-only, so comparisons stay at
// midnight granularity.
func (s *Service) today() time.Time {
	return dateOnly(s.clock()())
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns to - from in whole calendar days.
func daysBetween(from, to time.Time) int {
	return int(dateOnly(to).Sub(dateOnly(from)).Hours() / 24)
}
