package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"soatbot/internal/storage"
	"soatbot/internal/transport"
	logx "soatbot/pkg/logx"
)

type BatchStatus string

const (
	// BatchCompleted means the run processed every due reminder (some items
	// may still have failed individually).
	BatchCompleted BatchStatus = "completed"
	// BatchSkipped means the channel was not ready; nothing was touched.
	BatchSkipped BatchStatus = "skipped"
)

// ItemOutcome is the per-reminder result of one batch run.
type ItemOutcome struct {
	ReminderID string
	Plate      string
	Kind       Kind
	Sent       bool
	Error      string // empty on success
}

// BatchResult aggregates one due-batch run. Item failures never unwind the
// batch; they are accumulated here and recorded on their reminder rows.
type BatchResult struct {
	Status BatchStatus
	Sent   int
	Failed int
	Items  []ItemOutcome
}

// RunDueBatch drains all due reminders through the channel, strictly one at a
// time. If the channel is not ready the whole run is skipped up front with no
// side effects. Storage failures abort the run (outcomes already written stay
// written); delivery failures are recorded per item and retried next run.
func (s *Service) RunDueBatch(ctx context.Context) (BatchResult, error) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	if !s.channel.Ready() {
		s.log.Info("channel not ready; due batch skipped")
		return BatchResult{Status: BatchSkipped}, nil
	}

	due, err := s.store.DueReminders(ctx, s.today())
	if err != nil {
		return BatchResult{}, fmt.Errorf("due query: %w", err)
	}
	res := BatchResult{Status: BatchCompleted}
	if len(due) == 0 {
		s.log.Debug("no due reminders")
		return res, nil
	}
	s.log.Info("due batch started", logx.Int("count", len(due)))

	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		item, err := s.deliverOne(ctx, d)
		if err != nil {
			return res, err
		}
		res.Items = append(res.Items, item)
		if item.Sent {
			res.Sent++
		} else {
			res.Failed++
		}
	}

	s.log.Info("due batch finished", logx.Int("sent", res.Sent), logx.Int("failed", res.Failed))
	return res, nil
}

// deliverOne renders and sends a single reminder and records the outcome.
// The returned error is a storage failure only; channel errors end up in the
// item outcome and the reminder row.
func (s *Service) deliverOne(ctx context.Context, d storage.DueReminder) (ItemOutcome, error) {
	item := ItemOutcome{
		ReminderID: d.Reminder.ID,
		Plate:      d.Vehicle.Plate,
		Kind:       Kind(d.Reminder.Kind),
	}

	rc := RenderContext{
		Plate:         d.Vehicle.Plate,
		DaysRemaining: daysBetween(s.today(), d.Vehicle.ExpiresOn),
		ExpiresOn:     d.Vehicle.ExpiresOn,
	}
	var address string
	if d.Customer != nil {
		rc.Name = d.Customer.Name
		address = transport.NormalizeAddress(d.Customer.Phone)
	}
	text := Render(s.templateBody(ctx, d.Reminder.TenantID, item.Kind), rc)

	now := s.clock()()
	if address == "" {
		// Terminal until an operator fixes the contact info; no send attempted.
		item.Error = noAddressError
		s.log.Warn("reminder has no contact address",
			logx.String("reminder", d.Reminder.ID),
			logx.String("plate", d.Vehicle.Plate))
		return item, s.record(ctx, item, text, now)
	}

	if err := s.pacer().Wait(ctx); err != nil {
		return item, err
	}
	if err := s.channel.SendText(ctx, address, text); err != nil {
		item.Error = err.Error()
		s.log.Warn("reminder delivery failed",
			logx.String("reminder", d.Reminder.ID),
			logx.String("plate", d.Vehicle.Plate),
			logx.Err(err))
		return item, s.record(ctx, item, text, now)
	}

	item.Sent = true
	s.log.Debug("reminder delivered",
		logx.String("reminder", d.Reminder.ID),
		logx.String("plate", d.Vehicle.Plate),
		logx.String("kind", string(item.Kind)))
	return item, s.record(ctx, item, text, now)
}

func (s *Service) record(ctx context.Context, item ItemOutcome, text string, at time.Time) error {
	err := s.store.RecordOutcome(ctx, item.ReminderID, storage.Outcome{
		Sent:      item.Sent,
		SentAt:    at,
		Message:   text,
		LastError: item.Error,
	})
	if err != nil {
		return fmt.Errorf("record outcome %s: %w", item.ReminderID, err)
	}
	return nil
}

// templateBody resolves the tenant's template for a kind, degrading to the
// built-in default on miss or on storage trouble (a broken template table
// must not stop reminders from going out).
func (s *Service) templateBody(ctx context.Context, tenantID string, kind Kind) string {
	t, err := s.store.TemplateFor(ctx, tenantID, string(kind))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("template lookup failed; using default",
				logx.String("tenant", tenantID),
				logx.String("kind", string(kind)),
				logx.Err(err))
		}
		return DefaultTemplate(kind)
	}
	return t.Body
}

// SendTo delivers an ad-hoc message outside the reminder flow. The same
// channel-readiness precondition and pacing apply.
func (s *Service) SendTo(ctx context.Context, address, text string) error {
	if !s.channel.Ready() {
		return ErrChannelUnavailable
	}
	addr := transport.NormalizeAddress(address)
	if addr == "" {
		return errors.New("empty contact address")
	}
	if err := s.pacer().Wait(ctx); err != nil {
		return err
	}
	return s.channel.SendText(ctx, addr, text)
}

// PendingCount reports how many reminders are still unsent.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.store.PendingCount(ctx)
}
