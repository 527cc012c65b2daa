package reminder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"soatbot/internal/storage"
	logx "soatbot/pkg/logx"
)

// EnsureReminders makes sure one reminder instance exists per lead-time kind
// for the vehicle, computing scheduledOn = expiry - offset (calendar days).
// Existing instances are never touched; the returned slice holds only the
// newly created ones, so calling twice in a row returns an empty slice.
func (s *Service) EnsureReminders(ctx context.Context, vehicleID string) ([]storage.Reminder, error) {
	v, err := s.store.GetVehicle(ctx, vehicleID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load vehicle: %w", err)
	}
	if v.ExpiresOn.IsZero() {
		return nil, ErrNoExpiry
	}

	var created []storage.Reminder
	for _, lt := range LeadTimes {
		r := storage.Reminder{
			ID:          uuid.NewString(),
			TenantID:    v.TenantID,
			VehicleID:   v.ID,
			Kind:        string(lt.Kind),
			ScheduledOn: v.ExpiresOn.AddDate(0, 0, -lt.Days),
		}
		ok, err := s.store.CreateReminderIfAbsent(ctx, r)
		if err != nil {
			return created, fmt.Errorf("create reminder %s/%s: %w", v.ID, lt.Kind, err)
		}
		if ok {
			created = append(created, r)
		}
	}
	if len(created) > 0 {
		s.log.Debug("reminders created",
			logx.String("vehicle", v.ID),
			logx.String("plate", v.Plate),
			logx.Int("count", len(created)))
	}
	return created, nil
}

// Reschedule drops the vehicle's unsent reminders and recomputes the full set
// from the current expiry date. This is the required sequence after an expiry
// change; it is deliberately two explicit steps so sent rows stay as history.
func (s *Service) Reschedule(ctx context.Context, vehicleID string) ([]storage.Reminder, error) {
	removed, err := s.store.DeleteUnsentReminders(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("delete unsent reminders: %w", err)
	}
	if removed > 0 {
		s.log.Debug("unsent reminders dropped",
			logx.String("vehicle", vehicleID),
			logx.Int("count", removed))
	}
	return s.EnsureReminders(ctx, vehicleID)
}

// ReconcileFleet runs EnsureReminders over every active vehicle. It is the
// safety net for vehicles added by bulk import or edits that bypassed
// creation-time scheduling. Per-vehicle failures are logged and skipped.
func (s *Service) ReconcileFleet(ctx context.Context) (int, error) {
	vehicles, err := s.store.ListActiveVehicles(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active vehicles: %w", err)
	}

	created := 0
	for _, v := range vehicles {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		rs, err := s.EnsureReminders(ctx, v.ID)
		if err != nil {
			// Vehicles without an expiry are expected here; anything else is worth a warning.
			if errors.Is(err, ErrNoExpiry) {
				continue
			}
			s.log.Warn("reconcile: vehicle skipped",
				logx.String("vehicle", v.ID),
				logx.String("plate", v.Plate),
				logx.Err(err))
			continue
		}
		created += len(rs)
	}
	s.log.Info("fleet reconciled",
		logx.Int("vehicles", len(vehicles)),
		logx.Int("created", created))
	return created, nil
}
