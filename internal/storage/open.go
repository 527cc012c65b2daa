package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "soatbot/pkg/logx"
)

var ErrNotFound = errors.New("not found")

// Config configures storage.
//
// Driver values: "sqlite" (default) or "memory".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the reminder engine.
//
// All writes are single-row transactions; a batch never holds a transaction
// across several reminders, so an aborted batch keeps previously committed
// outcomes.
type Store interface {
	UpsertTenant(ctx context.Context, t Tenant) error
	UpsertCustomer(ctx context.Context, c Customer) error

	UpsertVehicle(ctx context.Context, v Vehicle) error
	GetVehicle(ctx context.Context, id string) (Vehicle, error)
	ListActiveVehicles(ctx context.Context) ([]Vehicle, error)
	DeleteVehicle(ctx context.Context, id string) error // cascades reminders

	// CreateReminderIfAbsent inserts r unless a reminder for
	// (r.VehicleID, r.Kind) already exists. Reports whether a row was created.
	CreateReminderIfAbsent(ctx context.Context, r Reminder) (bool, error)
	// DeleteUnsentReminders removes all reminders for the vehicle with
	// sent = false, returning the number removed. Sent rows are history and
	// are never touched.
	DeleteUnsentReminders(ctx context.Context, vehicleID string) (int, error)
	RemindersForVehicle(ctx context.Context, vehicleID string) ([]Reminder, error)

	// DueReminders returns all unsent reminders scheduled on or before today,
	// joined with vehicle, customer and tenant, ordered by (scheduled_on, id).
	DueReminders(ctx context.Context, today time.Time) ([]DueReminder, error)
	// RecordOutcome writes the delivery bookkeeping for one reminder.
	RecordOutcome(ctx context.Context, reminderID string, o Outcome) error
	// PendingCount reports how many reminders are still unsent (any date).
	PendingCount(ctx context.Context) (int, error)

	UpsertTemplate(ctx context.Context, t Template) error
	// TemplateFor returns the tenant's active template for a kind.
	// ErrNotFound means the caller should fall back to the built-in default.
	TemplateFor(ctx context.Context, tenantID, kind string) (Template, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
