package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"soatbot/internal/storage"
	logx "soatbot/pkg/logx"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T, store storage.Store, ch *fakeChannel) *Service {
	t.Helper()
	if ch == nil {
		ch = &fakeChannel{ready: true}
	}
	s := New(Config{SendDelay: time.Millisecond}, store, ch, logx.Nop())
	return s
}

func seedVehicle(t *testing.T, store storage.Store, v storage.Vehicle) {
	t.Helper()
	if err := store.UpsertVehicle(context.Background(), v); err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
}

func TestEnsureRemindersOffsets(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	seedVehicle(t, store, storage.Vehicle{
		ID: "v1", TenantID: "t1", Plate: "ABC123",
		ExpiresOn: date(2025, time.December, 1), Active: true,
	})
	s := newTestService(t, store, nil)

	created, err := s.EnsureReminders(context.Background(), "v1")
	if err != nil {
		t.Fatalf("EnsureReminders: %v", err)
	}
	if len(created) != len(LeadTimes) {
		t.Fatalf("created %d reminders, want %d", len(created), len(LeadTimes))
	}

	want := map[Kind]time.Time{
		Kind30Days: date(2025, time.November, 1),
		Kind15Days: date(2025, time.November, 16),
		Kind7Days:  date(2025, time.November, 24),
		Kind5Days:  date(2025, time.November, 26),
		Kind1Day:   date(2025, time.November, 30),
	}
	for _, r := range created {
		exp, ok := want[Kind(r.Kind)]
		if !ok {
			t.Fatalf("unexpected kind %q", r.Kind)
		}
		if !r.ScheduledOn.Equal(exp) {
			t.Fatalf("kind %s scheduled on %s, want %s",
				r.Kind, r.ScheduledOn.Format(storage.DateLayout), exp.Format(storage.DateLayout))
		}
		if r.TenantID != "t1" || r.VehicleID != "v1" {
			t.Fatalf("reminder scoped wrong: %+v", r)
		}
	}
}

func TestEnsureRemindersIdempotent(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	seedVehicle(t, store, storage.Vehicle{
		ID: "v1", TenantID: "t1", Plate: "ABC123",
		ExpiresOn: date(2026, time.March, 10), Active: true,
	})
	s := newTestService(t, store, nil)

	first, err := s.EnsureReminders(context.Background(), "v1")
	if err != nil {
		t.Fatalf("first EnsureReminders: %v", err)
	}
	second, err := s.EnsureReminders(context.Background(), "v1")
	if err != nil {
		t.Fatalf("second EnsureReminders: %v", err)
	}
	if len(first) != len(LeadTimes) || len(second) != 0 {
		t.Fatalf("created %d then %d, want %d then 0", len(first), len(second), len(LeadTimes))
	}

	all, err := store.RemindersForVehicle(context.Background(), "v1")
	if err != nil {
		t.Fatalf("RemindersForVehicle: %v", err)
	}
	if len(all) != len(LeadTimes) {
		t.Fatalf("%d reminders stored, want %d", len(all), len(LeadTimes))
	}
}

func TestEnsureRemindersErrors(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	seedVehicle(t, store, storage.Vehicle{ID: "noexp", TenantID: "t1", Plate: "XX", Active: true})
	s := newTestService(t, store, nil)

	if _, err := s.EnsureReminders(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing vehicle: err = %v, want ErrNotFound", err)
	}
	if _, err := s.EnsureReminders(context.Background(), "noexp"); !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("no expiry: err = %v, want ErrNoExpiry", err)
	}
}

func TestReschedulePreservesSentHistory(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	ctx := context.Background()
	seedVehicle(t, store, storage.Vehicle{
		ID: "v1", TenantID: "t1", Plate: "ABC123",
		ExpiresOn: date(2025, time.December, 1), Active: true,
	})
	s := newTestService(t, store, nil)

	if _, err := s.EnsureReminders(ctx, "v1"); err != nil {
		t.Fatalf("EnsureReminders: %v", err)
	}
	all, _ := store.RemindersForVehicle(ctx, "v1")
	// Mark the 30d reminder delivered; it must survive the reschedule.
	var sentID string
	for _, r := range all {
		if r.Kind == string(Kind30Days) {
			sentID = r.ID
		}
	}
	if err := store.RecordOutcome(ctx, sentID, storage.Outcome{Sent: true, SentAt: time.Now(), Message: "m"}); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}

	seedVehicle(t, store, storage.Vehicle{
		ID: "v1", TenantID: "t1", Plate: "ABC123",
		ExpiresOn: date(2026, time.June, 1), Active: true,
	})
	created, err := s.Reschedule(ctx, "v1")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	// The sent 30d row blocks re-creation of that kind; the other four recompute.
	if len(created) != len(LeadTimes)-1 {
		t.Fatalf("created %d reminders, want %d", len(created), len(LeadTimes)-1)
	}
	for _, r := range created {
		if r.Kind == string(Kind30Days) {
			t.Fatal("sent kind was re-created")
		}
		days, _ := DaysFor(Kind(r.Kind))
		wantOn := date(2026, time.June, 1).AddDate(0, 0, -days)
		if !r.ScheduledOn.Equal(wantOn) {
			t.Fatalf("kind %s scheduled on %s, want %s",
				r.Kind, r.ScheduledOn.Format(storage.DateLayout), wantOn.Format(storage.DateLayout))
		}
	}

	after, _ := store.RemindersForVehicle(ctx, "v1")
	if len(after) != len(LeadTimes) {
		t.Fatalf("%d reminders after reschedule, want %d", len(after), len(LeadTimes))
	}
	for _, r := range after {
		if r.ID == sentID && !r.Sent {
			t.Fatal("sent reminder lost its delivered state")
		}
	}
}

func TestReconcileFleetSkipsVehiclesWithoutExpiry(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	seedVehicle(t, store, storage.Vehicle{
		ID: "v1", TenantID: "t1", Plate: "AAA111",
		ExpiresOn: date(2026, time.January, 15), Active: true,
	})
	seedVehicle(t, store, storage.Vehicle{ID: "v2", TenantID: "t1", Plate: "BBB222", Active: true})
	seedVehicle(t, store, storage.Vehicle{
		ID: "v3", TenantID: "t1", Plate: "CCC333",
		ExpiresOn: date(2026, time.February, 20), Active: false,
	})
	s := newTestService(t, store, nil)

	created, err := s.ReconcileFleet(context.Background())
	if err != nil {
		t.Fatalf("ReconcileFleet: %v", err)
	}
	if created != len(LeadTimes) {
		t.Fatalf("created %d reminders, want %d (one schedulable vehicle)", created, len(LeadTimes))
	}
	if rs, _ := store.RemindersForVehicle(context.Background(), "v3"); len(rs) != 0 {
		t.Fatalf("inactive vehicle got %d reminders", len(rs))
	}
}
