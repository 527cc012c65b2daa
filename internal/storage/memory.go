package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a map-backed Store. It mirrors the sqlite driver's semantics
// (including the (vehicle, kind) uniqueness guarantee) and is what tests use.
type Memory struct {
	mu sync.Mutex

	tenants   map[string]Tenant
	customers map[string]Customer
	vehicles  map[string]Vehicle
	reminders map[string]Reminder
	templates map[string]Template // key: tenantID + "/" + kind
}

func NewMemory() *Memory {
	return &Memory{
		tenants:   map[string]Tenant{},
		customers: map[string]Customer{},
		vehicles:  map[string]Vehicle{},
		reminders: map[string]Reminder{},
		templates: map[string]Template{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) UpsertTenant(_ context.Context, t Tenant) error {
	m.mu.Lock()
	m.tenants[t.ID] = t
	m.mu.Unlock()
	return nil
}

func (m *Memory) UpsertCustomer(_ context.Context, c Customer) error {
	m.mu.Lock()
	m.customers[c.ID] = c
	m.mu.Unlock()
	return nil
}

func (m *Memory) UpsertVehicle(_ context.Context, v Vehicle) error {
	m.mu.Lock()
	m.vehicles[v.ID] = v
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetVehicle(_ context.Context, id string) (Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return Vehicle{}, ErrNotFound
	}
	return v, nil
}

func (m *Memory) ListActiveVehicles(_ context.Context) ([]Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Vehicle
	for _, v := range m.vehicles {
		if v.Active {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TenantID != out[j].TenantID {
			return out[i].TenantID < out[j].TenantID
		}
		return out[i].Plate < out[j].Plate
	})
	return out, nil
}

func (m *Memory) DeleteVehicle(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[id]; !ok {
		return ErrNotFound
	}
	delete(m.vehicles, id)
	for rid, r := range m.reminders {
		if r.VehicleID == id {
			delete(m.reminders, rid)
		}
	}
	return nil
}

func (m *Memory) CreateReminderIfAbsent(_ context.Context, r Reminder) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reminders {
		if existing.VehicleID == r.VehicleID && existing.Kind == r.Kind {
			return false, nil
		}
	}
	r.Sent = false
	m.reminders[r.ID] = r
	return true, nil
}

func (m *Memory) DeleteUnsentReminders(_ context.Context, vehicleID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.reminders {
		if r.VehicleID == vehicleID && !r.Sent {
			delete(m.reminders, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) RemindersForVehicle(_ context.Context, vehicleID string) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reminder
	for _, r := range m.reminders {
		if r.VehicleID == vehicleID {
			out = append(out, r)
		}
	}
	sortReminders(out)
	return out, nil
}

func (m *Memory) DueReminders(_ context.Context, today time.Time) ([]DueReminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := today.Format(DateLayout)
	var due []Reminder
	for _, r := range m.reminders {
		if !r.Sent && r.ScheduledOn.Format(DateLayout) <= day {
			due = append(due, r)
		}
	}
	sortReminders(due)

	out := make([]DueReminder, 0, len(due))
	for _, r := range due {
		d := DueReminder{Reminder: r}
		v, ok := m.vehicles[r.VehicleID]
		if !ok {
			continue
		}
		d.Vehicle = v
		if v.CustomerID != "" {
			if c, ok := m.customers[v.CustomerID]; ok {
				cc := c
				d.Customer = &cc
			}
		}
		d.Tenant = m.tenants[r.TenantID]
		out = append(out, d)
	}
	return out, nil
}

func (m *Memory) RecordOutcome(_ context.Context, reminderID string, o Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[reminderID]
	if !ok {
		return ErrNotFound
	}
	r.Sent = o.Sent
	r.SentAt = o.SentAt
	r.Message = o.Message
	r.LastError = o.LastError
	m.reminders[reminderID] = r
	return nil
}

func (m *Memory) PendingCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.reminders {
		if !r.Sent {
			n++
		}
	}
	return n, nil
}

func (m *Memory) UpsertTemplate(_ context.Context, t Template) error {
	m.mu.Lock()
	m.templates[templateKey(t.TenantID, t.Kind)] = t
	m.mu.Unlock()
	return nil
}

func (m *Memory) TemplateFor(_ context.Context, tenantID, kind string) (Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[templateKey(tenantID, kind)]
	if !ok || !t.Active {
		return Template{}, ErrNotFound
	}
	return t, nil
}

func templateKey(tenantID, kind string) string {
	return strings.TrimSpace(tenantID) + "/" + strings.TrimSpace(kind)
}

func sortReminders(rs []Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].ScheduledOn.Equal(rs[j].ScheduledOn) {
			return rs[i].ScheduledOn.Before(rs[j].ScheduledOn)
		}
		return rs[i].ID < rs[j].ID
	})
}
