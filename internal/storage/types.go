package storage

import "time"

// DateLayout is the storage form of date-only columns (expiry and scheduled
// dates carry no time-of-day component).
const DateLayout = "2006-01-02"

// Tenant is the owning account for a fleet. The core only needs its id for
// scoping and its name for rendering context.
type Tenant struct {
	ID   string
	Name string
}

// Customer owns zero or more vehicles. Phone is the messaging address
// (digits, country code included); empty means no contact address.
type Customer struct {
	ID       string
	TenantID string
	Name     string
	Phone    string
}

// Vehicle is the tracked asset. ExpiresOn is the date driving all reminders;
// its zero value means the expiry is not set yet.
type Vehicle struct {
	ID         string
	TenantID   string
	CustomerID string // empty = no customer attached
	Plate      string
	ExpiresOn  time.Time // date-only
	Active     bool
}

// Reminder is one scheduled notification for a (vehicle, kind) pair.
// At most one row exists per pair; the store enforces it.
type Reminder struct {
	ID          string
	TenantID    string
	VehicleID   string
	Kind        string
	ScheduledOn time.Time // date-only
	Sent        bool
	SentAt      time.Time // zero = delivery never attempted
	Message     string    // rendered text of the last attempt
	LastError   string    // empty = last attempt succeeded (or none yet)
}

// Template is a tenant's message template for one reminder kind.
type Template struct {
	ID       string
	TenantID string
	Kind     string
	Body     string
	Active   bool
}

// DueReminder is a reminder joined with its delivery context.
type DueReminder struct {
	Reminder Reminder
	Vehicle  Vehicle
	Customer *Customer // nil when the vehicle has no customer
	Tenant   Tenant
}

// Outcome is the per-reminder delivery bookkeeping written after an attempt.
type Outcome struct {
	Sent    bool
	SentAt  time.Time
	Message string
	// LastError is the channel/validation error of a failed attempt.
	// Empty clears any previous error.
	LastError string
}
