// Package storage persists the reminder domain: tenants, customers, vehicles,
// reminder instances and message templates.
//
// Two drivers exist:
//   - "sqlite": the production store (single file, WAL)
//   - "memory": map-backed store used by tests and ephemeral setups
//
// Every record carries its owning tenant id. Reminder uniqueness per
// (vehicle, kind) is enforced by the store, not by callers.
package storage
