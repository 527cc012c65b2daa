// Package reminder implements the expiration-reminder engine: computing which
// reminder instances must exist for a vehicle, selecting the ones whose date
// has arrived, rendering their message text, and draining them through the
// messaging channel one at a time with paced sends and per-item bookkeeping.
package reminder
