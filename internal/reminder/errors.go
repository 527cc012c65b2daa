package reminder

import "errors"

var (
	// ErrNotFound means the vehicle does not exist.
	ErrNotFound = errors.New("vehicle not found")
	// ErrNoExpiry means the vehicle has no expiration date to schedule from.
	ErrNoExpiry = errors.New("vehicle has no expiration date")
	// ErrChannelUnavailable means the messaging channel is not ready.
	// A due batch treats this as a precondition (whole run skipped), not a failure.
	ErrChannelUnavailable = errors.New("messaging channel not ready")
)

// noAddressError is recorded on a reminder whose customer has no usable
// contact address. The instance is terminal until an operator intervenes;
// the due query keeps returning it but every run records the same outcome.
const noAddressError = "customer has no contact address"
