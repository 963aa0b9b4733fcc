package composition

import "errors"

// Domain-level errors shared by every access-layer component (§7).
var (
	ErrInvalidArgument = errors.New("meshaccess: invalid argument")
	ErrNotFound        = errors.New("meshaccess: not found")
	ErrOutOfMemory     = errors.New("meshaccess: relation table full")
	ErrNoBuffer        = errors.New("meshaccess: response would not fit")
	ErrAddressUnassigned = errors.New("meshaccess: address unassigned")
	ErrMessageTooLarge = errors.New("meshaccess: message too large")
	ErrNotProvisioned  = errors.New("meshaccess: node not provisioned")
	ErrNotSupported    = errors.New("meshaccess: feature not compiled in")
)
