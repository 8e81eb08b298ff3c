// services/hal/internal/halerr/errors.go
package halerr

import "errors"

var (
	// Service/control plane
	ErrBusy           = errors.New("busy")
	ErrInvalidCapAddr = errors.New("invalid_capability_address")
	ErrUnknownCap     = errors.New("unknown_capability")
	ErrUnknownDevice  = errors.New("unknown_device")

	// Build/config
	ErrMissingBusRef = errors.New("missing_bus_ref")
	ErrUnknownBus    = errors.New("unknown_bus")
	ErrUnknownType   = errors.New("unknown_device_type")
	ErrInvalidParams = errors.New("invalid_params")

	// Generic / pass-through
	ErrUnsupported = errors.New("unsupported")
)
