package devicestore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Lookup when device_id has no credential record.
var ErrNotFound = errors.New("device not found")

// ErrDuplicateDevice is returned at load time when the source contains two
// rows for the same device_id.
var ErrDuplicateDevice = errors.New("duplicate device_id in credential source")

// ErrSecretTooShort is returned at load time when a shared_secret is
// shorter than MinSecretLen.
var ErrSecretTooShort = errors.New("shared_secret shorter than minimum length")

// Store resolves a device_id to its shared secret. Implementations are
// immutable after Load: dynamic reload is out of scope for this core.
type Store interface {
	// Lookup returns the device record (carrying its shared secret), or
	// ErrNotFound.
	Lookup(deviceID string) (*Device, error)

	// Len reports how many devices are loaded, for readiness reporting.
	Len() int
}

// Loader populates a Store from a persistent source at process start.
type Loader interface {
	Load(ctx context.Context) (Store, error)
}

func validateRow(d Device) error {
	if d.DeviceID == "" {
		return fmt.Errorf("empty device_id")
	}
	if len(d.SharedSecret) < MinSecretLen {
		return fmt.Errorf("%w: device_id=%s len=%d", ErrSecretTooShort, d.DeviceID, len(d.SharedSecret))
	}
	return nil
}
