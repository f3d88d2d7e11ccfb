package devicestore

// memoryStore is the immutable, load-once Store implementation. It backs
// both the Postgres loader's result and tests.
type memoryStore struct {
	devices map[string]Device
}

// NewMemoryStore builds a Store directly from a slice of rows, validating
// and rejecting duplicates the same way the Postgres loader does. Used by
// tests and by any loader that has already materialized its rows.
func NewMemoryStore(rows []Device) (Store, error) {
	devices := make(map[string]Device, len(rows))
	for _, row := range rows {
		if err := validateRow(row); err != nil {
			return nil, err
		}
		if _, exists := devices[row.DeviceID]; exists {
			return nil, ErrDuplicateDevice
		}
		devices[row.DeviceID] = row
	}
	return &memoryStore{devices: devices}, nil
}

func (s *memoryStore) Lookup(deviceID string) (*Device, error) {
	d, ok := s.devices[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *memoryStore) Len() int {
	return len(s.devices)
}
