// Package devicestore implements the Credential Store (C1): a read-only,
// load-once mapping from device_id to shared HMAC secret.
package devicestore

import "time"

// Device is a single row of the devices table.
//
// device_id is a primary key; the loader rejects duplicates at load time.
type Device struct {
	DeviceID     string
	SharedSecret []byte
	CreatedAt    time.Time
}

// MinSecretLen is the minimum accepted shared-secret length in bytes,
// per the Data Model invariant in spec.md §3.
const MinSecretLen = 16
