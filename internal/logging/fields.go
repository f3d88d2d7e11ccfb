package logging

import "log/slog"

// Common field names for consistent logging across the gateway.
const (
	FieldService     = "service"
	FieldDeviceID    = "device_id"
	FieldTLSIdentity = "tls_identity"
	FieldMessageID   = "message_id"
	FieldReason      = "reason"
	FieldDelta       = "delta_seconds"
	FieldStatus      = "status"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// DeviceID returns a slog attribute for the claimed device_id.
func DeviceID(id string) slog.Attr {
	return slog.String(FieldDeviceID, id)
}

// TLSIdentity returns a slog attribute for the verified transport identity.
func TLSIdentity(cn string) slog.Attr {
	return slog.String(FieldTLSIdentity, cn)
}

// MessageID returns a slog attribute for a message_id.
func MessageID(id string) slog.Attr {
	return slog.String(FieldMessageID, id)
}

// Reason returns a slog attribute for a rejection reason.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

// Delta returns a slog attribute for a freshness delta in seconds.
func Delta(seconds int64) slog.Attr {
	return slog.Int64(FieldDelta, seconds)
}

// Duration returns a slog attribute for a duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
