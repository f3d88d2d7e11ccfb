package validator

import "errors"

// Sentinel errors, one per rejection reason in the canonical order. The
// validator always returns one of these (wrapped with context) or nil.
var (
	// ErrMalformed covers schema/shape failures: missing fields, wrong
	// primitive kinds, unknown fields, or a signature that isn't 64 hex
	// characters.
	ErrMalformed = errors.New("malformed")

	// ErrIdentityMismatch is returned when the message's device_id does
	// not equal the transport session's verified identity.
	ErrIdentityMismatch = errors.New("identity_mismatch")

	// ErrStale is returned when the message's timestamp falls outside the
	// configured skew budget.
	ErrStale = errors.New("stale")

	// ErrReplay is returned when (device_id, message_id) was already
	// observed.
	ErrReplay = errors.New("replay")

	// ErrUnknownDevice is returned when device_id has no entry in the
	// credential store.
	ErrUnknownDevice = errors.New("unknown_device")

	// ErrBadSignature is returned when the recomputed MAC does not match
	// the claimed signature.
	ErrBadSignature = errors.New("bad_signature")
)

// Reason returns the canonical short string for a rejection error, or ""
// if err is not one of the sentinel rejection reasons.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrIdentityMismatch):
		return "identity_mismatch"
	case errors.Is(err, ErrStale):
		return "stale"
	case errors.Is(err, ErrReplay):
		return "replay"
	case errors.Is(err, ErrUnknownDevice):
		return "unknown_device"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	default:
		return ""
	}
}
