// Package validator implements the Message Validator (C5): the fixed
// five-step ordered pipeline that turns (tls_identity, raw_bytes) into
// either an accepted (device_id, payload) pair or a named rejection
// reason. Every step is peer-induced and non-fatal. Only the sentinel
// rejection errors are returned: any credential store lookup failure is
// reported as unknown_device.
package validator

import (
	"fmt"

	"github.com/beacongate/iot-gateway/internal/clock"
	"github.com/beacongate/iot-gateway/internal/devicestore"
	"github.com/beacongate/iot-gateway/internal/replaycache"
	"github.com/beacongate/iot-gateway/internal/signer"
)

// Accepted is the outcome of a successful validation: the self-claimed
// device_id (now confirmed equal to the transport identity) and the
// verbatim payload bytes, ready to forward unchanged.
type Accepted struct {
	DeviceID  string
	MessageID string
	Payload   []byte
}

// RejectionError names why a message was rejected, plus any detail the
// caller may want to log. Reason(err) recovers the canonical short string.
type RejectionError struct {
	cause error
	Delta int64 // set only for ErrStale: timestamp - now
}

func (e *RejectionError) Error() string {
	if e.cause == ErrStale {
		return fmt.Sprintf("%s (delta=%d)", e.cause, e.Delta)
	}
	return e.cause.Error()
}

func (e *RejectionError) Unwrap() error { return e.cause }

func reject(cause error) error {
	return &RejectionError{cause: cause}
}

func rejectStale(delta int64) error {
	return &RejectionError{cause: ErrStale, Delta: delta}
}

// Validator wires together the store, cache, clock, and signer needed to
// run the five checks. It holds no per-message state and is safe for
// concurrent use; the Replay Cache is the only shared structure it
// touches on the hot path.
type Validator struct {
	store      devicestore.Store
	cache      *replaycache.Cache
	clock      clock.Source
	signer     *signer.Signer
	skewBudget int64
}

// New builds a Validator. skewBudgetSeconds is the maximum tolerated
// |now-timestamp| (spec.md §4.3, default 300).
func New(store devicestore.Store, cache *replaycache.Cache, clk clock.Source, s *signer.Signer, skewBudgetSeconds int64) *Validator {
	return &Validator{
		store:      store,
		cache:      cache,
		clock:      clk,
		signer:     s,
		skewBudget: skewBudgetSeconds,
	}
}

// Validate runs the fixed ordered sequence: parse → identity → freshness
// → replay → signature. The first failing check aborts and its reason is
// returned; the replay cache is mutated only when a message reaches and
// passes the replay check, and exactly once per accepted message.
func (v *Validator) Validate(tlsIdentity string, rawMessage []byte) (*Accepted, error) {
	msg, err := parseWireMessage(rawMessage)
	if err != nil {
		return nil, reject(ErrMalformed)
	}

	if msg.DeviceID != tlsIdentity {
		return nil, reject(ErrIdentityMismatch)
	}

	now := v.clock.Now()
	delta := *msg.Timestamp - now
	if abs64(delta) > v.skewBudget {
		return nil, rejectStale(delta)
	}

	if alreadySeen := v.cache.CheckAndInsert(msg.DeviceID, msg.MessageID); alreadySeen {
		return nil, reject(ErrReplay)
	}

	device, err := v.store.Lookup(msg.DeviceID)
	if err != nil {
		return nil, reject(ErrUnknownDevice)
	}

	region := signer.BuildDataRegion(msg.DeviceID, *msg.Timestamp, msg.MessageID, msg.Payload)
	if !v.signer.VerifyData(region, device.SharedSecret, msg.Signature) {
		return nil, reject(ErrBadSignature)
	}

	return &Accepted{
		DeviceID:  msg.DeviceID,
		MessageID: msg.MessageID,
		Payload:   []byte(msg.Payload),
	}, nil
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
