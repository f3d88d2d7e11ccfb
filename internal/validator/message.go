package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireMessage is the strict on-wire shape of an inbound device message.
// DisallowUnknownFields rejects anything outside these five fields, per
// spec.md §6's "unknown fields are rejected" rule — an unknown field could
// otherwise be silently excluded from the signed region.
type wireMessage struct {
	DeviceID  string          `json:"device_id"`
	Timestamp *int64          `json:"timestamp"`
	MessageID string          `json:"message_id"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

const signatureHexLen = 64

// parseWireMessage decodes raw into a wireMessage, enforcing the strict
// schema and primitive kinds. Payload is retained as the verbatim
// substring carved from raw by the decoder — it is never re-serialized,
// which is what lets the signer recompute the same MAC the sender did.
func parseWireMessage(raw []byte) (*wireMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var msg wireMessage
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after message")
	}

	if msg.DeviceID == "" {
		return nil, fmt.Errorf("device_id missing or empty")
	}
	if msg.Timestamp == nil {
		return nil, fmt.Errorf("timestamp missing")
	}
	if msg.MessageID == "" {
		return nil, fmt.Errorf("message_id missing or empty")
	}
	if len(msg.Signature) != signatureHexLen {
		return nil, fmt.Errorf("signature must be %d hex characters, got %d", signatureHexLen, len(msg.Signature))
	}
	if !isLowercaseHex(msg.Signature) {
		return nil, fmt.Errorf("signature must be lowercase hex")
	}
	if !isJSONObject(msg.Payload) {
		return nil, fmt.Errorf("payload must be a structured object")
	}

	return &msg, nil
}

func isLowercaseHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

// isJSONObject reports whether raw's first non-whitespace byte opens a
// JSON object, rejecting scalars, arrays, and null per spec.md §3.
func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
