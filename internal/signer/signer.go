// Package signer implements the Signer/Verifier (C4): HMAC-SHA256 over the
// canonicalized signed region, rendered as lowercase hex.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
)

// SignatureHexLen is the length of the canonical hex-encoded MAC
// (32-byte HMAC-SHA256 output, 2 hex chars per byte).
const SignatureHexLen = sha256.Size * 2

// Signer computes and verifies HMAC-SHA256 signatures over a device's
// signed region. A Signer is stateless; the secret is supplied per call
// since each device has its own key.
type Signer struct{}

// New returns a Signer. It carries no state; HMAC keys come from the
// caller per device.
func New() *Signer {
	return &Signer{}
}

// SignData computes the lowercase-hex HMAC-SHA256 of data under secret.
// data must already be the exact signed-region bytes: for data messages
// that is device_id || decimal(timestamp) || message_id || payload_bytes;
// for commands it omits device_id. See BuildDataRegion/BuildCommandRegion.
func (s *Signer) SignData(data, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyData recomputes the HMAC over data and compares it against hexMAC
// in constant time. It also rejects hexMAC that isn't well-formed hex of
// the expected length, to avoid a length-oracle on malformed input.
func (s *Signer) VerifyData(data, secret []byte, hexMAC string) bool {
	if len(hexMAC) != SignatureHexLen {
		return false
	}
	given, err := hex.DecodeString(hexMAC)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	expected := mac.Sum(nil)
	return subtle.ConstantTimeCompare(expected, given) == 1
}

// BuildDataRegion reconstructs the signed region for an inbound device
// message: device_id || decimal(timestamp) || message_id || payloadBytes.
// payloadBytes must be the verbatim substring carved from the raw message
// as received, not a re-serialization, per the canonicalization hazard in
// spec.md §4.4/§9.
func BuildDataRegion(deviceID string, timestamp int64, messageID string, payloadBytes []byte) []byte {
	region := make([]byte, 0, len(deviceID)+20+len(messageID)+len(payloadBytes))
	region = append(region, deviceID...)
	region = append(region, strconv.FormatInt(timestamp, 10)...)
	region = append(region, messageID...)
	region = append(region, payloadBytes...)
	return region
}

// BuildCommandRegion builds the signed region for an outbound backend
// command, which omits device_id (spec.md §4.9, §9's documented asymmetry):
// decimal(timestamp) || message_id || payloadBytes.
func BuildCommandRegion(timestamp int64, messageID string, payloadBytes []byte) []byte {
	region := make([]byte, 0, 20+len(messageID)+len(payloadBytes))
	region = append(region, strconv.FormatInt(timestamp, 10)...)
	region = append(region, messageID...)
	region = append(region, payloadBytes...)
	return region
}
