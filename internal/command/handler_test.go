package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacongate/iot-gateway/internal/clock"
	"github.com/beacongate/iot-gateway/internal/devicestore"
	"github.com/beacongate/iot-gateway/internal/logging"
	"github.com/beacongate/iot-gateway/internal/signer"
)

const (
	testDeviceID = "sensor_001"
	testSecret   = "supersecretkey123"
	testToken    = "backend-shared-token"
)

type fakePublisher struct {
	lastDeviceID string
	lastEnvelope []byte
	fail         bool
}

func (f *fakePublisher) PublishCommand(deviceID string, envelope []byte) error {
	if f.fail {
		return assert.AnError
	}
	f.lastDeviceID = deviceID
	f.lastEnvelope = envelope
	return nil
}

func newTestHandler(t *testing.T, pub Publisher) *Handler {
	store, err := devicestore.NewMemoryStore([]devicestore.Device{
		{DeviceID: testDeviceID, SharedSecret: []byte(testSecret)},
	})
	require.NoError(t, err)

	return New(store, pub, signer.New(), clock.Fixed(1727712050), testToken, logging.Default())
}

func newMux(h *Handler) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func TestHandleCommand_Success(t *testing.T) {
	pub := &fakePublisher{}
	mux := newMux(newTestHandler(t, pub))

	req := httptest.NewRequest(http.MethodPost, "/command/sensor_001", bytes.NewBufferString(`{"action":"reboot"}`))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, testDeviceID, pub.lastDeviceID)

	var envelope struct {
		Timestamp int64           `json:"timestamp"`
		MessageID string          `json:"message_id"`
		Payload   json.RawMessage `json:"payload"`
		Signature string          `json:"signature"`
	}
	require.NoError(t, json.Unmarshal(pub.lastEnvelope, &envelope))
	assert.NotEmpty(t, envelope.MessageID)
	assert.JSONEq(t, `{"action":"reboot"}`, string(envelope.Payload))

	region := signer.BuildCommandRegion(envelope.Timestamp, envelope.MessageID, envelope.Payload)
	assert.True(t, signer.New().VerifyData(region, []byte(testSecret), envelope.Signature))
}

func TestHandleCommand_MissingBearerToken(t *testing.T) {
	pub := &fakePublisher{}
	mux := newMux(newTestHandler(t, pub))

	req := httptest.NewRequest(http.MethodPost, "/command/sensor_001", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleCommand_WrongBearerToken(t *testing.T) {
	pub := &fakePublisher{}
	mux := newMux(newTestHandler(t, pub))

	req := httptest.NewRequest(http.MethodPost, "/command/sensor_001", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleCommand_UnknownDevice(t *testing.T) {
	pub := &fakePublisher{}
	mux := newMux(newTestHandler(t, pub))

	req := httptest.NewRequest(http.MethodPost, "/command/sensor_999", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCommand_MalformedBody(t *testing.T) {
	pub := &fakePublisher{}
	mux := newMux(newTestHandler(t, pub))

	req := httptest.NewRequest(http.MethodPost, "/command/sensor_001", bytes.NewBufferString(``))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCommand_PublishFailureReturns502(t *testing.T) {
	pub := &fakePublisher{fail: true}
	mux := newMux(newTestHandler(t, pub))

	req := httptest.NewRequest(http.MethodPost, "/command/sensor_001", bytes.NewBufferString(`{"action":"reboot"}`))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleCommand_SignedRegionOmitsDeviceID(t *testing.T) {
	pub := &fakePublisher{}
	mux := newMux(newTestHandler(t, pub))

	req := httptest.NewRequest(http.MethodPost, "/command/sensor_001", bytes.NewBufferString(`{"action":"reboot"}`))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var envelope struct {
		Timestamp int64           `json:"timestamp"`
		MessageID string          `json:"message_id"`
		Payload   json.RawMessage `json:"payload"`
		Signature string          `json:"signature"`
	}
	require.NoError(t, json.Unmarshal(pub.lastEnvelope, &envelope))

	// Signing the same fields but with device_id included (as data
	// messages do) must NOT reproduce the command's signature — the
	// asymmetry documented in spec.md §4.9 is load-bearing, not
	// accidental.
	dataRegion := signer.BuildDataRegion(testDeviceID, envelope.Timestamp, envelope.MessageID, envelope.Payload)
	dataMAC := signer.New().SignData(dataRegion, []byte(testSecret))
	assert.NotEqual(t, dataMAC, envelope.Signature)
}
