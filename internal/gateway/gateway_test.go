package gateway

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacongate/iot-gateway/internal/backendclient"
	"github.com/beacongate/iot-gateway/internal/clock"
	"github.com/beacongate/iot-gateway/internal/devicestore"
	"github.com/beacongate/iot-gateway/internal/logging"
	"github.com/beacongate/iot-gateway/internal/replaycache"
	"github.com/beacongate/iot-gateway/internal/signer"
	"github.com/beacongate/iot-gateway/internal/validator"
)

const (
	deviceID = "sensor_001"
	secret   = "supersecretkey123"
)

type fakeResponder struct {
	calls chan respondCall
}

type respondCall struct {
	deviceID string
	body     []byte
}

func newFakeResponder() *fakeResponder {
	return &fakeResponder{calls: make(chan respondCall, 8)}
}

func (f *fakeResponder) RespondWithBackendBody(deviceID string, body []byte) error {
	f.calls <- respondCall{deviceID: deviceID, body: body}
	return nil
}

func newFixture(t *testing.T, backendURL string) (*Gateway, *fakeResponder) {
	store, err := devicestore.NewMemoryStore([]devicestore.Device{
		{DeviceID: deviceID, SharedSecret: []byte(secret)},
	})
	require.NoError(t, err)

	cache := replaycache.New(1000, 4)
	v := validator.New(store, cache, clock.Fixed(1727712050), signer.New(), 300)
	backend := backendclient.New(backendURL, 2*time.Second)
	responder := newFakeResponder()

	g := New(v, backend, responder, Config{MessageDeadline: 2 * time.Second}, logging.Default())
	return g, responder
}

func signedMessage(t *testing.T, timestamp int64, messageID, payloadBody string) []byte {
	t.Helper()
	region := signer.BuildDataRegion(deviceID, timestamp, messageID, []byte(payloadBody))
	mac := signer.New().SignData(region, []byte(secret))
	raw := `{"device_id":"` + deviceID + `","timestamp":` + strconv.FormatInt(timestamp, 10) + `,"message_id":"` + messageID + `","payload":` + payloadBody + `,"signature":"` + mac + `"}`
	return []byte(raw)
}

func TestHandleInbound_AcceptedForwardsAndPublishesResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/device/sensor_001/data", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ack":true}`))
	}))
	defer backend.Close()

	g, responder := newFixture(t, backend.URL)
	raw := signedMessage(t, 1727712000, "msg-1", `{"temperature":22.5}`)

	g.HandleInbound(deviceID, raw)

	select {
	case call := <-responder.calls:
		assert.Equal(t, deviceID, call.deviceID)
		assert.JSONEq(t, `{"ack":true}`, string(call.body))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response publish")
	}
}

func TestHandleInbound_RejectedNeverCallsBackend(t *testing.T) {
	var backendCalled bool
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendCalled = true
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	g, responder := newFixture(t, backend.URL)
	// Stale: now (fixed at 1727712050) minus 1050s exceeds the 300s budget.
	raw := signedMessage(t, 1727711000, "msg-1", `{}`)

	g.HandleInbound(deviceID, raw)

	select {
	case <-responder.calls:
		t.Fatal("rejected message must never reach the response router")
	case <-time.After(100 * time.Millisecond):
	}
	assert.False(t, backendCalled)
}

func TestHandleInbound_NonTwoXXStillBridgesResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer backend.Close()

	store, err := devicestore.NewMemoryStore([]devicestore.Device{
		{DeviceID: deviceID, SharedSecret: []byte(secret)},
	})
	require.NoError(t, err)
	cache := replaycache.New(1000, 4)
	v := validator.New(store, cache, clock.Fixed(1727712050), signer.New(), 300)
	backendClient := backendclient.New(backend.URL, 2*time.Second)
	responder := newFakeResponder()
	g := New(v, backendClient, responder, Config{MessageDeadline: 2 * time.Second, ForwardErrorBody: true}, logging.Default())

	raw := signedMessage(t, 1727712000, "msg-1", `{}`)
	g.HandleInbound(deviceID, raw)

	select {
	case call := <-responder.calls:
		assert.JSONEq(t, `{"error":"boom"}`, string(call.body))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error body to bridge")
	}
}
