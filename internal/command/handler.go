// Package command implements the Command Ingress (C9): the HTTP surface
// backends use to push signed commands down to a specific device.
package command

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/beacongate/iot-gateway/internal/clock"
	"github.com/beacongate/iot-gateway/internal/devicestore"
	"github.com/beacongate/iot-gateway/internal/httputil"
	"github.com/beacongate/iot-gateway/internal/logging"
	"github.com/beacongate/iot-gateway/internal/metrics"
	"github.com/beacongate/iot-gateway/internal/signer"
)

// Publisher is the subset of Router that the command handler needs.
type Publisher interface {
	PublishCommand(deviceID string, envelope []byte) error
}

// Handler serves POST /command/{device_id}. It is not itself a
// validator: its only job is to authenticate the caller, resolve the
// device's secret, sign the command, and hand it to the publisher.
type Handler struct {
	store       devicestore.Store
	publisher   Publisher
	signer      *signer.Signer
	clock       clock.Source
	bearerToken string
	log         *logging.Logger
}

// New builds a Handler. bearerToken is the shared secret backends
// present in the Authorization header.
func New(store devicestore.Store, publisher Publisher, s *signer.Signer, clk clock.Source, bearerToken string, log *logging.Logger) *Handler {
	return &Handler{
		store:       store,
		publisher:   publisher,
		signer:      s,
		clock:       clk,
		bearerToken: bearerToken,
		log:         log,
	}
}

// commandEnvelope is the shape published to device/<id>/command. It
// deliberately omits device_id: the signed region's asymmetry from data
// messages is intentional and documented in spec.md §4.9/§9.
type commandEnvelope struct {
	Timestamp int64           `json:"timestamp"`
	MessageID string          `json:"message_id"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// Register wires the handler into mux under the path it owns.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /command/{device_id}", h.requireBearer(h.handleCommand))
}

func (h *Handler) requireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || !constantTimeEquals(token, h.bearerToken) {
			metrics.CommandsRejected.WithLabelValues("bad_auth").Inc()
			httputil.WriteError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device_id")

	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload) == 0 {
		metrics.CommandsRejected.WithLabelValues("malformed").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "body must be a JSON payload")
		return
	}

	device, err := h.store.Lookup(deviceID)
	if err != nil {
		metrics.CommandsRejected.WithLabelValues("unknown_device").Inc()
		httputil.WriteError(w, http.StatusNotFound, "unknown device")
		return
	}

	timestamp := h.clock.Now()
	messageID := uuid.New().String()

	region := signer.BuildCommandRegion(timestamp, messageID, payload)
	signature := h.signer.SignData(region, device.SharedSecret)

	envelope, err := json.Marshal(commandEnvelope{
		Timestamp: timestamp,
		MessageID: messageID,
		Payload:   payload,
		Signature: signature,
	})
	if err != nil {
		metrics.CommandsRejected.WithLabelValues("internal").Inc()
		httputil.WriteError(w, http.StatusInternalServerError, "failed to build command envelope")
		return
	}

	if err := h.publisher.PublishCommand(deviceID, envelope); err != nil {
		h.log.WarnContext(r.Context(), "command publish failed", "device_id", deviceID, "error", err)
		metrics.CommandsRejected.WithLabelValues("publish_failed").Inc()
		httputil.WriteError(w, http.StatusBadGateway, "failed to publish command")
		return
	}

	metrics.CommandsAccepted.Inc()
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"device_id":  deviceID,
		"message_id": messageID,
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimPrefix(header, prefix)
	if token == "" {
		return "", false
	}
	return token, true
}

func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
