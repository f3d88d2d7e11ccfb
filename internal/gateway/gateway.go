// Package gateway wires the Message Validator (C5) to the Egress HTTP
// Client (C7) and Response Router (C8): it is the bridging engine's
// entry point for every inbound publication, and the thing C10 starts
// and drains.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/beacongate/iot-gateway/internal/backendclient"
	"github.com/beacongate/iot-gateway/internal/logging"
	"github.com/beacongate/iot-gateway/internal/metrics"
	"github.com/beacongate/iot-gateway/internal/router"
	"github.com/beacongate/iot-gateway/internal/validator"
)

// Responder is the subset of Router the bridging path needs.
type Responder interface {
	RespondWithBackendBody(deviceID string, body []byte) error
}

// Gateway ties C5 to C7/C8. It holds no mutable state of its own beyond
// the validator and backend client it wraps; the Replay Cache inside the
// validator remains the only shared structure on the hot path.
type Gateway struct {
	validator         *validator.Validator
	backend           *backendclient.Client
	responder         Responder
	messageDeadline   time.Duration
	forwardErrorBody  bool
	surfaceFailureAck bool
	log               *logging.Logger
}

// Config carries the bridging-path knobs from spec.md §6/§4.11.
type Config struct {
	MessageDeadline   time.Duration
	ForwardErrorBody  bool
	SurfaceFailureAck bool
}

// New builds a Gateway.
func New(v *validator.Validator, backend *backendclient.Client, responder Responder, cfg Config, log *logging.Logger) *Gateway {
	return &Gateway{
		validator:         v,
		backend:           backend,
		responder:         responder,
		messageDeadline:   cfg.MessageDeadline,
		forwardErrorBody:  cfg.ForwardErrorBody,
		surfaceFailureAck: cfg.SurfaceFailureAck,
		log:               log,
	}
}

// HandleInbound is the ingress adapter's MessageHandler: it runs the
// five-step validation synchronously (cheap, and it must serialize
// replay-cache access per device) and, on acceptance, forwards to the
// backend on its own goroutine so a slow backend never blocks the
// transport's read loop.
func (g *Gateway) HandleInbound(tlsIdentity string, rawMessage []byte) {
	metrics.MessagesReceived.Inc()

	accepted, err := g.validator.Validate(tlsIdentity, rawMessage)
	if err != nil {
		reason := validator.Reason(err)
		if reason == "" {
			reason = "internal"
		}
		metrics.MessagesRejected.WithLabelValues(reason).Inc()
		g.logRejection(tlsIdentity, reason, err)
		return
	}

	metrics.MessagesAccepted.Inc()
	go g.forwardAndRespond(accepted)
}

func (g *Gateway) logRejection(tlsIdentity, reason string, err error) {
	switch reason {
	case "malformed":
		g.log.Logger.Info("message rejected", logging.TLSIdentity(tlsIdentity), logging.Reason(reason))
	default:
		g.log.Logger.Warn("message rejected", logging.TLSIdentity(tlsIdentity), logging.Reason(reason), logging.Error(err))
	}
}

// forwardAndRespond implements C7 → C8 for one accepted message. A
// per-message deadline bounds the whole call per spec.md §5; on timeout
// the message is abandoned and any partial response is discarded.
func (g *Gateway) forwardAndRespond(accepted *validator.Accepted) {
	ctx, cancel := context.WithTimeout(context.Background(), g.messageDeadline)
	defer cancel()

	start := time.Now()
	body, err := g.backend.Forward(ctx, accepted.DeviceID, accepted.Payload)
	metrics.BackendCallDuration.Observe(time.Since(start).Seconds())

	var statusErr *backendclient.StatusError
	switch {
	case err == nil:
		metrics.MessagesForwarded.Inc()
		if pubErr := g.responder.RespondWithBackendBody(accepted.DeviceID, body); pubErr != nil {
			g.log.Logger.Warn("response publish failed", "device_id", accepted.DeviceID, "error", pubErr)
		}

	case errors.As(err, &statusErr):
		// Non-2xx is treated as successful bridging: the device is
		// meant to observe the backend's own error (spec.md §4.11).
		metrics.MessagesForwarded.Inc()
		if g.forwardErrorBody {
			if pubErr := g.responder.RespondWithBackendBody(accepted.DeviceID, statusErr.Body); pubErr != nil {
				g.log.Logger.Warn("response publish failed", "device_id", accepted.DeviceID, "error", pubErr)
			}
		}

	default:
		metrics.BackendCallErrors.WithLabelValues("transport").Inc()
		g.log.Logger.Warn("backend call failed", "device_id", accepted.DeviceID, "error", err)
		if g.surfaceFailureAck {
			if pubErr := g.responder.RespondWithBackendBody(accepted.DeviceID, []byte(`{"status":"forward_failed"}`)); pubErr != nil {
				g.log.Logger.Warn("failure ack publish failed", "device_id", accepted.DeviceID, "error", pubErr)
			}
		}
	}
}

var _ Responder = (*router.Router)(nil)
