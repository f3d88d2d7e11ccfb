// Package router implements the Response Router (C8): the single place
// that publishes to a device's response and command topics. Both the
// bridging path (C7's backend response) and the command path (C9's
// signed commands) funnel through it so the topic scheme lives in one
// place.
package router

import "github.com/beacongate/iot-gateway/internal/ingress"

// Publisher is the subset of Broker that the router needs; defined here
// so tests can supply a fake instead of a real embedded broker.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Router publishes outbound traffic to the fixed device topic scheme.
type Router struct {
	publisher Publisher
}

// New builds a Router over publisher.
func New(publisher Publisher) *Router {
	return &Router{publisher: publisher}
}

// RespondWithBackendBody publishes body to device/<deviceID>/response.
// The broker publishes at QoS 0 (at most once): a response lost in
// transit is not redelivered. Responses are not replay-protected.
func (r *Router) RespondWithBackendBody(deviceID string, body []byte) error {
	return r.publisher.Publish(ingress.ResponseTopic(deviceID), body)
}

// PublishCommand publishes a signed command envelope to
// device/<deviceID>/command.
func (r *Router) PublishCommand(deviceID string, envelope []byte) error {
	return r.publisher.Publish(ingress.CommandTopic(deviceID), envelope)
}
