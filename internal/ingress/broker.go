// Package ingress implements the Ingress Adapter (C6): a publish/subscribe
// endpoint that terminates mutual TLS itself, rather than delegating to an
// external broker that would discard the peer certificate before the
// gateway ever saw it.
package ingress

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// MessageHandler is invoked once per publication on the device data
// topic, with the publishing session's verified transport identity and
// the message bytes exactly as received, untransformed.
type MessageHandler func(tlsIdentity string, rawPayload []byte)

// Config holds C6's connection parameters (spec.md §6).
type Config struct {
	Host     string
	Port     int
	CAFile   string
	CertFile string
	KeyFile  string
}

// Broker is an embedded MQTT server bound to a mutual-TLS listener. It
// owns the identityHook that binds each session's peer certificate common
// name to its publications.
type Broker struct {
	server *mqtt.Server
	hook   *identityHook
}

// New builds a Broker listening on cfg.Host:cfg.Port. onData fires for
// every publication to device/+/data; nothing else routes through it.
func New(cfg Config, onData MessageHandler) (*Broker, error) {
	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build tls config: %w", err)
	}

	server := mqtt.New(&mqtt.Options{InlineClient: true})

	hook := &identityHook{onData: onData}
	if err := server.AddHook(hook, nil); err != nil {
		return nil, fmt.Errorf("add identity hook: %w", err)
	}

	listener := listeners.NewTCP(listeners.Config{
		ID:        "gateway-tls",
		Address:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		TLSConfig: tlsConfig,
	})
	if err := server.AddListener(listener); err != nil {
		return nil, fmt.Errorf("add tls listener: %w", err)
	}

	return &Broker{server: server, hook: hook}, nil
}

// Start begins serving; it returns once the listener goroutines are
// running. Per-session reconnect/backoff is a device-side concern
// (spec.md §4.6's exponential backoff describes the device's behavior
// when the connection drops, not the broker's).
func (b *Broker) Start() error {
	return b.server.Serve()
}

// Publish sends payload to topic at QoS 0. Used by the Response Router
// (C8) for both device/<id>/response and device/<id>/command.
func (b *Broker) Publish(topic string, payload []byte) error {
	return b.server.Publish(topic, payload, false, 0)
}

// Close stops the broker and disconnects every session.
func (b *Broker) Close() error {
	return b.server.Close()
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load gateway certificate: %w", err)
	}

	caBytes, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read trust anchor: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("no valid certificates found in %s", cfg.CAFile)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// dataTopicDeviceID reports whether topic matches device/<id>/data and,
// if so, returns <id>.
func dataTopicDeviceID(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "device" || parts[2] != "data" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ResponseTopic returns the response topic for a device, per the fixed
// topic scheme in spec.md §6.
func ResponseTopic(deviceID string) string {
	return "device/" + deviceID + "/response"
}

// CommandTopic returns the command topic for a device.
func CommandTopic(deviceID string) string {
	return "device/" + deviceID + "/command"
}
