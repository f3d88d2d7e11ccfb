package ingress

import (
	"crypto/tls"
	"errors"
	"sync"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
)

// errNoVerifiedIdentity is returned from OnConnect when a session somehow
// reaches the hook without a verified peer certificate. The listener's
// tls.Config requires one (RequireAndVerifyClientCert), so this only
// guards against a future listener misconfiguration.
var errNoVerifiedIdentity = errors.New("ingress: no verified client certificate on connection")

// identityHook binds each session's verified peer-certificate common name
// to its mochi client ID at connect time, and surfaces (tls_identity,
// payload) to onData for every publication on the device data topic.
// This is the binding spec.md §4.6 requires: transport identity, not the
// message's self-claimed device_id, is authoritative.
type identityHook struct {
	mqtt.HookBase
	onData MessageHandler

	mu         sync.Mutex
	identities map[string]string // mochi client ID -> tls_identity
}

func (h *identityHook) ID() string { return "tls-identity-binding" }

func (h *identityHook) Provides(b byte) bool {
	switch b {
	case mqtt.OnConnect, mqtt.OnDisconnect, mqtt.OnPublish:
		return true
	default:
		return false
	}
}

func (h *identityHook) Init(_ any) error {
	h.identities = make(map[string]string)
	return nil
}

// OnConnect extracts the peer certificate's common name from the
// session's TLS connection state and records it against the client ID
// for the lifetime of the session.
func (h *identityHook) OnConnect(cl *mqtt.Client, pk packets.Packet) error {
	tlsConn, ok := cl.Net.Conn.(*tls.Conn)
	if !ok {
		return errNoVerifiedIdentity
	}

	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return errNoVerifiedIdentity
	}

	identity := state.PeerCertificates[0].Subject.CommonName
	if identity == "" {
		return errNoVerifiedIdentity
	}

	h.mu.Lock()
	h.identities[cl.ID] = identity
	h.mu.Unlock()

	return nil
}

func (h *identityHook) OnDisconnect(cl *mqtt.Client, err error, expire bool) {
	h.mu.Lock()
	delete(h.identities, cl.ID)
	h.mu.Unlock()
}

// OnPublish dispatches publications on device/+/data to onData with the
// session's bound tls_identity. Every other topic passes through
// untouched for the broker's normal fan-out.
func (h *identityHook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	if _, ok := dataTopicDeviceID(pk.TopicName); !ok {
		return pk, nil
	}

	h.mu.Lock()
	identity, known := h.identities[cl.ID]
	h.mu.Unlock()
	if !known {
		return pk, nil
	}

	h.onData(identity, pk.Payload)
	return pk, nil
}
