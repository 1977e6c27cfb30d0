// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import (
	"crypto/tls"
	"net/netip"
	"time"
)

type (
	// Engine is the protocol engine collaborator driven by the bridge. It
	// owns the wire-level encode/decode of the MQTT control packets and the
	// transport socket; the bridge owns the session lifecycle, the background
	// pump, and the mapping of engine events to outward notifications.
	//
	// Engines are single-connection: Connect must not be called again until
	// after Disconnect or Abort. Commands run concurrently with the pump:
	// implementations must tolerate Publish, Subscribe, Unsubscribe, and
	// Disconnect arriving while the pump sits in Await, Live, or Input.
	// ReadPayload, Release, and Complete are only called from within the
	// event callback, so they stay on the pump's goroutine.
	Engine interface {
		// Connect configures the engine and performs the transport-level
		// connect followed by the protocol CONNECT. The CONNACK outcome is
		// reported asynchronously through the event callback, not here.
		Connect(cfg EngineConfig) error

		// Disconnect sends the protocol-level DISCONNECT. The transport is
		// torn down by the pump once it observes the session go down.
		Disconnect() error

		// Abort tears down the transport immediately. Idempotent.
		Abort()

		Publish(r PublishRequest) error
		Subscribe(r SubscriptionRequest) error
		Unsubscribe(r SubscriptionRequest) error

		// Live drives the periodic keepalive: it sends a ping when one is
		// due and advances internal bookkeeping. Safe to call on every pump
		// wakeup.
		Live() error

		// Input reads available inbound bytes, decodes complete control
		// packets, and dispatches the corresponding events synchronously via
		// the OnEvent callback before returning.
		Input() error

		// Await blocks until the transport is readable, errored, or the
		// timeout elapses. A false return with nil error means timeout.
		Await(timeout time.Duration) (readable bool, err error)

		// KeepAliveRemaining reports the time until the next keepalive is
		// due. Never negative; zero means a tick is already due.
		KeepAliveRemaining() time.Duration

		// ReadPayload returns the payload of the inbound publish currently
		// being dispatched. n is the length announced by the event; payloads
		// exceeding the engine's receive buffer fail with
		// *MessageTooLargeError and the payload is discarded.
		ReadPayload(n int) ([]byte, error)

		// Release issues the QoS 2 PUBREL continuation for a received
		// PUBREC (step 2 of 4).
		Release(id uint16) error

		// Complete issues the QoS 2 PUBCOMP continuation for a received
		// PUBREL (step 3 of 4).
		Complete(id uint16) error

		// OnEvent registers the event callback. Must be called before
		// Connect. Events are delivered one at a time from within Input.
		OnEvent(fn func(Event))
	}

	// EngineConfig carries the per-connection engine configuration assembled
	// by the bridge at connect time.
	EngineConfig struct {
		// Broker is the resolved broker endpoint.
		Broker netip.AddrPort

		// ServerName is the broker hostname as given by the caller, used
		// for TLS server name verification.
		ServerName string

		ClientID string
		Username string
		Password []byte

		// KeepAlive is the protocol keepalive interval.
		KeepAlive time.Duration

		// BufferSize bounds the receive, transmit, and payload buffers.
		// Zero selects DefaultBufferSize.
		BufferSize int

		// TLS enables a secure transport when non-nil.
		TLS *tls.Config
	}

	// PublishRequest is a fully assembled publish, rebuilt fresh for every
	// publish call.
	PublishRequest struct {
		Topic     string
		Payload   []byte
		QoS       byte
		Retain    bool
		Duplicate bool
		MessageID uint16
	}

	// SubscriptionRequest is a single-topic subscribe or unsubscribe. QoS is
	// ignored for unsubscribe.
	SubscriptionRequest struct {
		Topic     string
		QoS       byte
		MessageID uint16
	}
)

// EventType identifies a protocol engine event.
type EventType byte

const (
	EventConnAck EventType = iota + 1
	EventDisconnect
	EventPublish
	EventPubAck
	EventPubRec
	EventPubRel
	EventPubComp
	EventSubAck
	EventUnsubAck
)

// String returns the event name for logs and generic notifications.
func (t EventType) String() string {
	switch t {
	case EventConnAck:
		return "connack"
	case EventDisconnect:
		return "disconnect"
	case EventPublish:
		return "publish"
	case EventPubAck:
		return "puback"
	case EventPubRec:
		return "pubrec"
	case EventPubRel:
		return "pubrel"
	case EventPubComp:
		return "pubcomp"
	case EventSubAck:
		return "suback"
	case EventUnsubAck:
		return "unsuback"
	default:
		return "unknown"
	}
}

// Event is a protocol engine callback. Exactly one event is in flight at a
// time; the bridge consumes it synchronously before the engine decodes the
// next inbound packet.
type Event struct {
	Type EventType

	// Result is the protocol outcome: zero for success, the packet's reason
	// code otherwise.
	Result int

	// MessageID is set for acknowledgement events.
	MessageID uint16

	// Topic and PayloadLen are set for EventPublish; the payload itself is
	// retrieved with Engine.ReadPayload.
	Topic      string
	PayloadLen int
}
