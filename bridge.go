// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import (
	"net"
	"time"
)

const (
	// DefaultBufferSize bounds the engine's receive, transmit, and payload
	// buffers when no other size is configured. It matches the transport MTU
	// the bridge is typically deployed behind.
	DefaultBufferSize = 1500

	// DefaultKeepAlive is the protocol keepalive interval when none is
	// configured. It also bounds the pump join during Disconnect.
	DefaultKeepAlive = 60 * time.Second

	// MaxTopicLength is the longest accepted topic, in bytes.
	MaxTopicLength = 128

	// MaxClientIDLength is the longest accepted client identifier, in bytes.
	MaxClientIDLength = 64
)

// Bridge exposes a full MQTT publish/subscribe client to a caller that can
// only issue discrete synchronous commands and receive asynchronous
// notifications. It owns exactly one session at a time; command issuance is
// assumed to be serialized by the caller.
type Bridge struct {
	engine Engine
	sink   Sink
	log    logger

	session  session
	pumpDone chan struct{}

	// Independent rotating message-ID counters for publishes and for
	// subscription requests. Intentionally separate: the two streams may
	// legitimately carry colliding identifiers.
	pubID messageID
	subID messageID

	stream *PublishStream

	keepAlive  time.Duration
	bufferSize int
	creds      CredentialStore
	resolver   *net.Resolver
}

// New constructs a bridge over the given protocol engine. Notifications are
// delivered to sink from within the pump's event context; a nil sink
// discards them.
func New(engine Engine, sink Sink, opts ...Option) *Bridge {
	b := &Bridge{
		engine:     engine,
		sink:       sink,
		keepAlive:  DefaultKeepAlive,
		bufferSize: DefaultBufferSize,
		resolver:   net.DefaultResolver,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.sink == nil {
		b.sink = SinkFunc(func(Notification) {})
	}

	b.log.init()
	b.engine.OnEvent(b.handleEvent)

	return b
}

// messageID is a session-scoped rotating 16-bit counter. Identifiers start
// at 1 and wrap from 65535 back to 1; 0 is reserved and never produced.
type messageID uint16

func (m *messageID) next() uint16 {
	*m++
	if *m == 0 {
		*m = 1
	}
	return uint16(*m)
}
