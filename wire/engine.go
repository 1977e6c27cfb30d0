// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package wire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/packets"

	"github.com/plotkin-trisense/mqttlink"
)

const defaultConnectTimeout = 30 * time.Second

var _ mqttlink.Engine = (*Engine)(nil)

// Engine is the production mqttlink.Engine. A zero Engine is not usable;
// construct with New.
type Engine struct {
	log            *slog.Logger
	provider       ConnectionProvider
	connectTimeout time.Duration

	onEvent func(mqttlink.Event)

	// mu guards the transport handle and the keepalive bookkeeping, which
	// the command path and the pump touch concurrently.
	mu   sync.Mutex
	conn net.Conn

	// pingDue is when the next PINGREQ must have gone out; any outbound
	// packet pushes it forward.
	pingDue         time.Time
	pingOutstanding bool

	reader    *bufio.Reader
	limit     int
	keepAlive time.Duration

	// payload of the inbound publish currently being dispatched.
	payload []byte
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger attaches a structured logger for packet-level tracing.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithConnectionProvider overrides the transport dialer. Without it the
// engine dials plain TCP, or TLS when the config carries a TLS
// configuration.
func WithConnectionProvider(provider ConnectionProvider) Option {
	return func(e *Engine) { e.provider = provider }
}

// WithConnectTimeout bounds the transport dial plus the CONNECT send.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.connectTimeout = timeout }
}

// New returns an engine ready for a single connection at a time.
func New(opts ...Option) *Engine {
	e := &Engine{connectTimeout: defaultConnectTimeout}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// OnEvent registers the event callback. Must be called before Connect.
func (e *Engine) OnEvent(fn func(mqttlink.Event)) {
	e.onEvent = fn
}

// Connect dials the broker and sends the protocol CONNECT. The CONNACK is
// delivered later through the event callback once Input decodes it.
func (e *Engine) Connect(cfg mqttlink.EngineConfig) error {
	if e.onEvent == nil {
		return errors.New("event callback is not registered")
	}

	provider := e.provider
	if provider == nil {
		if cfg.TLS != nil {
			provider = TLSConnection(cfg.Broker, cfg.ServerName, cfg.TLS)
		} else {
			provider = TCPConnection(cfg.Broker)
		}
	}

	ctx, cancel := context.WithTimeout(
		context.Background(), e.connectTimeout,
	)
	defer cancel()

	conn, err := provider(ctx)
	if err != nil {
		return err
	}

	e.limit = cfg.BufferSize
	if e.limit <= 0 {
		e.limit = mqttlink.DefaultBufferSize
	}
	e.keepAlive = cfg.KeepAlive
	e.payload = nil
	e.reader = bufio.NewReaderSize(conn, e.limit)

	e.mu.Lock()
	e.conn = conn
	e.pingOutstanding = false
	e.mu.Unlock()

	connect := packets.NewControlPacket(packets.CONNECT)
	c := connect.Content.(*packets.Connect)
	c.ClientID = cfg.ClientID
	c.CleanStart = true
	c.KeepAlive = uint16(cfg.KeepAlive / time.Second)
	if cfg.Username != "" {
		c.UsernameFlag = true
		c.Username = cfg.Username
	}
	if len(cfg.Password) > 0 {
		c.PasswordFlag = true
		c.Password = cfg.Password
	}

	if err := e.send(connect); err != nil {
		e.Abort()
		return err
	}
	return nil
}

// Disconnect sends the protocol DISCONNECT. The transport stays up for the
// pump to tear down.
func (e *Engine) Disconnect() error {
	disconnect := packets.NewControlPacket(packets.DISCONNECT)
	disconnect.Content.(*packets.Disconnect).ReasonCode = 0
	return e.send(disconnect)
}

// Abort tears down the transport immediately. Idempotent.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
}

func (e *Engine) current() (net.Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil, errors.New("transport is down")
	}
	return e.conn, nil
}

func (e *Engine) send(cp *packets.ControlPacket) error {
	conn, err := e.current()
	if err != nil {
		return err
	}
	if _, err := cp.WriteTo(conn); err != nil {
		return fmt.Errorf("cannot send %s: %w", cp.PacketType(), err)
	}
	e.log.Debug("sent packet", "type", cp.PacketType())
	e.mu.Lock()
	e.pingDue = time.Now().Add(e.keepAlive)
	e.mu.Unlock()
	return nil
}

func (e *Engine) Publish(r mqttlink.PublishRequest) error {
	publish := packets.NewControlPacket(packets.PUBLISH)
	p := publish.Content.(*packets.Publish)
	p.Topic = r.Topic
	p.Payload = r.Payload
	p.QoS = r.QoS
	p.Retain = r.Retain
	p.Duplicate = r.Duplicate
	if r.QoS > 0 {
		p.PacketID = r.MessageID
	}
	return e.send(publish)
}

func (e *Engine) Subscribe(r mqttlink.SubscriptionRequest) error {
	subscribe := packets.NewControlPacket(packets.SUBSCRIBE)
	s := subscribe.Content.(*packets.Subscribe)
	s.PacketID = r.MessageID
	s.Subscriptions = []packets.SubOptions{{Topic: r.Topic, QoS: r.QoS}}
	return e.send(subscribe)
}

func (e *Engine) Unsubscribe(r mqttlink.SubscriptionRequest) error {
	unsubscribe := packets.NewControlPacket(packets.UNSUBSCRIBE)
	u := unsubscribe.Content.(*packets.Unsubscribe)
	u.PacketID = r.MessageID
	u.Topics = []string{r.Topic}
	return e.send(unsubscribe)
}

// Release issues the QoS 2 PUBREL continuation for a received PUBREC.
func (e *Engine) Release(id uint16) error {
	pubrel := packets.NewControlPacket(packets.PUBREL)
	pubrel.Content.(*packets.Pubrel).PacketID = id
	return e.send(pubrel)
}

// Complete issues the QoS 2 PUBCOMP continuation for a received PUBREL.
func (e *Engine) Complete(id uint16) error {
	pubcomp := packets.NewControlPacket(packets.PUBCOMP)
	pubcomp.Content.(*packets.Pubcomp).PacketID = id
	return e.send(pubcomp)
}

// KeepAliveRemaining reports the time left until the next keepalive tick.
func (e *Engine) KeepAliveRemaining() time.Duration {
	if e.keepAlive <= 0 {
		return time.Hour
	}
	e.mu.Lock()
	pingDue := e.pingDue
	e.mu.Unlock()
	remaining := time.Until(pingDue)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Live sends a PINGREQ when one is due. A ping left unanswered for a full
// keepalive interval fails the connection.
func (e *Engine) Live() error {
	if e.keepAlive <= 0 || e.KeepAliveRemaining() > 0 {
		return nil
	}
	e.mu.Lock()
	outstanding := e.pingOutstanding
	e.mu.Unlock()
	if outstanding {
		return errors.New("keepalive ping unanswered")
	}
	if err := e.send(packets.NewControlPacket(packets.PINGREQ)); err != nil {
		return err
	}
	e.mu.Lock()
	e.pingOutstanding = true
	e.mu.Unlock()
	return nil
}

// Await blocks until the transport is readable, errored, or the timeout
// elapses. A false return with nil error means timeout.
func (e *Engine) Await(timeout time.Duration) (bool, error) {
	conn, err := e.current()
	if err != nil {
		return false, err
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	_, err = e.reader.Peek(1)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() ||
			errors.Is(err, os.ErrDeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	// Clear the deadline so Input blocks until the packet is complete.
	return true, conn.SetReadDeadline(time.Time{})
}

// Input decodes one inbound control packet and dispatches its event
// synchronously through the callback.
func (e *Engine) Input() error {
	if _, err := e.current(); err != nil {
		return err
	}

	recv, err := packets.ReadPacket(e.reader)
	if err != nil {
		return fmt.Errorf("cannot read packet: %w", err)
	}
	e.log.Debug("received packet", "type", recv.PacketType())

	switch recv.Type {
	case packets.CONNACK:
		c := recv.Content.(*packets.Connack)
		e.onEvent(mqttlink.Event{
			Type:   mqttlink.EventConnAck,
			Result: int(c.ReasonCode),
		})
	case packets.PUBLISH:
		return e.inputPublish(recv.Content.(*packets.Publish))
	case packets.PUBACK:
		a := recv.Content.(*packets.Puback)
		e.onEvent(mqttlink.Event{
			Type:      mqttlink.EventPubAck,
			Result:    int(a.ReasonCode),
			MessageID: a.PacketID,
		})
	case packets.PUBREC:
		r := recv.Content.(*packets.Pubrec)
		e.onEvent(mqttlink.Event{
			Type:      mqttlink.EventPubRec,
			Result:    int(r.ReasonCode),
			MessageID: r.PacketID,
		})
	case packets.PUBREL:
		r := recv.Content.(*packets.Pubrel)
		e.onEvent(mqttlink.Event{
			Type:      mqttlink.EventPubRel,
			Result:    int(r.ReasonCode),
			MessageID: r.PacketID,
		})
	case packets.PUBCOMP:
		c := recv.Content.(*packets.Pubcomp)
		e.onEvent(mqttlink.Event{
			Type:      mqttlink.EventPubComp,
			Result:    int(c.ReasonCode),
			MessageID: c.PacketID,
		})
	case packets.SUBACK:
		s := recv.Content.(*packets.Suback)
		e.onEvent(mqttlink.Event{
			Type:      mqttlink.EventSubAck,
			Result:    reasonsResult(s.Reasons),
			MessageID: s.PacketID,
		})
	case packets.UNSUBACK:
		u := recv.Content.(*packets.Unsuback)
		e.onEvent(mqttlink.Event{
			Type:      mqttlink.EventUnsubAck,
			Result:    reasonsResult(u.Reasons),
			MessageID: u.PacketID,
		})
	case packets.PINGRESP:
		e.mu.Lock()
		e.pingOutstanding = false
		e.mu.Unlock()
	case packets.DISCONNECT:
		d := recv.Content.(*packets.Disconnect)
		e.onEvent(mqttlink.Event{
			Type:   mqttlink.EventDisconnect,
			Result: int(d.ReasonCode),
		})
	default:
		e.log.Warn("dropping unexpected packet", "type", recv.PacketType())
	}
	return nil
}

// inputPublish acknowledges the inbound publish per its QoS and dispatches
// the publish event. The delivery continuation for QoS 2 (PUBCOMP on the
// broker's PUBREL) is driven by the consumer through Complete.
func (e *Engine) inputPublish(p *packets.Publish) error {
	switch p.QoS {
	case 1:
		puback := packets.NewControlPacket(packets.PUBACK)
		puback.Content.(*packets.Puback).PacketID = p.PacketID
		if err := e.send(puback); err != nil {
			return err
		}
	case 2:
		pubrec := packets.NewControlPacket(packets.PUBREC)
		pubrec.Content.(*packets.Pubrec).PacketID = p.PacketID
		if err := e.send(pubrec); err != nil {
			return err
		}
	}

	e.payload = p.Payload
	e.onEvent(mqttlink.Event{
		Type:       mqttlink.EventPublish,
		MessageID:  p.PacketID,
		Topic:      p.Topic,
		PayloadLen: len(p.Payload),
	})
	e.payload = nil
	return nil
}

// ReadPayload returns the payload of the publish currently being
// dispatched. Payloads larger than the receive buffer are discarded.
func (e *Engine) ReadPayload(n int) ([]byte, error) {
	if n > e.limit {
		return nil, &mqttlink.MessageTooLargeError{Size: n, Limit: e.limit}
	}
	if e.payload == nil && n > 0 {
		return nil, errors.New("no publish is being dispatched")
	}
	if n > len(e.payload) {
		n = len(e.payload)
	}
	return e.payload[:n], nil
}

// reasonsResult folds per-topic reason codes into a single result. This
// engine subscribes to one topic per packet, so the first failing code is
// the outcome.
func reasonsResult(reasons []byte) int {
	for _, r := range reasons {
		if r >= 0x80 {
			return int(r)
		}
	}
	return 0
}
