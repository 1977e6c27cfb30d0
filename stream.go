// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import "fmt"

// StartStream opens a streaming publish session for a payload that arrives
// incrementally instead of as one command argument. The topic, QoS, retain
// flag, and message ID are captured now; the payload is whatever has been
// written when Commit is called. Exactly one stream may be open at a time,
// and any other publish attempt is rejected until it is committed or
// aborted.
func (b *Bridge) StartStream(topic string, qos byte, retain bool) (*PublishStream, error) {
	if err := b.validatePublish(topic, qos); err != nil {
		return nil, err
	}
	if !b.session.isConnected() {
		return nil, &NotConnectedError{}
	}

	s := &PublishStream{
		bridge: b,
		limit:  b.bufferSize,
		req: PublishRequest{
			Topic:     topic,
			QoS:       qos,
			Retain:    retain,
			MessageID: b.pubID.next(),
		},
	}
	b.stream = s

	b.log.Debug("streaming publish opened",
		"topic", topic,
		"id", s.req.MessageID,
	)
	return s, nil
}

// PublishStream accumulates raw payload bytes for a single publish. It
// implements io.Writer.
type PublishStream struct {
	bridge *Bridge
	req    PublishRequest
	buf    []byte
	limit  int
	closed bool
}

// Write appends payload bytes. Writing past the payload buffer bound fails
// and leaves the stream open; the caller may still Commit what fit or Abort.
func (s *PublishStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, &InvalidArgumentError{message: "stream is closed"}
	}
	if len(s.buf)+len(p) > s.limit {
		return 0, &InvalidArgumentError{
			message: fmt.Sprintf(
				"stream payload would exceed the %d byte buffer", s.limit,
			),
		}
	}
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Commit closes the stream and publishes the accumulated bytes under the
// parameters captured when the stream was opened.
func (s *PublishStream) Commit() error {
	if s.closed {
		return &InvalidArgumentError{message: "stream is closed"}
	}
	s.close()

	if !s.bridge.session.isConnected() {
		return &NotConnectedError{}
	}

	s.req.Payload = s.buf
	return s.bridge.sendPublish(s.req)
}

// Abort closes the stream without publishing anything and returns the
// bridge to normal command mode.
func (s *PublishStream) Abort() {
	if s.closed {
		return
	}
	s.close()
	s.bridge.log.Debug("streaming publish aborted", "topic", s.req.Topic)
}

func (s *PublishStream) close() {
	s.closed = true
	if s.bridge.stream == s {
		s.bridge.stream = nil
	}
}
