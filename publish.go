// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import "fmt"

// Publish sends one message with an inline payload. The request is rebuilt
// fresh on every call with the next publish message ID; nothing is retained
// across calls.
func (b *Bridge) Publish(topic string, payload []byte, qos byte, retain bool) error {
	if err := b.validatePublish(topic, qos); err != nil {
		return err
	}
	if len(payload) > b.bufferSize {
		return &InvalidArgumentError{
			message: fmt.Sprintf(
				"payload of %d bytes exceeds the %d byte buffer",
				len(payload),
				b.bufferSize,
			),
		}
	}
	if !b.session.isConnected() {
		return &NotConnectedError{}
	}

	return b.sendPublish(PublishRequest{
		Topic:     topic,
		Payload:   payload,
		QoS:       qos,
		Retain:    retain,
		MessageID: b.pubID.next(),
	})
}

// sendPublish forwards an assembled request to the engine. Engine failures
// at this point are send failures, so the session is taken down.
func (b *Bridge) sendPublish(r PublishRequest) error {
	b.log.Packet("publish", r)
	if err := b.engine.Publish(r); err != nil {
		b.session.setConnected(false)
		return &TransportError{message: "publish failed", wrapped: err}
	}
	return nil
}

// validatePublish holds the checks shared by inline and streaming publishes.
func (b *Bridge) validatePublish(topic string, qos byte) error {
	if err := validateTopicName(topic); err != nil {
		return err
	}
	if qos > 2 {
		return &InvalidArgumentError{
			message: fmt.Sprintf("invalid QoS %d", qos),
		}
	}
	if b.stream != nil {
		return &StreamActiveError{}
	}
	return nil
}
