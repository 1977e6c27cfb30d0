// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import "fmt"

// Subscribe issues a single-topic subscription at the given QoS. The
// subscription message-ID counter is independent of the publish counter.
func (b *Bridge) Subscribe(topic string, qos byte) error {
	if err := validateTopicFilter(topic); err != nil {
		return err
	}
	if qos > 2 {
		return &InvalidArgumentError{
			message: fmt.Sprintf("invalid QoS %d", qos),
		}
	}
	if !b.session.isConnected() {
		return &NotConnectedError{}
	}

	r := SubscriptionRequest{
		Topic:     topic,
		QoS:       qos,
		MessageID: b.subID.next(),
	}
	b.log.Packet("subscribe", r)
	if err := b.engine.Subscribe(r); err != nil {
		b.session.setConnected(false)
		return &TransportError{message: "subscribe failed", wrapped: err}
	}
	return nil
}

// Unsubscribe removes a single-topic subscription. The engine-level
// unsubscribe carries no QoS.
func (b *Bridge) Unsubscribe(topic string) error {
	if err := validateTopicFilter(topic); err != nil {
		return err
	}
	if !b.session.isConnected() {
		return &NotConnectedError{}
	}

	r := SubscriptionRequest{
		Topic:     topic,
		MessageID: b.subID.next(),
	}
	b.log.Packet("unsubscribe", r)
	if err := b.engine.Unsubscribe(r); err != nil {
		b.session.setConnected(false)
		return &TransportError{message: "unsubscribe failed", wrapped: err}
	}
	return nil
}
