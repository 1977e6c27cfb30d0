// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

// NotificationKind discriminates the outward notification records.
type NotificationKind byte

const (
	// NotifyConnAck reports the asynchronous outcome of a connect attempt.
	NotifyConnAck NotificationKind = iota + 1

	// NotifyDisconnected reports that the session went down.
	NotifyDisconnected

	// NotifyMessage delivers an inbound publish: topic and payload are
	// distinct fields, never concatenated.
	NotifyMessage

	// NotifyEvent is the generic (event, result) record emitted after every
	// terminal protocol callback, in addition to any specific notification.
	NotifyEvent
)

// Notification is one outward record for the caller. Notifications are
// emitted in the order the engine delivers its callbacks; the bridge never
// reorders or batches them.
type Notification struct {
	Kind   NotificationKind
	Event  EventType
	Result int
	Topic  string

	// Payload is only valid until the sink returns; the engine reuses its
	// buffers across events.
	Payload []byte
}

// Sink receives outward notifications. Notify is invoked synchronously from
// the pump's event context and must not call back into the bridge.
type Sink interface {
	Notify(Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// FilterSink wraps a sink so that message notifications are only forwarded
// when their topic matches the given filter. Every other notification kind
// passes through unchanged. Useful when one bridge carries several
// subscriptions and a consumer only cares about a subset of them.
func FilterSink(filter string, sink Sink) Sink {
	return SinkFunc(func(n Notification) {
		if n.Kind == NotifyMessage && !IsTopicFilterMatch(filter, n.Topic) {
			return
		}
		sink.Notify(n)
	})
}

// resultDropped marks a generic event record whose specific notification was
// suppressed by a local delivery failure, such as an oversized payload.
const resultDropped = -1

// handleEvent maps one engine callback to outward notifications. It runs
// synchronously inside the pump's Input call; at most one event is in
// flight at a time.
func (b *Bridge) handleEvent(ev Event) {
	b.log.Packet("engine event", ev)
	result := ev.Result

	switch ev.Type {
	case EventConnAck:
		if ev.Result != 0 {
			b.session.setConnected(false)
		}
		b.sink.Notify(Notification{
			Kind:   NotifyConnAck,
			Event:  ev.Type,
			Result: ev.Result,
		})

	case EventDisconnect:
		b.session.setConnected(false)
		b.sink.Notify(Notification{
			Kind:   NotifyDisconnected,
			Event:  ev.Type,
			Result: ev.Result,
		})

	case EventPublish:
		payload, err := b.engine.ReadPayload(ev.PayloadLen)
		if err != nil {
			b.log.Warn("dropping inbound publish",
				"topic", ev.Topic,
				"error", err,
			)
			result = resultDropped
			break
		}
		b.sink.Notify(Notification{
			Kind:    NotifyMessage,
			Event:   ev.Type,
			Topic:   ev.Topic,
			Payload: payload,
		})

	case EventPubRec:
		// QoS 2 step 2 of 4. Attempted exactly once; a failed continuation
		// is logged and does not take the session down.
		if ev.Result == 0 {
			if err := b.engine.Release(ev.MessageID); err != nil {
				b.log.Error("qos 2 release failed",
					"id", ev.MessageID,
					"error", &EngineError{
						message: "release rejected",
						wrapped: err,
					},
				)
			}
		}

	case EventPubRel:
		// QoS 2 step 3 of 4, same failure policy as the release.
		if ev.Result == 0 {
			if err := b.engine.Complete(ev.MessageID); err != nil {
				b.log.Error("qos 2 complete failed",
					"id", ev.MessageID,
					"error", &EngineError{
						message: "complete rejected",
						wrapped: err,
					},
				)
			}
		}

	case EventPubAck, EventPubComp, EventSubAck, EventUnsubAck:
		b.log.Debug("acknowledgement",
			"event", ev.Type.String(),
			"id", ev.MessageID,
		)
	}

	// The generic record goes out for every event, whatever branch ran.
	b.sink.Notify(Notification{
		Kind:   NotifyEvent,
		Event:  ev.Type,
		Result: result,
	})
}
