// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plotkin-trisense/mqttlink"
)

func TestPublish(t *testing.T) {
	b, engine, _ := newTestBridge(t)
	connectTestBridge(t, b)

	require.NoError(t, b.Publish("sensors/temperature", []byte("21.5"), 1, true))

	require.Len(t, engine.publishes, 1)
	r := engine.publishes[0]
	require.Equal(t, "sensors/temperature", r.Topic)
	require.Equal(t, []byte("21.5"), r.Payload)
	require.Equal(t, byte(1), r.QoS)
	require.True(t, r.Retain)
	require.False(t, r.Duplicate)
	require.Equal(t, uint16(1), r.MessageID)
}

func TestPublishNotConnected(t *testing.T) {
	b, engine, _ := newTestBridge(t)

	err := b.Publish("sensors/temperature", []byte("21.5"), 0, false)
	require.ErrorAs(t, err, new(*mqttlink.NotConnectedError))
	require.Empty(t, engine.publishes)
}

func TestPublishValidation(t *testing.T) {
	b, engine, _ := newTestBridge(t, mqttlink.WithBufferSize(16))
	connectTestBridge(t, b)

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
	}{
		{"EmptyTopic", "", []byte("x"), 0},
		{"WildcardHash", "sensors/#", []byte("x"), 0},
		{"WildcardPlus", "sensors/+/temp", []byte("x"), 0},
		{"LongTopic", string(bytes.Repeat([]byte("t"), mqttlink.MaxTopicLength+1)), []byte("x"), 0},
		{"BadQoS", "sensors/temperature", []byte("x"), 3},
		{"OversizedPayload", "sensors/temperature", bytes.Repeat([]byte("x"), 17), 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := b.Publish(test.topic, test.payload, test.qos, false)
			require.ErrorAs(t, err, new(*mqttlink.InvalidArgumentError))
			require.Empty(t, engine.publishes)
		})
	}
}

func TestPublishMessageIDSequence(t *testing.T) {
	b, engine, _ := newTestBridge(t)
	connectTestBridge(t, b)

	for i := 1; i <= 3; i++ {
		require.NoError(t, b.Publish("seq", []byte("p"), 0, false))
		require.Equal(t, uint16(i), engine.publishes[i-1].MessageID)
	}
}

func TestPublishMessageIDWraps(t *testing.T) {
	b, engine, _ := newTestBridge(t)
	connectTestBridge(t, b)

	// Drive the counter through a full cycle: IDs run 1..65535 and wrap
	// back to 1, never producing 0.
	for i := 0; i < 65536; i++ {
		require.NoError(t, b.Publish("seq", nil, 0, false))
	}
	require.Equal(t, uint16(65535), engine.publishes[65534].MessageID)
	require.Equal(t, uint16(1), engine.publishes[65535].MessageID)
}

func TestPublishAndSubscribeCountersAreIndependent(t *testing.T) {
	b, engine, _ := newTestBridge(t)
	connectTestBridge(t, b)

	require.NoError(t, b.Publish("a", nil, 0, false))
	require.NoError(t, b.Subscribe("a", 0))

	// Colliding identifiers across the two streams are expected.
	require.Equal(t, uint16(1), engine.publishes[0].MessageID)
	require.Equal(t, uint16(1), engine.subscribes[0].MessageID)
}

func TestPublishEngineFailure(t *testing.T) {
	b, engine, _ := newTestBridge(t)
	connectTestBridge(t, b)

	engine.publishErr = errAssert
	err := b.Publish("sensors/temperature", []byte("21.5"), 0, false)
	require.ErrorAs(t, err, new(*mqttlink.TransportError))

	// A send-level failure takes the session down.
	require.False(t, b.Status().Connected)
}
