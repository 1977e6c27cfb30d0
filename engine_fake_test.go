// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink_test

import (
	"errors"
	"sync"
	"time"

	"github.com/plotkin-trisense/mqttlink"
)

// errAssert is the sentinel failure scripted into the fake engine.
var errAssert = errors.New("scripted failure")

// fakeEngine is a scriptable in-memory engine. Await parks until the fake
// is stopped so the pump idles without spinning; events are injected
// directly through the registered callback with emit.
type fakeEngine struct {
	mu sync.Mutex

	onEvent func(mqttlink.Event)
	stop    chan struct{}

	connectErr     error
	disconnectErr  error
	publishErr     error
	subscribeErr   error
	unsubscribeErr error
	releaseErr     error
	completeErr    error

	payload    []byte
	payloadErr error

	cfg          mqttlink.EngineConfig
	connects     int
	disconnects  int
	aborts       int
	publishes    []mqttlink.PublishRequest
	subscribes   []mqttlink.SubscriptionRequest
	unsubscribes []mqttlink.SubscriptionRequest
	released     []uint16
	completed    []uint16
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{stop: make(chan struct{})}
}

func (e *fakeEngine) OnEvent(fn func(mqttlink.Event)) {
	e.onEvent = fn
}

// emit injects an engine event the way Input would dispatch it.
func (e *fakeEngine) emit(ev mqttlink.Event) {
	e.onEvent(ev)
}

func (e *fakeEngine) Connect(cfg mqttlink.EngineConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.connectErr != nil {
		return e.connectErr
	}
	e.cfg = cfg
	e.connects++
	return nil
}

func (e *fakeEngine) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnects++
	return e.disconnectErr
}

func (e *fakeEngine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aborts++
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
}

func (e *fakeEngine) Publish(r mqttlink.PublishRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.publishErr != nil {
		return e.publishErr
	}
	e.publishes = append(e.publishes, r)
	return nil
}

func (e *fakeEngine) Subscribe(r mqttlink.SubscriptionRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subscribeErr != nil {
		return e.subscribeErr
	}
	e.subscribes = append(e.subscribes, r)
	return nil
}

func (e *fakeEngine) Unsubscribe(r mqttlink.SubscriptionRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsubscribeErr != nil {
		return e.unsubscribeErr
	}
	e.unsubscribes = append(e.unsubscribes, r)
	return nil
}

func (e *fakeEngine) Live() error { return nil }

func (e *fakeEngine) Input() error { return nil }

func (e *fakeEngine) Await(timeout time.Duration) (bool, error) {
	select {
	case <-e.stop:
		return false, nil
	case <-time.After(timeout):
		return false, nil
	}
}

// KeepAliveRemaining keeps the pump's wakeups short so tests observe
// session teardown promptly.
func (e *fakeEngine) KeepAliveRemaining() time.Duration {
	return 5 * time.Millisecond
}

func (e *fakeEngine) ReadPayload(n int) ([]byte, error) {
	if e.payloadErr != nil {
		return nil, e.payloadErr
	}
	if n > len(e.payload) {
		n = len(e.payload)
	}
	return e.payload[:n], nil
}

func (e *fakeEngine) Release(id uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.releaseErr != nil {
		return e.releaseErr
	}
	e.released = append(e.released, id)
	return nil
}

func (e *fakeEngine) Complete(id uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.completeErr != nil {
		return e.completeErr
	}
	e.completed = append(e.completed, id)
	return nil
}

// recordingSink collects notifications in delivery order.
type recordingSink struct {
	mu            sync.Mutex
	notifications []mqttlink.Notification
}

func (s *recordingSink) Notify(n mqttlink.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Payload != nil {
		n.Payload = append([]byte(nil), n.Payload...)
	}
	s.notifications = append(s.notifications, n)
}

func (s *recordingSink) all() []mqttlink.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mqttlink.Notification(nil), s.notifications...)
}
