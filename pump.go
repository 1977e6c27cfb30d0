// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

// pump is the background I/O loop bound to one connection. It blocks until
// the transport is readable or the next keepalive is due, drives the
// keepalive tick on every wakeup, and feeds inbound bytes to the engine,
// which dispatches events back into the notifier from this goroutine.
//
// The loop exits when the session goes down or on any transport error; it
// never reconnects on its own. Exactly one pump runs per session.
func (b *Bridge) pump(done chan struct{}) {
	defer close(done)
	defer b.engine.Abort()
	defer b.session.setConnected(false)

	for b.session.isConnected() {
		readable, err := b.engine.Await(b.engine.KeepAliveRemaining())
		if err != nil {
			b.log.Error("transport wait failed", "error", err)
			return
		}

		// Tick on every wakeup, timeout or not; the engine decides whether a
		// ping is actually due.
		if err := b.engine.Live(); err != nil {
			b.log.Debug("keepalive tick failed", "error", err)
		}

		if readable {
			if err := b.engine.Input(); err != nil {
				b.log.Error("inbound decode failed", "error", err)
				return
			}
		}
	}

	b.log.Debug("pump terminated")
}
