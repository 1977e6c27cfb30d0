// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import (
	"log/slog"
	"net"
	"time"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the structured logger for the bridge. The default discards
// all records.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) {
		b.log.Logger = log
	}
}

// WithKeepAlive sets the protocol keepalive interval. It is announced to the
// broker at connect time, drives the pump's periodic keepalive tick, and
// bounds how long Disconnect waits for the pump to exit.
func WithKeepAlive(keepAlive time.Duration) Option {
	return func(b *Bridge) {
		if keepAlive > 0 {
			b.keepAlive = keepAlive
		}
	}
}

// WithBufferSize bounds the engine's receive, transmit, and payload buffers.
func WithBufferSize(size int) Option {
	return func(b *Bridge) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithCredentialStore sets the store used to resolve security tags into TLS
// configurations. Connect attempts that name a security tag fail without one.
func WithCredentialStore(store CredentialStore) Option {
	return func(b *Bridge) {
		b.creds = store
	}
}

// WithResolver overrides the resolver used for broker address lookup.
func WithResolver(resolver *net.Resolver) Option {
	return func(b *Bridge) {
		if resolver != nil {
			b.resolver = resolver
		}
	}
}
