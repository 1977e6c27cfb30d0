// Copyright (c) Trisense Systems.
// Licensed under the MIT License.

// Package mqttlink provides a command-driven bridge between a line-oriented
// control surface and an MQTT broker. A Bridge owns a single session at a
// time: Connect resolves and dials the broker and starts an I/O pump
// goroutine, Publish/Subscribe/Unsubscribe issue protocol operations with
// bridge-assigned message IDs, and every broker event is forwarded to the
// caller-supplied Sink as a Notification.
//
// The Bridge is transport-agnostic. All protocol work is delegated to an
// Engine; package wire provides the production implementation over TCP, TLS
// and WebSocket.
package mqttlink
