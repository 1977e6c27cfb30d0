// Copyright (c) Trisense Systems.
// Licensed under the MIT License.

// Package wire implements the production protocol engine for mqttlink. It
// speaks MQTT v5 using the eclipse/paho.golang packet codec over TCP, TLS,
// or WebSocket transports and reports broker activity through the engine
// event callback.
package wire
