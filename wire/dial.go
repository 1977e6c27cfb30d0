// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package wire

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/eclipse/paho.golang/packets"
	"github.com/gorilla/websocket"
)

// ConnectionProvider is a function that returns a net.Conn connected to an
// MQTT server that is ready to read to and write from. Note that the
// returned net.Conn must be thread-safe (i.e., concurrent Write calls must
// not interleave).
type ConnectionProvider func(context.Context) (net.Conn, error)

// TCPConnection is a ConnectionProvider that connects to an MQTT server
// over plain TCP.
func TCPConnection(broker netip.AddrPort) ConnectionProvider {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", broker.String())
		if err != nil {
			return nil, fmt.Errorf("error opening TCP connection: %w", err)
		}
		return conn, nil
	}
}

// TLSConnection is a ConnectionProvider that connects to an MQTT server
// with TLS over TCP. serverName is used for peer verification when the
// config does not name one itself.
func TLSConnection(
	broker netip.AddrPort,
	serverName string,
	config *tls.Config,
) ConnectionProvider {
	return func(ctx context.Context) (net.Conn, error) {
		if config == nil {
			config = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if config.ServerName == "" {
			config = config.Clone()
			config.ServerName = serverName
		}

		d := tls.Dialer{Config: config}
		conn, err := d.DialContext(ctx, "tcp", broker.String())
		if err != nil {
			return nil, fmt.Errorf("error opening TLS connection: %w", err)
		}
		return packets.NewThreadSafeConn(conn), nil
	}
}

// webSocketSubprotocol is the registered MQTT WebSocket subprotocol name.
const webSocketSubprotocol = "mqtt"

// WebSocketConnection is a ConnectionProvider that connects to an MQTT
// server over WebSocket. The URL scheme selects plain (ws) or TLS (wss)
// transport.
func WebSocketConnection(url string, config *tls.Config) ConnectionProvider {
	return func(ctx context.Context) (net.Conn, error) {
		dialer := &websocket.Dialer{
			Subprotocols:    []string{webSocketSubprotocol},
			TLSClientConfig: config,
			Proxy:           http.ProxyFromEnvironment,
		}
		conn, _, err := dialer.DialContext(ctx, url, http.Header{})
		if err != nil {
			return nil, fmt.Errorf(
				"error opening WebSocket connection: %w", err,
			)
		}
		return packets.NewThreadSafeConn(newWebSocketConn(conn)), nil
	}
}

// webSocketConn adapts a WebSocket connection to net.Conn. MQTT over
// WebSocket carries the packet stream in binary messages; message framing
// is independent of packet framing, so reads buffer the current message.
type webSocketConn struct {
	conn    *websocket.Conn
	buf     []byte
	readPos int
}

func newWebSocketConn(conn *websocket.Conn) *webSocketConn {
	return &webSocketConn{conn: conn}
}

func (c *webSocketConn) Read(p []byte) (int, error) {
	if c.readPos < len(c.buf) {
		n := copy(p, c.buf[c.readPos:])
		c.readPos += n
		return n, nil
	}

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return 0, err
	}
	if messageType != websocket.BinaryMessage {
		return 0, fmt.Errorf(
			"unexpected WebSocket message type %d", messageType,
		)
	}

	c.buf = data
	c.readPos = copy(p, data)
	return c.readPos, nil
}

func (c *webSocketConn) Write(b []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *webSocketConn) Close() error {
	return c.conn.Close()
}

func (c *webSocketConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *webSocketConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *webSocketConn) SetDeadline(t time.Time) error {
	if err := c.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(t)
}

func (c *webSocketConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *webSocketConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}
