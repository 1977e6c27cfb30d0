// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/netip"
	"time"
)

// ConnectParams carries the arguments of a connect command.
type ConnectParams struct {
	Family   AddressFamily
	ClientID string
	Username string

	// Password is ignored when Username is empty.
	Password string

	Host string
	Port uint16

	// SecurityTag names a pre-provisioned credential set in the bridge's
	// credential store. Empty selects a plain transport.
	SecurityTag string
}

// Connect establishes a new session: it resolves the broker address for the
// requested family, configures the protocol engine, performs the
// transport-level connect, and starts the background pump.
//
// A nil error means the transport-level connect succeeded; the protocol
// outcome is reported asynchronously through a ConnAck notification.
func (b *Bridge) Connect(ctx context.Context, p ConnectParams) error {
	if b.session.isConnected() {
		return &AlreadyConnectedError{}
	}

	if err := validateConnectParams(p); err != nil {
		return err
	}

	broker, err := b.resolveBroker(ctx, p.Family, p.Host, p.Port)
	if err != nil {
		return err
	}

	tlsConfig, err := b.tlsConfigFor(p.SecurityTag, p.Host)
	if err != nil {
		return err
	}

	clientID := p.ClientID
	if clientID == "" {
		clientID = RandomClientID()
	}

	var password []byte
	if p.Username != "" && p.Password != "" {
		password = []byte(p.Password)
	}

	cfg := EngineConfig{
		Broker:     broker,
		ServerName: p.Host,
		ClientID:   clientID,
		Username:   p.Username,
		Password:   password,
		KeepAlive:  b.keepAlive,
		BufferSize: b.bufferSize,
		TLS:        tlsConfig,
	}

	// The session is only populated once the transport is up; a failed
	// attempt leaves no trace of its endpoint behind.
	if err := b.engine.Connect(cfg); err != nil {
		return &TransportError{message: "broker connect failed", wrapped: err}
	}

	b.session.family = p.Family
	b.session.clientID = clientID
	b.session.username = p.Username
	b.session.password = password
	b.session.securityTag = p.SecurityTag
	b.session.host = p.Host
	b.session.port = p.Port
	b.session.broker = broker
	b.session.setConnected(true)
	b.pumpDone = make(chan struct{})
	go b.pump(b.pumpDone)

	b.log.Info("session connected",
		"client_id", clientID,
		"broker", broker.String(),
		"secure", tlsConfig != nil,
	)
	return nil
}

// Disconnect ends the current session: it issues the protocol-level
// disconnect and waits, bounded by the keepalive interval, for the pump to
// observe the teardown and exit. The session always ends disconnected and
// reset, whether or not the pump exited in time.
func (b *Bridge) Disconnect() error {
	if !b.session.isConnected() {
		return &NotConnectedError{}
	}

	var disconnErr error
	if err := b.engine.Disconnect(); err != nil {
		disconnErr = &TransportError{
			message: "broker disconnect failed",
			wrapped: err,
		}
		b.log.Error("broker disconnect failed", "error", err)
	}

	// The pump notices the teardown through a transport error, the engine's
	// disconnect event, or at the latest its next keepalive wakeup after the
	// flag goes down. The wait is best effort.
	b.session.setConnected(false)
	select {
	case <-b.pumpDone:
	case <-time.After(b.keepAlive):
		b.log.Warn("pump did not exit before the keepalive deadline")
		b.engine.Abort()
	}

	b.resetSession()
	return disconnErr
}

// resetSession returns the bridge to its initial, disconnected state.
func (b *Bridge) resetSession() {
	b.session.setConnected(false)
	b.session.reset()
	b.stream = nil
	b.pubID = 0
	b.subID = 0
}

func validateConnectParams(p ConnectParams) error {
	if p.Family != FamilyIPv4 && p.Family != FamilyIPv6 {
		return &InvalidArgumentError{
			message: fmt.Sprintf("invalid address family %d", p.Family),
		}
	}
	if len(p.ClientID) > MaxClientIDLength {
		return &InvalidArgumentError{
			message: fmt.Sprintf(
				"client ID exceeds %d bytes", MaxClientIDLength,
			),
		}
	}
	if p.Host == "" {
		return &InvalidArgumentError{message: "broker host must not be empty"}
	}
	if p.Port == 0 {
		return &InvalidArgumentError{message: "broker port must not be zero"}
	}
	return nil
}

// resolveBroker looks the host up in the requested family only; a host with
// addresses solely in the other family is a resolution failure.
func (b *Bridge) resolveBroker(
	ctx context.Context,
	family AddressFamily,
	host string,
	port uint16,
) (netip.AddrPort, error) {
	addrs, err := b.resolver.LookupNetIP(ctx, family.network(), host)
	if err != nil {
		return netip.AddrPort{}, &ResolutionError{Host: host, wrapped: err}
	}
	if len(addrs) == 0 {
		return netip.AddrPort{}, &ResolutionError{Host: host}
	}
	return netip.AddrPortFrom(addrs[0].Unmap(), port), nil
}

func (b *Bridge) tlsConfigFor(tag, host string) (*tls.Config, error) {
	if tag == "" {
		return nil, nil
	}
	if b.creds == nil {
		return nil, &InvalidArgumentError{
			message: "security tag given but no credential store configured",
		}
	}

	cfg, err := b.creds.TLSConfig(tag)
	if err != nil {
		return nil, &InvalidArgumentError{
			message: fmt.Sprintf("cannot load credentials for tag %q", tag),
			wrapped: err,
		}
	}
	if cfg.ServerName == "" {
		cfg = cfg.Clone()
		cfg.ServerName = host
	}
	return cfg, nil
}
