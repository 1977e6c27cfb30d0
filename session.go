// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import (
	"net/netip"
	"sync/atomic"
)

// AddressFamily selects the IP family used to resolve and reach the broker.
type AddressFamily byte

const (
	FamilyIPv4 AddressFamily = iota
	FamilyIPv6
)

func (f AddressFamily) String() string {
	if f == FamilyIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// network returns the resolver network for the family.
func (f AddressFamily) network() string {
	if f == FamilyIPv6 {
		return "ip6"
	}
	return "ip4"
}

// session is the authoritative record of one logical connection. It is owned
// by the bridge's command path; the connected flag is the only field shared
// with the pump, which is why it is the only synchronized one. All other
// fields are written before the pump starts or after it has fully stopped.
type session struct {
	connected atomic.Bool

	family      AddressFamily
	clientID    string
	username    string
	password    []byte
	securityTag string

	host   string
	port   uint16
	broker netip.AddrPort
}

func (s *session) isConnected() bool {
	return s.connected.Load()
}

func (s *session) setConnected(up bool) {
	s.connected.Store(up)
}

// reset clears everything but the connected flag, which the caller is
// expected to have lowered already.
func (s *session) reset() {
	s.family = FamilyIPv4
	s.clientID = ""
	s.username = ""
	s.password = nil
	s.securityTag = ""
	s.host = ""
	s.port = 0
	s.broker = netip.AddrPort{}
}

// Status is the read-status query result for the current session.
type Status struct {
	Connected bool
	ClientID  string
	Host      string
	Port      uint16

	// SecurityTag is empty when the session is not using a secure transport.
	SecurityTag string
}

// Status reports the current session state. It is safe to call at any time,
// including while disconnected.
func (b *Bridge) Status() Status {
	return Status{
		Connected:   b.session.isConnected(),
		ClientID:    b.session.clientID,
		Host:        b.session.host,
		Port:        b.session.port,
		SecurityTag: b.session.securityTag,
	}
}
