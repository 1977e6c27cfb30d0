// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParamsFromConnectionString(t *testing.T) {
	p, opts, err := ParamsFromConnectionString(
		"HostName=broker.example.com;TcpPort=8883;ClientId=link0;" +
			"Username=gateway;Password=pineapple;SecTag=tls0;" +
			"Family=ipv6;KeepAlive=PT90S;BufferSize=2048",
	)
	require.NoError(t, err)

	require.Equal(t, "broker.example.com", p.Host)
	require.Equal(t, uint16(8883), p.Port)
	require.Equal(t, "link0", p.ClientID)
	require.Equal(t, "gateway", p.Username)
	require.Equal(t, "pineapple", p.Password)
	require.Equal(t, "tls0", p.SecurityTag)
	require.Equal(t, FamilyIPv6, p.Family)

	// Options apply onto the bridge.
	b := New(newNopEngine(), nil, opts...)
	require.Equal(t, 90*time.Second, b.keepAlive)
	require.Equal(t, 2048, b.bufferSize)
}

func TestParamsFromConnectionStringDefaults(t *testing.T) {
	p, opts, err := ParamsFromConnectionString(
		"HostName=localhost;TcpPort=1883;",
	)
	require.NoError(t, err)
	require.Equal(t, FamilyIPv4, p.Family)
	require.Empty(t, p.ClientID)
	require.Empty(t, opts)
}

func TestParamsFromConnectionStringCredentialDir(t *testing.T) {
	_, opts, err := ParamsFromConnectionString(
		"HostName=localhost;TcpPort=8883;SecTag=tls0;" +
			"CredentialDir=/etc/mqttlink/creds;KeyFilePassword=sesame",
	)
	require.NoError(t, err)

	b := New(newNopEngine(), nil, opts...)
	store, ok := b.creds.(*FileCredentialStore)
	require.True(t, ok)
	require.Equal(t, "/etc/mqttlink/creds", store.Dir)
	require.Equal(t, "sesame", store.KeyPassword)
}

func TestParamsFromConnectionStringErrors(t *testing.T) {
	tests := []struct {
		name    string
		connStr string
	}{
		{"MissingHost", "TcpPort=1883"},
		{"MissingPort", "HostName=localhost"},
		{"BadPort", "HostName=localhost;TcpPort=banana"},
		{"ZeroPort", "HostName=localhost;TcpPort=0"},
		{"BadFamily", "HostName=localhost;TcpPort=1883;Family=ipx"},
		{"BadKeepAlive", "HostName=localhost;TcpPort=1883;KeepAlive=90s"},
		{"HugeKeepAlive", "HostName=localhost;TcpPort=1883;KeepAlive=PT20H"},
		{"BadBufferSize", "HostName=localhost;TcpPort=1883;BufferSize=-1"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := ParamsFromConnectionString(test.connStr)
			require.ErrorAs(t, err, new(*InvalidArgumentError))
		})
	}
}

func TestParamsFromEnv(t *testing.T) {
	t.Setenv("MQTTLINK_HOST_NAME", "broker.example.com")
	t.Setenv("MQTTLINK_TCP_PORT", "1883")
	t.Setenv("MQTTLINK_CLIENT_ID", "link1")
	t.Setenv("MQTTLINK_KEEP_ALIVE", "PT45S")

	p, opts, err := ParamsFromEnv()
	require.NoError(t, err)
	require.Equal(t, "broker.example.com", p.Host)
	require.Equal(t, uint16(1883), p.Port)
	require.Equal(t, "link1", p.ClientID)

	b := New(newNopEngine(), nil, opts...)
	require.Equal(t, 45*time.Second, b.keepAlive)
}

// nopEngine satisfies Engine for configuration tests that never connect.
type nopEngine struct{}

func newNopEngine() *nopEngine { return &nopEngine{} }

func (*nopEngine) Connect(EngineConfig) error            { return nil }
func (*nopEngine) Disconnect() error                     { return nil }
func (*nopEngine) Abort()                                {}
func (*nopEngine) Publish(PublishRequest) error          { return nil }
func (*nopEngine) Subscribe(SubscriptionRequest) error   { return nil }
func (*nopEngine) Unsubscribe(SubscriptionRequest) error { return nil }
func (*nopEngine) Live() error                           { return nil }
func (*nopEngine) Input() error                          { return nil }
func (*nopEngine) Await(time.Duration) (bool, error)     { return false, nil }
func (*nopEngine) KeepAliveRemaining() time.Duration     { return time.Minute }
func (*nopEngine) ReadPayload(int) ([]byte, error)       { return nil, nil }
func (*nopEngine) Release(uint16) error                  { return nil }
func (*nopEngine) Complete(uint16) error                 { return nil }
func (*nopEngine) OnEvent(func(Event))                   {}
