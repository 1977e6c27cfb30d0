// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// ParamsFromConnectionString parses a connection string of the form
// "HostName=broker.example.com;TcpPort=8883;ClientId=link0;SecTag=tls0"
// into connect parameters plus bridge options. Durations use ISO 8601
// (KeepAlive=PT90S).
func ParamsFromConnectionString(
	connStr string,
) (ConnectParams, []Option, error) {
	settingsMap := parseToSettingsMap(connStr, ";")
	return paramsFromSettingsMap(settingsMap)
}

// ParamsFromEnv builds connect parameters from MQTTLINK_-prefixed
// environment variables:
//
//	MQTTLINK_HOST_NAME=broker.example.com
//	MQTTLINK_TCP_PORT=8883
//	MQTTLINK_SEC_TAG=tls0
func ParamsFromEnv() (ConnectParams, []Option, error) {
	settingsMap := parseToSettingsMap(os.Environ(), "=")
	return paramsFromSettingsMap(settingsMap)
}

const envPrefix = "MQTTLINK_"

func parseToSettingsMap(
	input any,
	delimiter string,
) map[string]string {
	settingsMap := make(map[string]string)

	switch v := input.(type) {
	case string:
		// Parse connection string.
		v = strings.TrimSuffix(v, delimiter)
		params := strings.Split(v, delimiter)
		for _, param := range params {
			kv := strings.SplitN(param, "=", 2)
			if len(kv) == 2 {
				k := strings.ToLower(strings.TrimSpace(kv[0]))
				v := strings.TrimSpace(kv[1])
				settingsMap[k] = v
			}
		}
	case []string:
		// Parse environment variables.
		for _, envVar := range v {
			kv := strings.SplitN(envVar, delimiter, 2)
			if len(kv) == 2 && strings.HasPrefix(kv[0], envPrefix) {
				k := strings.ToLower(
					strings.ReplaceAll(
						strings.TrimPrefix(kv[0], envPrefix),
						"_",
						"",
					),
				)
				v := strings.TrimSpace(kv[1])
				settingsMap[k] = v
			}
		}
	}
	return settingsMap
}

func paramsFromSettingsMap(
	settingsMap map[string]string,
) (ConnectParams, []Option, error) {
	var p ConnectParams
	var opts []Option

	if settingsMap["hostname"] == "" {
		return p, nil, &InvalidArgumentError{
			message: "HostName must not be empty",
		}
	}
	p.Host = settingsMap["hostname"]

	if settingsMap["tcpport"] == "" {
		return p, nil, &InvalidArgumentError{
			message: "TcpPort must not be empty",
		}
	}
	port, err := strconv.ParseUint(settingsMap["tcpport"], 10, 16)
	if err != nil || port == 0 {
		return p, nil, &InvalidArgumentError{
			wrapped: err,
			message: "invalid TcpPort " + settingsMap["tcpport"],
		}
	}
	p.Port = uint16(port)

	switch strings.ToLower(settingsMap["family"]) {
	case "", "ipv4":
		p.Family = FamilyIPv4
	case "ipv6":
		p.Family = FamilyIPv6
	default:
		return p, nil, &InvalidArgumentError{
			message: "invalid Family " + settingsMap["family"],
		}
	}

	assignIfExists(settingsMap, "clientid", &p.ClientID)
	assignIfExists(settingsMap, "username", &p.Username)
	assignIfExists(settingsMap, "password", &p.Password)
	assignIfExists(settingsMap, "sectag", &p.SecurityTag)

	if value, exists := settingsMap["keepalive"]; exists {
		keepAlive, err := duration.Parse(value)
		if err != nil {
			return p, nil, &InvalidArgumentError{
				wrapped: err,
				message: "invalid KeepAlive " + value,
			}
		}
		opts = append(opts, WithKeepAlive(keepAlive.ToTimeDuration()))
	}

	if value, exists := settingsMap["buffersize"]; exists {
		bufferSize, err := strconv.Atoi(value)
		if err != nil || bufferSize <= 0 {
			return p, nil, &InvalidArgumentError{
				wrapped: err,
				message: "invalid BufferSize " + value,
			}
		}
		opts = append(opts, WithBufferSize(bufferSize))
	}

	if dir, exists := settingsMap["credentialdir"]; exists && dir != "" {
		opts = append(opts, WithCredentialStore(&FileCredentialStore{
			Dir:         dir,
			KeyPassword: settingsMap["keyfilepassword"],
		}))
	}

	return p, opts, validateSettings(p, settingsMap)
}

// maxKeepAlive is the largest keep-alive the CONNECT packet can carry,
// in seconds.
const maxKeepAlive = 65535

func validateSettings(p ConnectParams, settingsMap map[string]string) error {
	if value, exists := settingsMap["keepalive"]; exists {
		keepAlive, _ := duration.Parse(value)
		if keepAlive.ToTimeDuration() > maxKeepAlive*time.Second {
			return &InvalidArgumentError{
				message: "KeepAlive cannot be more than " +
					strconv.Itoa(maxKeepAlive) + " seconds",
			}
		}
	}

	if len(p.ClientID) > MaxClientIDLength {
		return &InvalidArgumentError{
			message: "ClientId exceeds " +
				strconv.Itoa(MaxClientIDLength) + " bytes",
		}
	}

	return nil
}

// assignIfExists assigns non-empty string values from settingsMap to the
// corresponding connect parameter fields.
func assignIfExists(
	settingsMap map[string]string,
	key string,
	field *string,
) {
	if value, exists := settingsMap[key]; exists && value != "" {
		*field = value
	}
}
