// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import (
	"math/rand"
	"time"
)

// ClientIDs are guaranteed acceptable to a broker when they are between 1
// and 23 UTF-8 encoded bytes in length and only contain alphanumeric
// characters:
// https://docs.oasis-open.org/mqtt/mqtt/v5.0/os/mqtt-v5.0-os.html#_Toc3901059
const randomClientIDLength = 23

var validClientIDCharacters = []byte(
	"0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
)

// RandomClientID generates a random valid MQTT client ID. The bridge uses it
// when a connect command carries an empty client identifier; callers that
// need stable session guarantees should supply their own.
func RandomClientID() string {
	seed := time.Now().UnixNano()
	// #nosec G404
	r := rand.New(rand.NewSource(seed))

	id := make([]byte, randomClientIDLength)
	for i := range id {
		id[i] = validClientIDCharacters[r.Intn(len(validClientIDCharacters))]
	}
	return string(id)
}
