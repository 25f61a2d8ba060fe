// SPDX-License-Identifier: Apache-2.0

// Package channel names, binds and dials the local IPC endpoint of the
// bridge: a Unix domain socket on Unix-like systems and a named pipe on
// Windows. Addresses embed a random nonce so that concurrent host sessions
// never collide and the endpoint cannot be guessed.
package channel

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// NonceSize is the number of random bytes in a nonce (160 bits).
const NonceSize = 20

const namePrefix = "askpass-bridge-"

// NewNonce reads NonceSize bytes from r (crypto/rand.Reader if nil) and
// returns them hex-encoded.
func NewNonce(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, NonceSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func fileName(nonce string) string {
	return namePrefix + nonce + "-sock"
}
