// SPDX-License-Identifier: Apache-2.0

//go:build windows

package channel

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// Filesystem reports whether addresses are filesystem entries that must be
// removed after the listener closes. Named pipes vanish with their handle.
const Filesystem = false

// ownerOnly grants generic-all to the pipe owner and nobody else.
const ownerOnly = "D:P(A;;GA;;;OW)"

// DefaultDir is unused for named pipes.
func DefaultDir() string { return "" }

// Derive returns the named pipe path for nonce. dir is ignored.
func Derive(_ string, nonce string) string {
	return `\\.\pipe\` + fileName(nonce)
}

// Listen creates the named pipe at addr.
func Listen(addr string) (net.Listener, error) {
	listener, err := winio.ListenPipe(addr, &winio.PipeConfig{SecurityDescriptor: ownerOnly})
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return listener, nil
}

// Dial connects to the named pipe at addr.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, addr)
}

// Remove is a no-op: named pipes have no filesystem entry.
func Remove(string) error { return nil }
