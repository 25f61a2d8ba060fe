// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Filesystem reports whether addresses are filesystem entries that must be
// removed after the listener closes.
const Filesystem = true

// DefaultDir is where sockets go when no directory is configured:
// $XDG_RUNTIME_DIR (per-user, mode 0700) or else the temp directory.
func DefaultDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

// Derive returns the socket path for nonce inside dir (DefaultDir if empty).
func Derive(dir, nonce string) string {
	if dir == "" {
		dir = DefaultDir()
	}
	return filepath.Join(dir, fileName(nonce))
}

// Listen binds a Unix domain socket at addr, readable and writable by the
// owner only. On Linux, connections from other users are dropped.
func Listen(addr string) (net.Listener, error) {
	listener, err := net.Listen("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := os.Chmod(addr, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("set socket permissions: %w", err)
	}
	return restrictPeers(listener), nil
}

// Dial connects to the socket at addr.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", addr)
}

// Remove deletes the socket file at addr. A missing file is not an error.
func Remove(addr string) error {
	if err := os.Remove(addr); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove socket %s: %w", addr, err)
	}
	return nil
}
