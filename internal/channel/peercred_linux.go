// SPDX-License-Identifier: Apache-2.0

//go:build linux

package channel

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// peerListener drops connections whose SO_PEERCRED uid differs from ours.
// The socket mode already keeps other users out; this also covers sockets
// placed in a shared directory such as /tmp on filesystems that ignore it.
type peerListener struct {
	net.Listener
	uid uint32
}

func restrictPeers(l net.Listener) net.Listener {
	return &peerListener{Listener: l, uid: uint32(os.Getuid())}
}

func (l *peerListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		if uid, ok := peerUID(conn); ok && uid == l.uid {
			return conn, nil
		}
		conn.Close()
	}
}

// peerUID returns the uid of the process at the other end of conn.
func peerUID(conn net.Conn) (uint32, bool) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, false
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, false
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || credErr != nil {
		return 0, false
	}
	return cred.Uid, true
}
