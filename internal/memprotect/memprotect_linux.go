// SPDX-License-Identifier: Apache-2.0

//go:build linux

// Package memprotect applies OS-level hardening so credentials passing
// through the bridge cannot be read from process memory by other processes
// running as the same user.
package memprotect

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// HardenProcess must be called as early as possible in main(), before any
// credential is read from the channel or the vault.
//
//  1. prctl(PR_SET_DUMPABLE, 0) disables core dumps, makes /proc/<pid>/mem
//     unreadable by non-root processes of the same UID and blocks ptrace
//     attachment by unprivileged peers.
//
//  2. mlockall(MCL_CURRENT|MCL_FUTURE) keeps pages out of swap. It fails in
//     restricted containers or under a small RLIMIT_MEMLOCK; that is
//     reported to logger and is not an error.
func HardenProcess(logger *slog.Logger) error {
	if err := unix.Prctl(unix.PR_SET_DUMPABLE, 0, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl PR_SET_DUMPABLE=0: %w", err)
	}

	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil && logger != nil {
		logger.Warn("mlockall failed, secrets may reach swap", "error", err)
	}

	return nil
}
