// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package memprotect

import "log/slog"

// HardenProcess is a no-op on platforms without prctl/mlockall support.
func HardenProcess(*slog.Logger) error {
	return nil
}
