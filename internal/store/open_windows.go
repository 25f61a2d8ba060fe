// SPDX-License-Identifier: Apache-2.0

//go:build windows

package store

import (
	"fmt"

	"github.com/akihiro/git-askpass-bridge/internal/backend/wincred"
)

func openPlatform(name string) (*TokenStore, error) {
	switch name {
	case BackendWincred:
		return New(wincred.NewNative()), nil
	default:
		return nil, fmt.Errorf("unknown or unsupported vault backend %q", name)
	}
}
