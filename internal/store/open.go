// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"runtime"

	"github.com/akihiro/git-askpass-bridge/internal/backend/keyring"
	"github.com/akihiro/git-askpass-bridge/internal/backend/memory"
	"github.com/akihiro/git-askpass-bridge/internal/backend/wincred"
)

// Backend names accepted by Open.
const (
	BackendAuto          = "auto"
	BackendSecretService = "secretservice"
	BackendWincred       = "wincred"
	BackendWincredHelper = "wincred-helper"
	BackendKeyring       = "keyring"
	BackendMemory        = "memory"
)

// Options configures Open.
type Options struct {
	// HelperPath is the wincred-helper.exe used by the wincred-helper
	// backend. Empty means auto-discover.
	HelperPath string
}

// Open creates a TokenStore on the named backend. The caller must Close it.
func Open(name string, opts Options) (*TokenStore, error) {
	if name == "" || name == BackendAuto {
		name = defaultBackend()
	}
	switch name {
	case BackendMemory:
		return New(memory.New()), nil
	case BackendKeyring:
		return New(keyring.New()), nil
	case BackendWincredHelper:
		be, err := wincred.NewBridge(opts.HelperPath)
		if err != nil {
			return nil, fmt.Errorf("init wincred-helper backend: %w", err)
		}
		return New(be), nil
	default:
		return openPlatform(name)
	}
}

func defaultBackend() string {
	switch runtime.GOOS {
	case "windows":
		return BackendWincred
	case "darwin":
		return BackendKeyring
	default:
		return BackendSecretService
	}
}
