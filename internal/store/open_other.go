// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package store

import (
	"fmt"

	"github.com/akihiro/git-askpass-bridge/internal/backend/secretservice"
)

func openPlatform(name string) (*TokenStore, error) {
	switch name {
	case BackendSecretService:
		be, err := secretservice.New()
		if err != nil {
			return nil, fmt.Errorf("init secret service backend: %w", err)
		}
		s := New(be)
		s.closer = be.Close
		return s, nil
	default:
		return nil, fmt.Errorf("unknown or unsupported vault backend %q", name)
	}
}
