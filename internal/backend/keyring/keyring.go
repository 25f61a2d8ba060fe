// SPDX-License-Identifier: Apache-2.0

// Package keyring is a vault backend on top of zalando/go-keyring: the macOS
// Keychain via security(1), the Secret Service on Linux and the Credential
// Manager on Windows.
package keyring

import (
	"errors"
	"fmt"

	"github.com/akihiro/git-askpass-bridge/internal/backend"
	gokeyring "github.com/zalando/go-keyring"
)

// Backend implements backend.Backend via go-keyring. Secrets are stored as
// strings, so they must be valid UTF-8.
type Backend struct{}

// New returns a keyring Backend.
func New() *Backend {
	return &Backend{}
}

func (Backend) Get(service, account string) ([]byte, error) {
	v, err := gokeyring.Get(service, account)
	if err != nil {
		return nil, wrap("get", service, account, err)
	}
	return []byte(v), nil
}

func (Backend) Set(service, account string, secret []byte) error {
	if err := gokeyring.Set(service, account, string(secret)); err != nil {
		return wrap("set", service, account, err)
	}
	return nil
}

func (Backend) Delete(service, account string) error {
	if err := gokeyring.Delete(service, account); err != nil {
		return wrap("delete", service, account, err)
	}
	return nil
}

func wrap(op, service, account string, err error) error {
	if errors.Is(err, gokeyring.ErrNotFound) {
		return fmt.Errorf("keyring %s %q: %w", op, backend.Target(service, account), backend.ErrNotFound)
	}
	return fmt.Errorf("keyring %s %q: %w", op, backend.Target(service, account), err)
}
