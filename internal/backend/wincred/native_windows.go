// SPDX-License-Identifier: Apache-2.0

//go:build windows

package wincred

import (
	"errors"
	"fmt"

	"github.com/akihiro/git-askpass-bridge/internal/backend"
	"github.com/danieljoos/wincred"
)

// Native implements backend.Backend directly against the Windows Credential
// Manager. Entries are generic credentials named service/account.
type Native struct{}

// NewNative returns a Native backend.
func NewNative() *Native {
	return &Native{}
}

// Get returns the CredentialBlob of the generic credential for service/account.
func (Native) Get(service, account string) ([]byte, error) {
	target := backend.Target(service, account)
	cred, err := wincred.GetGenericCredential(target)
	if err != nil {
		return nil, classify("get", target, err)
	}
	return cred.CredentialBlob, nil
}

// Set writes a generic credential with PersistLocalMachine scope.
func (Native) Set(service, account string, secret []byte) error {
	if len(secret) > MaxSecretSize {
		return fmt.Errorf("secret too large for Windows Credential Manager (max %d bytes, got %d)", MaxSecretSize, len(secret))
	}
	cred := wincred.NewGenericCredential(backend.Target(service, account))
	cred.CredentialBlob = secret
	cred.UserName = account
	cred.Persist = wincred.PersistLocalMachine
	if err := cred.Write(); err != nil {
		return fmt.Errorf("wincred set %q: %w", cred.TargetName, err)
	}
	return nil
}

// Delete removes the generic credential for service/account.
func (Native) Delete(service, account string) error {
	target := backend.Target(service, account)
	cred, err := wincred.GetGenericCredential(target)
	if err != nil {
		return classify("delete", target, err)
	}
	if err := cred.Delete(); err != nil {
		return classify("delete", target, err)
	}
	return nil
}

func classify(op, target string, err error) error {
	if errors.Is(err, wincred.ErrElementNotFound) || isNotFound(err.Error()) {
		return fmt.Errorf("wincred %s %q: %w", op, target, backend.ErrNotFound)
	}
	return fmt.Errorf("wincred %s %q: %w", op, target, err)
}
