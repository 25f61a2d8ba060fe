// SPDX-License-Identifier: Apache-2.0

// Package store is the token store used by the bridge: long-lived secrets
// (personal access tokens, passwords) persisted in an OS credential vault
// keyed by (service key, account), never in this process's files.
package store

import (
	"errors"
	"fmt"

	"github.com/akihiro/git-askpass-bridge/internal/backend"
)

// TokenStore wraps a vault backend. It is safe for concurrent use if the
// backend is.
type TokenStore struct {
	backend backend.Backend
	closer  func() error
}

// New creates a TokenStore on top of be.
func New(be backend.Backend) *TokenStore {
	return &TokenStore{backend: be}
}

// Set adds or replaces the secret for serviceKey/account.
func (s *TokenStore) Set(serviceKey, account, secret string) error {
	if err := s.backend.Set(serviceKey, account, []byte(secret)); err != nil {
		return fmt.Errorf("store secret: %w", err)
	}
	return nil
}

// Get returns the secret for serviceKey/account. found is false when the
// vault has no such entry; an empty secret with found=true is a stored
// empty string. Vault failures are returned as err, never as not found.
func (s *TokenStore) Get(serviceKey, account string) (secret string, found bool, err error) {
	v, err := s.backend.Get(serviceKey, account)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read secret: %w", err)
	}
	return string(v), true, nil
}

// Delete removes the secret for serviceKey/account. It reports whether an
// entry existed and was removed.
func (s *TokenStore) Delete(serviceKey, account string) (bool, error) {
	if err := s.backend.Delete(serviceKey, account); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete secret: %w", err)
	}
	return true, nil
}

// Close releases the backend's resources, if it holds any.
func (s *TokenStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
