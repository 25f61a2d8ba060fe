// SPDX-License-Identifier: Apache-2.0

// Package memory is an in-process vault backend. Secrets live only as long
// as the process; it backs tests and the "memory" backend setting.
package memory

import (
	"fmt"
	"sync"

	"github.com/akihiro/git-askpass-bridge/internal/backend"
)

// Backend implements backend.Backend with a mutex-guarded map.
type Backend struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{entries: make(map[string][]byte)}
}

// Get returns a copy of the stored secret.
func (b *Backend) Get(service, account string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.entries[backend.Target(service, account)]
	if !ok {
		return nil, fmt.Errorf("memory get %q: %w", backend.Target(service, account), backend.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of secret.
func (b *Backend) Set(service, account string, secret []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[backend.Target(service, account)] = append([]byte(nil), secret...)
	return nil
}

// Delete zeroes and removes the entry.
func (b *Backend) Delete(service, account string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	target := backend.Target(service, account)
	v, ok := b.entries[target]
	if !ok {
		return fmt.Errorf("memory delete %q: %w", target, backend.ErrNotFound)
	}
	clear(v)
	delete(b.entries, target)
	return nil
}
