// SPDX-License-Identifier: Apache-2.0

// Package backend defines the interface for OS credential vault backends.
// A backend stores raw secret bytes keyed by a (service, account) pair; the
// store package builds the token store on top of it.
package backend

import "errors"

// ErrNotFound is returned, possibly wrapped, when a requested secret does
// not exist in the vault.
var ErrNotFound = errors.New("secret not found")

// Backend stores and retrieves raw secret bytes keyed by service and account.
type Backend interface {
	// Get returns the raw secret bytes for service/account.
	// Returns an error wrapping ErrNotFound if the entry does not exist.
	Get(service, account string) ([]byte, error)

	// Set stores raw secret bytes under service/account.
	// Creates the entry if it does not exist; replaces it if it does.
	Set(service, account string, secret []byte) error

	// Delete removes the secret for service/account.
	// Returns an error wrapping ErrNotFound if the entry does not exist.
	Delete(service, account string) error
}

// Target joins service and account into the single key used by vaults that
// only know one name per entry, such as the Windows Credential Manager.
func Target(service, account string) string {
	return service + "/" + account
}
