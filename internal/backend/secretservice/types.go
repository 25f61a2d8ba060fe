// SPDX-License-Identifier: Apache-2.0

package secretservice

import "github.com/godbus/dbus/v5"

const (
	BusName     = "org.freedesktop.secrets"
	ServicePath = dbus.ObjectPath("/org/freedesktop/secrets")

	ServiceIface    = "org.freedesktop.Secret.Service"
	CollectionIface = "org.freedesktop.Secret.Collection"
	ItemIface       = "org.freedesktop.Secret.Item"
	SessionIface    = "org.freedesktop.Secret.Session"
	PromptIface     = "org.freedesktop.Secret.Prompt"

	// DefaultCollectionPath is the alias every Secret Service implementation
	// resolves to the user's login collection.
	DefaultCollectionPath = dbus.ObjectPath("/org/freedesktop/secrets/aliases/default")

	// NoPrompt is returned in place of a prompt path when no user
	// interaction is needed.
	NoPrompt = dbus.ObjectPath("/")

	// Attribute names shared with libsecret-based tools such as keytar, so
	// entries written by either are visible to the other.
	AttrService = "service"
	AttrAccount = "account"
	AttrSchema  = "xdg:schema"

	genericSchema = "org.freedesktop.Secret.Generic"
)

// Secret is the D-Bus type (oayays) representing an encoded secret.
type Secret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

// attributes returns the lookup attributes for service/account.
func attributes(service, account string) map[string]string {
	return map[string]string{
		AttrService: service,
		AttrAccount: account,
	}
}

// label is the human-readable item label shown by Seahorse and friends.
func label(service, account string) string {
	return service + " (" + account + ")"
}
