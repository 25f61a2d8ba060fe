// SPDX-License-Identifier: Apache-2.0

package secretservice

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// matchRegistry is the part of *dbus.Conn that manages bus match rules.
type matchRegistry interface {
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
}

// watchPrompt adds the match rule for the Completed signal of the prompt at
// path. The returned func removes the same rule again.
func watchPrompt(bus matchRegistry, path dbus.ObjectPath) (func(), error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(PromptIface),
		dbus.WithMatchMember("Completed"),
	}
	if err := bus.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("watch prompt: %w", err)
	}
	return func() { _ = bus.RemoveMatchSignal(opts...) }, nil
}
