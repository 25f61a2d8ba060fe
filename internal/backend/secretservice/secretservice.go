// SPDX-License-Identifier: Apache-2.0

//go:build !windows

// Package secretservice is a vault backend speaking the freedesktop.org
// Secret Service API over the session D-Bus. Items live in the default
// collection and are looked up by service/account attributes.
package secretservice

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/akihiro/git-askpass-bridge/internal/backend"
	"github.com/godbus/dbus/v5"
)

// promptTimeout bounds how long an unlock prompt may stay on screen.
const promptTimeout = 2 * time.Minute

// Backend implements backend.Backend against org.freedesktop.secrets.
type Backend struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// New connects to the session bus. The caller owns the Backend and must Close it.
func New() (*Backend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return &Backend{conn: conn}, nil
}

// Close releases the D-Bus connection.
func (b *Backend) Close() error {
	return b.conn.Close()
}

func (b *Backend) service() dbus.BusObject {
	return b.conn.Object(BusName, ServicePath)
}

// openSession negotiates an encrypted transfer session and falls back to a
// plain one when the service does not support the DH algorithm.
func (b *Backend) openSession() (*session, error) {
	kp, err := newDHKeyPair(rand.Reader)
	if err != nil {
		return nil, err
	}
	var output dbus.Variant
	var path dbus.ObjectPath
	err = b.service().Call(ServiceIface+".OpenSession", 0, algorithmDH, dbus.MakeVariant(kp.publicBytes())).Store(&output, &path)
	if err == nil {
		peer, ok := output.Value().([]byte)
		if !ok {
			b.closeSession(&session{path: path})
			return nil, fmt.Errorf("open secret service session: unexpected output type %s", output.Signature())
		}
		key, err := kp.sessionKey(peer)
		if err != nil {
			b.closeSession(&session{path: path})
			return nil, fmt.Errorf("open secret service session: %w", err)
		}
		return &session{path: path, key: key}, nil
	}

	err = b.service().Call(ServiceIface+".OpenSession", 0, algorithmPlain, dbus.MakeVariant("")).Store(&output, &path)
	if err != nil {
		return nil, fmt.Errorf("open secret service session: %w", err)
	}
	return &session{path: path}, nil
}

func (b *Backend) closeSession(s *session) {
	_ = b.conn.Object(BusName, s.path).Call(SessionIface+".Close", 0).Err
}

// find returns the first unlocked item matching service/account, unlocking
// locked matches first.
func (b *Backend) find(service, account string) (dbus.ObjectPath, error) {
	var unlocked, locked []dbus.ObjectPath
	err := b.service().Call(ServiceIface+".SearchItems", 0, attributes(service, account)).Store(&unlocked, &locked)
	if err != nil {
		return "", fmt.Errorf("search items: %w", err)
	}
	if len(unlocked) > 0 {
		return unlocked[0], nil
	}
	if len(locked) == 0 {
		return "", fmt.Errorf("secret service %q: %w", backend.Target(service, account), backend.ErrNotFound)
	}

	var prompt dbus.ObjectPath
	if err := b.service().Call(ServiceIface+".Unlock", 0, locked[:1]).Store(&unlocked, &prompt); err != nil {
		return "", fmt.Errorf("unlock item: %w", err)
	}
	if prompt != NoPrompt {
		if err := b.prompt(prompt); err != nil {
			return "", err
		}
	}
	return locked[0], nil
}

// prompt runs a Secret Service prompt and waits for its Completed signal.
func (b *Backend) prompt(path dbus.ObjectPath) error {
	unwatch, err := watchPrompt(b.conn, path)
	if err != nil {
		return err
	}
	defer unwatch()

	signals := make(chan *dbus.Signal, 1)
	b.conn.Signal(signals)
	defer b.conn.RemoveSignal(signals)

	if err := b.conn.Object(BusName, path).Call(PromptIface+".Prompt", 0, "").Err; err != nil {
		return fmt.Errorf("show prompt: %w", err)
	}

	timeout := time.After(promptTimeout)
	for {
		select {
		case sig := <-signals:
			if sig == nil || sig.Path != path {
				continue
			}
			if len(sig.Body) > 0 {
				if dismissed, ok := sig.Body[0].(bool); ok && dismissed {
					return fmt.Errorf("secret service prompt dismissed")
				}
			}
			return nil
		case <-timeout:
			_ = b.conn.Object(BusName, path).Call(PromptIface+".Dismiss", 0).Err
			return fmt.Errorf("secret service prompt timed out after %s", promptTimeout)
		}
	}
}

// Get returns the secret value of the matching item.
func (b *Backend) Get(service, account string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	item, err := b.find(service, account)
	if err != nil {
		return nil, err
	}
	sess, err := b.openSession()
	if err != nil {
		return nil, err
	}
	defer b.closeSession(sess)

	var secret Secret
	if err := b.conn.Object(BusName, item).Call(ItemIface+".GetSecret", 0, sess.path).Store(&secret); err != nil {
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return sess.decode(secret)
}

// Set creates or replaces the item for service/account in the default collection.
func (b *Backend) Set(service, account string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sess, err := b.openSession()
	if err != nil {
		return err
	}
	defer b.closeSession(sess)

	attrs := attributes(service, account)
	attrs[AttrSchema] = genericSchema
	props := map[string]dbus.Variant{
		ItemIface + ".Label":      dbus.MakeVariant(label(service, account)),
		ItemIface + ".Attributes": dbus.MakeVariant(attrs),
	}
	secret, err := sess.encode(value)
	if err != nil {
		return err
	}

	var item, prompt dbus.ObjectPath
	err = b.conn.Object(BusName, DefaultCollectionPath).
		Call(CollectionIface+".CreateItem", 0, props, secret, true).
		Store(&item, &prompt)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	if prompt != NoPrompt {
		return b.prompt(prompt)
	}
	return nil
}

// Delete removes the matching item.
func (b *Backend) Delete(service, account string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	item, err := b.find(service, account)
	if err != nil {
		return err
	}
	var prompt dbus.ObjectPath
	if err := b.conn.Object(BusName, item).Call(ItemIface+".Delete", 0).Store(&prompt); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if prompt != NoPrompt {
		return b.prompt(prompt)
	}
	return nil
}
