// SPDX-License-Identifier: Apache-2.0

//go:build !windows

// mock-wincred-helper is a Linux-native stand-in for wincred-helper.exe used
// during development and testing outside WSL2. It stores secrets as a JSON
// map in the file named by MOCK_WINCRED_STORE
// (default: /tmp/mock-wincred-store.json).
//
// Protocol: identical to wincred-helper.exe. It reads one JSON request line
// from stdin, writes one JSON response line to stdout, then exits.
//
// Usage:
//
//	MOCK_WINCRED_STORE=/path/to/store.json \
//	ASKPASS_BRIDGE_HELPER_PATH=./bin/mock-wincred-helper \
//	    askpass-bridge --backend wincred-helper serve
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/akihiro/git-askpass-bridge/internal/backend"
	"github.com/akihiro/git-askpass-bridge/internal/backend/wincred"
	"github.com/akihiro/git-askpass-bridge/internal/ipc"
	"golang.org/x/sys/unix"
)

func storePath() string {
	if p := os.Getenv("MOCK_WINCRED_STORE"); p != "" {
		return p
	}
	return "/tmp/mock-wincred-store.json"
}

// fileBackend is a backend.Backend over the flock'ed JSON map. Values are
// kept base64-encoded, the way they travel on the helper protocol.
type fileBackend struct {
	entries map[string][]byte
	mutated bool
}

func (b *fileBackend) Get(service, account string) ([]byte, error) {
	v, ok := b.entries[backend.Target(service, account)]
	if !ok {
		return nil, fmt.Errorf("credential %q: %w", backend.Target(service, account), backend.ErrNotFound)
	}
	return v, nil
}

func (b *fileBackend) Set(service, account string, secret []byte) error {
	b.entries[backend.Target(service, account)] = secret
	b.mutated = true
	return nil
}

func (b *fileBackend) Delete(service, account string) error {
	target := backend.Target(service, account)
	if _, ok := b.entries[target]; !ok {
		return fmt.Errorf("credential %q: %w", target, backend.ErrNotFound)
	}
	delete(b.entries, target)
	b.mutated = true
	return nil
}

func loadStore(f *os.File) (map[string][]byte, error) {
	entries := make(map[string][]byte)
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return entries, nil
	}
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	return entries, nil
}

func saveStore(f *os.File, entries map[string][]byte) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	return json.NewEncoder(f).Encode(entries)
}

func writeResponse(r ipc.VaultResponse) {
	_ = json.NewEncoder(os.Stdout).Encode(r)
}

func main() {
	var req ipc.VaultRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(ipc.VaultResponse{Error: fmt.Sprintf("decode request: %v", err)})
		os.Exit(1)
	}

	f, err := os.OpenFile(storePath(), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		writeResponse(ipc.VaultResponse{Error: fmt.Sprintf("open store: %v", err)})
		os.Exit(1)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		writeResponse(ipc.VaultResponse{Error: fmt.Sprintf("lock store: %v", err)})
		os.Exit(1)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:errcheck

	entries, err := loadStore(f)
	if err != nil {
		writeResponse(ipc.VaultResponse{Error: fmt.Sprintf("load store: %v", err)})
		os.Exit(1)
	}

	be := &fileBackend{entries: entries}
	resp := wincred.Handle(be, req)

	if be.mutated && resp.OK {
		if err := saveStore(f, be.entries); err != nil {
			writeResponse(ipc.VaultResponse{Error: fmt.Sprintf("save store: %v", err)})
			os.Exit(1)
		}
	}

	writeResponse(resp)
}
