// SPDX-License-Identifier: Apache-2.0

// Package wincred stores secrets in the Windows Credential Manager. Native
// talks to the vault directly and is only built on Windows. Bridge reaches it
// from WSL2 by invoking a companion wincred-helper.exe through interop, one
// process per call, with newline-delimited JSON over stdin/stdout.
package wincred

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/akihiro/git-askpass-bridge/internal/backend"
	"github.com/akihiro/git-askpass-bridge/internal/ipc"
)

// MaxSecretSize is the largest CredentialBlob the Credential Manager accepts.
const MaxSecretSize = 2560

// HelperName is the file name of the Windows-side helper executable.
const HelperName = "wincred-helper.exe"

// Bridge implements backend.Backend by calling wincred-helper.exe.
type Bridge struct {
	helperPath string
}

// NewBridge creates a Bridge that uses the wincred-helper.exe at helperPath.
// If helperPath is empty, the helper is discovered automatically (see findHelper).
func NewBridge(helperPath string) (*Bridge, error) {
	if helperPath == "" {
		discovered, err := findHelper()
		if err != nil {
			return nil, fmt.Errorf("wincred-helper not found: %w", err)
		}
		helperPath = discovered
	}
	return &Bridge{helperPath: helperPath}, nil
}

// findHelper searches for wincred-helper.exe next to the running binary, in
// the XDG data directory and on PATH (which includes Windows paths under WSL2).
func findHelper() (string, error) {
	var candidates []string

	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), HelperName))
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		candidates = append(candidates, filepath.Join(xdgData, "git-askpass-bridge", HelperName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local", "share", "git-askpass-bridge", HelperName))
	}
	if path, err := exec.LookPath(HelperName); err == nil {
		candidates = append(candidates, path)
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", errors.New(HelperName + " not found; " +
		"place it alongside askpass-bridge or in ~/.local/share/git-askpass-bridge/")
}

// call invokes the helper with the given request and returns its response.
func (b *Bridge) call(req ipc.VaultRequest) (*ipc.VaultResponse, error) {
	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	reqData = append(reqData, '\n')

	cmd := exec.Command(b.helperPath)
	cmd.Stdin = bytes.NewReader(reqData)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("wincred-helper exited %d: %s", exitErr.ExitCode(), string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("run wincred-helper: %w", err)
	}

	var resp ipc.VaultResponse
	if err := json.Unmarshal(bytes.TrimSpace(out), &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// Get returns the raw secret bytes for service/account.
func (b *Bridge) Get(service, account string) ([]byte, error) {
	resp, err := b.call(ipc.VaultRequest{Action: ipc.ActionGet, Service: service, Account: account})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		if resp.NotFound || isNotFound(resp.Error) {
			return nil, fmt.Errorf("wincred get %q: %w", backend.Target(service, account), backend.ErrNotFound)
		}
		return nil, fmt.Errorf("wincred get %q: %s", backend.Target(service, account), resp.Error)
	}
	decoded, err := base64.StdEncoding.DecodeString(resp.Secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	return decoded, nil
}

// Set stores raw secret bytes under service/account.
func (b *Bridge) Set(service, account string, secret []byte) error {
	if len(secret) > MaxSecretSize {
		return fmt.Errorf("secret too large for Windows Credential Manager (max %d bytes, got %d)", MaxSecretSize, len(secret))
	}
	resp, err := b.call(ipc.VaultRequest{
		Action:  ipc.ActionSet,
		Service: service,
		Account: account,
		Secret:  base64.StdEncoding.EncodeToString(secret),
	})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("wincred set %q: %s", backend.Target(service, account), resp.Error)
	}
	return nil
}

// Delete removes the secret for service/account.
func (b *Bridge) Delete(service, account string) error {
	resp, err := b.call(ipc.VaultRequest{Action: ipc.ActionDelete, Service: service, Account: account})
	if err != nil {
		return err
	}
	if !resp.OK {
		if resp.NotFound || isNotFound(resp.Error) {
			return fmt.Errorf("wincred delete %q: %w", backend.Target(service, account), backend.ErrNotFound)
		}
		return fmt.Errorf("wincred delete %q: %s", backend.Target(service, account), resp.Error)
	}
	return nil
}

// isNotFound reports whether a helper error message indicates a missing
// credential. Older helpers only report it in the message text.
func isNotFound(errMsg string) bool {
	lower := strings.ToLower(errMsg)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "element not found") ||
		strings.Contains(lower, "no such")
}
