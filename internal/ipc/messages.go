// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the JSON messages exchanged between the processes of
// git-askpass-bridge: the askpass client and the bridge server, and the
// bridge and the Windows-side vault helper.
package ipc

// CredentialRequest is the body the askpass client POSTs to the bridge.
// Request is the literal prompt text git passed to GIT_ASKPASS; Host is the
// remote it was asked for, with its surrounding quotes stripped.
type CredentialRequest struct {
	Request string `json:"request"`
	Host    string `json:"host"`
}

// Vault helper actions.
const (
	ActionGet    = "get"
	ActionSet    = "set"
	ActionDelete = "delete"
)

// VaultRequest is the JSON message sent to wincred-helper.exe on stdin.
type VaultRequest struct {
	Action  string `json:"action"`           // ActionGet, ActionSet, ActionDelete
	Service string `json:"service"`          // service key
	Account string `json:"account"`          // account within the service
	Secret  string `json:"secret,omitempty"` // base64-encoded secret for "set"
}

// VaultResponse is the JSON message received from wincred-helper.exe on stdout.
type VaultResponse struct {
	OK       bool   `json:"ok"`
	Secret   string `json:"secret,omitempty"` // base64-encoded secret for "get"
	NotFound bool   `json:"not_found,omitempty"`
	Error    string `json:"error,omitempty"`
}
