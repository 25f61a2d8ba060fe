// SPDX-License-Identifier: Apache-2.0

//go:build windows

// wincred-helper is a Windows-side companion executable for askpass-bridge.
// It is cross-compiled (GOOS=windows) and called from WSL2 via interop
// whenever a bridge running under Linux is configured with the
// wincred-helper vault backend.
//
// Protocol: reads one JSON request line from stdin, writes one JSON response
// line to stdout, then exits. Exit code 0 means the response was written
// (including error responses where ok=false). Non-zero exit means a fatal
// error before a request could be decoded.
//
// Request fields:
//
//	action   string  "get" | "set" | "delete"
//	service  string  service key
//	account  string  account within the service
//	secret   string  base64-encoded CredentialBlob (only for "set")
//
// Response fields:
//
//	ok         bool
//	secret     string  base64-encoded CredentialBlob (only for "get")
//	not_found  bool    the credential does not exist
//	error      string  human-readable error (only when ok=false)
//
// Credentials are generic credentials whose TargetName is service/account.
package main

import (
	"os"

	"github.com/akihiro/git-askpass-bridge/internal/backend/wincred"
)

func main() {
	if err := wincred.ServeOne(wincred.NewNative(), os.Stdin, os.Stdout); err != nil {
		os.Exit(1)
	}
}
