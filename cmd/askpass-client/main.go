// SPDX-License-Identifier: Apache-2.0

// askpass-client is started by askpass.sh for every git credential prompt.
// It forwards the prompt to the bridge named by GIT_ASKPASS_BRIDGE_HANDLE and
// writes the answer to the file named by GIT_ASKPASS_BRIDGE_PIPE.
//
// Usage (from the script only):
//
//	askpass-client <script> <request> <word> <'host'>
//
// Exit code 0 means the answer was written; 1 means it was not.
package main

import (
	"context"
	"os"

	"github.com/akihiro/git-askpass-bridge/internal/askpass"
	"github.com/akihiro/git-askpass-bridge/internal/memprotect"
)

func main() {
	// Hardening is best effort; the client never logs.
	_ = memprotect.HardenProcess(nil)
	os.Exit(askpass.NewClient().Run(context.Background(), os.Args))
}
