// SPDX-License-Identifier: Apache-2.0

// askpass-bridge runs in the host process and answers git credential
// prompts on its terminal or from tokens kept in the OS vault.
//
// Usage:
//
//	askpass-bridge serve                  # print exports, answer until interrupted
//	eval "$(askpass-bridge env)"          # in another shell, point git at it
//	askpass-bridge exec -- git push       # one-shot bridge around a command
//	askpass-bridge token set <host>       # remember a token for a host
package main

import "github.com/akihiro/git-askpass-bridge/internal/cli"

func main() {
	cli.Execute()
}
