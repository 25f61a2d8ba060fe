// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"github.com/akihiro/git-askpass-bridge/internal/askpass"
	"github.com/akihiro/git-askpass-bridge/internal/memprotect"
	"github.com/akihiro/git-askpass-bridge/internal/prompt"
	"github.com/akihiro/git-askpass-bridge/internal/store"
)

// bridge is a started askpass server together with what it owns.
type bridge struct {
	server *askpass.Server
	tokens *store.TokenStore
}

// startBridge hardens the process, opens the token vault and starts the
// askpass server. An unusable vault only disables remembered tokens.
func startBridge() *bridge {
	if err := memprotect.HardenProcess(logger); err != nil {
		logger.Warn("process hardening failed", "error", err)
	}

	var p prompt.Prompter = prompt.Unavailable{}
	if t := prompt.NewTerminal(); t != nil {
		p = t
	}

	b := &bridge{}
	tokens, err := store.Open(cfg.Backend, store.Options{HelperPath: cfg.HelperPath})
	if err != nil {
		logger.Warn("token vault unavailable, prompting only", "backend", cfg.Backend, "error", err)
	} else {
		b.tokens = tokens
		p = &prompt.Stored{Next: p, Tokens: tokens, ServiceKey: cfg.ServiceKey, Logger: logger}
	}

	b.server = askpass.New(askpass.Config{
		RuntimeDir:    cfg.RuntimeDir,
		ScriptDir:     cfg.ScriptDir,
		ClientPath:    cfg.ClientPath,
		PromptTimeout: cfg.PromptTimeout,
		Prompter:      p,
		Logger:        logger,
	})
	b.server.Start()
	return b
}

// Close disposes the server, then releases the vault.
func (b *bridge) Close() {
	if err := b.server.Dispose(); err != nil {
		logger.Warn("dispose askpass bridge", "error", err)
	}
	if b.tokens != nil {
		if err := b.tokens.Close(); err != nil {
			logger.Debug("close token vault", "error", err)
		}
	}
}
