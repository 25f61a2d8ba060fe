// SPDX-License-Identifier: Apache-2.0

package prompt

import (
	"context"
	"log/slog"
)

// TokenSource looks up a remembered secret. found=false means none is stored.
type TokenSource interface {
	Get(serviceKey, account string) (secret string, found bool, err error)
}

// Stored answers password prompts from a token store before falling back to
// Next. Tokens are keyed by ServiceKey and the question's Host.
type Stored struct {
	Next       Prompter
	Tokens     TokenSource
	ServiceKey string
	Logger     *slog.Logger
}

// Ask returns the stored token for q.Host if there is one, otherwise asks Next.
// The lookup key is NormalizeHost(q.Host).
// Vault errors are logged and treated as a miss so the user can still answer.
func (s *Stored) Ask(ctx context.Context, q Question) Outcome {
	if host := NormalizeHost(q.Host); q.IsSecret && host != "" {
		token, found, err := s.Tokens.Get(s.ServiceKey, host)
		switch {
		case err != nil:
			s.logger().Warn("token lookup failed, prompting instead", "host", q.Host, "error", err)
		case found && token != "":
			s.logger().Debug("answered from token store", "host", q.Host)
			return Success{Text: token}
		}
	}
	return s.Next.Ask(ctx, q)
}

func (s *Stored) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
