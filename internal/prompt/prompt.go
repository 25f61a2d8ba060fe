// SPDX-License-Identifier: Apache-2.0

// Package prompt defines the capability the bridge uses to ask the user for
// a credential, and the implementations shipped with askpass-bridge.
package prompt

import (
	"context"
	"regexp"
	"strings"
)

// Question is one credential prompt.
type Question struct {
	// IsSecret hides the input while it is typed.
	IsSecret bool
	// Text is the prompt git emitted, e.g. "Password for 'https://host': ".
	Text string
	// Details is a secondary line shown under Text.
	Details string
	// Host is the remote the credential is for. Prompters that remember
	// credentials key them by Host.
	Host string
}

// Prompter presents a Question and reports the user's decision. Ask may be
// called from many goroutines at once; an implementation that can show only
// one prompt at a time must serialize internally.
type Prompter interface {
	Ask(ctx context.Context, q Question) Outcome
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, q Question) Outcome

// Ask calls f(ctx, q).
func (f PrompterFunc) Ask(ctx context.Context, q Question) Outcome {
	return f(ctx, q)
}

var passwordPattern = regexp.MustCompile(`(?i)password`)

// IsPasswordRequest reports whether git's prompt text asks for a password,
// as opposed to a username.
func IsPasswordRequest(text string) bool {
	return passwordPattern.MatchString(text)
}

// NormalizeHost turns the host as it reaches the bridge into the key tokens
// are stored under. askpass.sh word-splits git's prompt, so the host of
// "Password for 'https://github.com': " arrives as "https://github.com'".
func NormalizeHost(host string) string {
	return strings.TrimRight(strings.TrimSpace(host), "':")
}
