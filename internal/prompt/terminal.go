// SPDX-License-Identifier: Apache-2.0

package prompt

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrNoTerminal is reported when the host has no terminal to prompt on.
var ErrNoTerminal = errors.New("no terminal available for prompting")

// Terminal asks on the host's controlling terminal. Only one prompt is on
// screen at a time; concurrent Ask calls wait their turn.
type Terminal struct {
	mu     sync.Mutex
	input  io.Reader
	output io.Writer
}

// NewTerminal returns a Terminal prompting on stdin/stderr, or nil if stdin
// is not a terminal.
func NewTerminal() *Terminal {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return &Terminal{input: os.Stdin, output: os.Stderr}
}

// Ask shows q as a single-field form. Enter confirms; Escape or Ctrl+C cancels.
func (t *Terminal) Ask(ctx context.Context, q Question) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Failure{Err: err}
	}

	var answer string
	field := huh.NewInput().
		Title(q.Text).
		Description(q.Details).
		Value(&answer)
	if q.IsSecret {
		field = field.EchoMode(huh.EchoModePassword)
	}

	keys := huh.NewDefaultKeyMap()
	keys.Quit = key.NewBinding(key.WithKeys("esc", "ctrl+c"))

	form := huh.NewForm(huh.NewGroup(field)).
		WithKeyMap(keys).
		WithShowHelp(false).
		WithInput(t.input).
		WithOutput(t.output)

	err := form.RunWithContext(ctx)
	switch {
	case err == nil:
		return Success{Text: answer}
	case errors.Is(err, huh.ErrUserAborted):
		return Cancel{}
	default:
		return Failure{Err: err}
	}
}

// Unavailable is the prompter used when the host cannot show prompts. Every
// question fails, so the bridge answers with an empty credential.
type Unavailable struct{}

// Ask always reports ErrNoTerminal.
func (Unavailable) Ask(context.Context, Question) Outcome {
	return Failure{Err: ErrNoTerminal}
}
