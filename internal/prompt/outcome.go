// SPDX-License-Identifier: Apache-2.0

package prompt

// Outcome is the result of a prompt: exactly one of Success, Cancel or
// Failure. The interface is sealed; no other package can add a variant.
type Outcome interface {
	outcome()
}

// Success carries the text the user entered.
type Success struct {
	Text string
}

// Cancel means the user dismissed the prompt.
type Cancel struct{}

// Failure means the prompt could not be shown or completed.
type Failure struct {
	Err error
}

func (Success) outcome() {}
func (Cancel) outcome()  {}
func (Failure) outcome() {}

// String never includes the entered text.
func (Success) String() string { return "success" }
func (Cancel) String() string  { return "cancel" }
func (f Failure) String() string {
	if f.Err == nil {
		return "failure"
	}
	return "failure: " + f.Err.Error()
}
