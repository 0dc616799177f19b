// Package picker lets the user choose one line from a list of candidates.
package picker

import (
	"context"
	"errors"
	"os/exec"
)

// ErrAborted is returned when the user dismisses the picker without
// selecting anything.
var ErrAborted = errors.New("selection aborted")

// Prompt describes one selection.
type Prompt struct {
	// Header is shown above the candidates.
	Header string
	// Items are the candidate lines, in display order.
	Items []string
	// Binds are extra key bindings in fzf --bind syntax. Pickers that
	// cannot honor them ignore them.
	Binds []string
}

// Picker returns the line the user selected, trimmed of whitespace.
type Picker interface {
	Pick(ctx context.Context, p Prompt) (string, error)
}

// New returns the picker for the given mode: "fzf", "builtin", or "auto"
// (fzf when the binary is on PATH, the built-in picker otherwise).
func New(mode, fzfBin string) Picker {
	switch mode {
	case "builtin":
		return &Builtin{}
	case "fzf":
		return &Fzf{Bin: fzfBin}
	default:
		if _, err := exec.LookPath(fzfBin); err == nil {
			return &Fzf{Bin: fzfBin}
		}
		return &Builtin{}
	}
}
