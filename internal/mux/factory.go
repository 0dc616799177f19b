package mux

import (
	"fmt"
)

// FromName creates a Multiplexer by name. bin overrides the binary path;
// an empty bin uses the name itself.
func FromName(name, bin string) (Multiplexer, error) {
	switch name {
	case "tmux":
		if bin == "" {
			bin = "tmux"
		}
		return NewTmux(bin), nil
	default:
		return nil, fmt.Errorf("unknown multiplexer: %q (supported: tmux)", name)
	}
}
