// Package mux provides an abstraction over the terminal multiplexer server.
//
// Every method is a single blocking invocation of the multiplexer binary.
// Callers decide what the results mean; this package only maps process exit
// status to success or failure.
package mux

import (
	"context"
	"strings"
)

// Multiplexer abstracts the terminal multiplexer operations sessionizer needs.
// Session identifiers are directory paths; implementations derive the
// server-side session name with SessionName.
type Multiplexer interface {
	// Name returns the multiplexer name (e.g., "tmux").
	Name() string

	// HasSession reports whether a session exists for id. A non-zero exit
	// from the multiplexer means "no", not an error.
	HasSession(ctx context.Context, id string) (bool, error)

	// NewSession creates a detached session named after id with id as its
	// working directory.
	NewSession(ctx context.Context, id string) error

	// Attach attaches the current terminal to the session for id.
	Attach(ctx context.Context, id string) error

	// SwitchClient moves the attached client to the session for id.
	SwitchClient(ctx context.Context, id string) error

	// IsServerActive reports whether a multiplexer server is running.
	IsServerActive(ctx context.Context) bool

	// Attached reports whether this process runs inside a multiplexer client.
	Attached() bool

	// ListSessions returns the live session names in server order.
	ListSessions(ctx context.Context) ([]string, error)

	// CurrentSession returns the name of the attached client's session.
	CurrentSession(ctx context.Context) (string, error)

	// KillSession terminates the session with the given name.
	KillSession(ctx context.Context, name string) error
}

// nameSeparator replaces '.' in session names; tmux uses '.' to separate
// window and pane indexes in targets.
const nameSeparator = "·"

// SessionName maps a session id (a directory path) to its multiplexer
// session name.
func SessionName(id string) string {
	return strings.ReplaceAll(id, ".", nameSeparator)
}

// SessionID is the inverse of SessionName.
func SessionID(name string) string {
	return strings.ReplaceAll(name, nameSeparator, ".")
}
