package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	telem "github.com/timvw/sessionizer/internal/otel"
)

var tracer = otel.Tracer("sessionizer")

// Tmux implements the Multiplexer interface for tmux.
type Tmux struct {
	// Bin is the tmux executable.
	Bin string
	// Metrics counts invocations; nil-safe.
	Metrics *telem.Metrics

	// Terminal used by Attach. Nil fields default to the process stdio.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewTmux creates a new tmux multiplexer using the given binary.
func NewTmux(bin string) *Tmux {
	return &Tmux{Bin: bin}
}

// Name returns "tmux".
func (t *Tmux) Name() string {
	return "tmux"
}

// HasSession checks for an exact session name match.
func (t *Tmux) HasSession(ctx context.Context, id string) (bool, error) {
	_, err := t.run(ctx, "has-session", "-t", exact(SessionName(id)))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, fmt.Errorf("tmux has-session %s: %w", id, err)
	}
	return true, nil
}

// NewSession creates a detached session rooted at id.
func (t *Tmux) NewSession(ctx context.Context, id string) error {
	if _, err := t.run(ctx, "new-session", "-d", "-s", SessionName(id), "-c", id); err != nil {
		return fmt.Errorf("tmux new-session %s: %w", id, err)
	}
	return nil
}

// Attach attaches the terminal to the session. It blocks until the client
// detaches.
func (t *Tmux) Attach(ctx context.Context, id string) error {
	args := []string{"attach-session", "-t", exact(SessionName(id))}
	ctx, span := t.startSpan(ctx, args)
	defer span.End()

	slog.Debug("$ "+t.Bin+" "+strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, t.Bin, args...)
	cmd.Stdin = orDefault(t.Stdin, os.Stdin)
	cmd.Stdout = writerOrDefault(t.Stdout, os.Stdout)
	cmd.Stderr = writerOrDefault(t.Stderr, os.Stderr)
	err := cmd.Run()
	t.finish(ctx, span, args[0], err)
	if err != nil {
		return fmt.Errorf("tmux attach-session %s: %w", id, err)
	}
	return nil
}

// SwitchClient switches the current client to the session.
func (t *Tmux) SwitchClient(ctx context.Context, id string) error {
	if _, err := t.run(ctx, "switch-client", "-t", exact(SessionName(id))); err != nil {
		return fmt.Errorf("tmux switch-client %s: %w", id, err)
	}
	return nil
}

// IsServerActive returns true when a tmux server answers list-sessions.
func (t *Tmux) IsServerActive(ctx context.Context) bool {
	_, err := t.run(ctx, "list-sessions")
	return err == nil
}

// Attached returns true when running inside a tmux client ($TMUX is set).
func (t *Tmux) Attached() bool {
	return os.Getenv("TMUX") != ""
}

// ListSessions returns all session names in the order tmux reports them.
func (t *Tmux) ListSessions(ctx context.Context) ([]string, error) {
	out, err := t.run(ctx, "list-sessions")
	if err != nil {
		return nil, fmt.Errorf("tmux list-sessions: %w", err)
	}
	return parseSessions(out), nil
}

// CurrentSession returns the session name of the attached client.
func (t *Tmux) CurrentSession(ctx context.Context) (string, error) {
	out, err := t.run(ctx, "display-message", "-p", "#S")
	if err != nil {
		return "", fmt.Errorf("tmux display-message: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// KillSession kills the session with the given name.
func (t *Tmux) KillSession(ctx context.Context, name string) error {
	if _, err := t.run(ctx, "kill-session", "-t", exact(name)); err != nil {
		return fmt.Errorf("tmux kill-session %s: %w", name, err)
	}
	return nil
}

// run executes a tmux command and returns its stdout.
func (t *Tmux) run(ctx context.Context, args ...string) (string, error) {
	ctx, span := t.startSpan(ctx, args)
	defer span.End()

	slog.Debug("$ " + t.Bin + " " + strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, t.Bin, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
	}
	t.finish(ctx, span, args[0], err)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (t *Tmux) startSpan(ctx context.Context, args []string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tmux "+args[0],
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.StringSlice("tmux.args", args)))
}

func (t *Tmux) finish(ctx context.Context, span trace.Span, command string, err error) {
	t.Metrics.RecordMuxCommand(ctx, command, err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		slog.Debug("tmux command failed", "command", command, "err", err)
	}
}

// parseSessions extracts session names from list-sessions output.
// Each line is "<name>: <n> windows ..."; the name ends at the first ':'.
func parseSessions(out string) []string {
	var sessions []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, _, _ := strings.Cut(line, ":")
		sessions = append(sessions, name)
	}
	return sessions
}

// exact prefixes a session name so tmux does not fall back to prefix or
// pattern matching.
func exact(name string) string {
	return "=" + name
}

func orDefault(r io.Reader, def io.Reader) io.Reader {
	if r == nil {
		return def
	}
	return r
}

func writerOrDefault(w io.Writer, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}
