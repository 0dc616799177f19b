package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/timvw/sessionizer/internal/discovery"
	"github.com/timvw/sessionizer/internal/model"
	"github.com/timvw/sessionizer/internal/mux"
	telem "github.com/timvw/sessionizer/internal/otel"
	"github.com/timvw/sessionizer/internal/picker"
)

var tracer = otel.Tracer("sessionizer/registry")

// ErrNoSessionsToSync is returned by a reverse sync when the multiplexer has
// no live sessions to adopt.
var ErrNoSessionsToSync = errors.New("no live sessions to sync")

// Picker headers.
const (
	SessionsHeader    = "Press CTRL-X to delete a session."
	DirectoriesHeader = "Select a directory from the list to start a new session"
)

// Status classifies a completed operation.
type Status int

const (
	// StatusOK means the operation did what was asked.
	StatusOK Status = iota
	// StatusMismatch means the request did not fit the current state (an
	// unknown session, a path that is not a directory). Nothing changed.
	StatusMismatch
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMismatch:
		return "mismatch"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result describes the outcome of an Engine operation.
type Result struct {
	Status  Status
	Message string
	// Target is the session the operation acted on, if any.
	Target string
	// Mutated reports whether the registry changed and must be saved.
	Mutated bool
	// Attach is set when DeferAttach is on and the caller still has to
	// attach the terminal to this session.
	Attach string
}

func mismatch(target, format string, args ...any) Result {
	return Result{Status: StatusMismatch, Target: target, Message: fmt.Sprintf(format, args...)}
}

// Engine runs session operations against a registry and a multiplexer.
type Engine struct {
	Mux    mux.Multiplexer
	Picker picker.Picker
	// Metrics is optional.
	Metrics *telem.Metrics

	// SessionBinds are extra picker key bindings offered by Go.
	SessionBinds []string

	// DeferAttach makes foregrounding outside a multiplexer client report
	// the session in Result.Attach instead of attaching. Attaching blocks
	// until the client detaches, so callers holding the document lock set
	// this and attach after saving.
	DeferAttach bool
}

// observe wraps one operation in a span and records its outcome.
func (e *Engine) observe(ctx context.Context, op string, fn func(ctx context.Context) (Result, error)) (Result, error) {
	ctx, span := tracer.Start(ctx, "sessions."+op)
	defer span.End()

	res, err := fn(ctx)
	status := res.Status.String()
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.String("session.target", res.Target),
		attribute.String("operation.status", status),
		attribute.Bool("registry.mutated", res.Mutated),
	)
	e.Metrics.RecordOperation(ctx, op, status)

	switch {
	case err != nil:
		slog.Error("session operation failed", "op", op, "target", res.Target, "err", err)
	case res.Status == StatusMismatch:
		slog.Info("session operation skipped", "op", op, "target", res.Target, "reason", res.Message)
	default:
		slog.Debug("session operation done", "op", op, "target", res.Target, "mutated", res.Mutated)
	}
	return res, err
}

// Activate switches to the session for id, creating it if needed, and makes
// it the most recent entry.
func (e *Engine) Activate(ctx context.Context, reg *Registry, id string) (Result, error) {
	return e.observe(ctx, "activate", func(ctx context.Context) (Result, error) {
		return e.activate(ctx, reg, id)
	})
}

func (e *Engine) activate(ctx context.Context, reg *Registry, id string) (Result, error) {
	if !isDir(id) {
		return mismatch(id, "%s: not a directory", id), nil
	}
	res := Result{Target: id}
	if err := e.ensureActivated(ctx, id, &res); err != nil {
		return res, err
	}
	res.Mutated = reg.Push(id)
	res.Message = "activated " + id
	return res, nil
}

// Go activates a registered session. An empty id asks the user to pick one,
// most recent first.
func (e *Engine) Go(ctx context.Context, reg *Registry, id string) (Result, error) {
	return e.observe(ctx, "go", func(ctx context.Context) (Result, error) {
		if id == "" {
			res, err := e.chooseSession(ctx, reg)
			if err != nil || res.Status != StatusOK {
				return res, err
			}
			id = res.Target
		}
		if !reg.Contains(id) {
			return mismatch(id, "%s: not found", id), nil
		}
		return e.activate(ctx, reg, id)
	})
}

// ChooseSession asks the user to pick a registered session without
// activating it. The choice is in Result.Target.
func (e *Engine) ChooseSession(ctx context.Context, reg *Registry) (Result, error) {
	return e.observe(ctx, "choose_session", func(ctx context.Context) (Result, error) {
		return e.chooseSession(ctx, reg)
	})
}

func (e *Engine) chooseSession(ctx context.Context, reg *Registry) (Result, error) {
	if reg.Len() == 0 {
		return mismatch("", "no sessions"), nil
	}
	picked, err := e.pick(ctx, picker.Prompt{
		Header: SessionsHeader,
		Items:  reg.Recent(),
		Binds:  e.SessionBinds,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusOK, Target: picked}, nil
}

// Add registers id and creates its session. With activate set, the session
// is also brought to the foreground.
func (e *Engine) Add(ctx context.Context, reg *Registry, id string, activate bool) (Result, error) {
	return e.observe(ctx, "add", func(ctx context.Context) (Result, error) {
		return e.add(ctx, reg, id, activate)
	})
}

func (e *Engine) add(ctx context.Context, reg *Registry, id string, activate bool) (Result, error) {
	if reg.Contains(id) {
		return mismatch(id, "%s: already exists", id), nil
	}
	if !isDir(id) {
		return mismatch(id, "%s: not a directory", id), nil
	}
	res := Result{Target: id}
	if err := e.ensureSession(ctx, id); err != nil {
		return res, err
	}
	if activate {
		if err := e.foreground(ctx, id, e.Mux.Attached(), &res); err != nil {
			return res, err
		}
	}
	reg.Push(id)
	res.Mutated = true
	res.Message = "added " + id
	return res, nil
}

// New lets the user pick one of the directories discovered under roots and
// starts a session for it.
func (e *Engine) New(ctx context.Context, reg *Registry, roots []model.Root) (Result, error) {
	return e.observe(ctx, "new", func(ctx context.Context) (Result, error) {
		res, err := e.chooseDirectory(ctx, roots)
		if err != nil || res.Status != StatusOK {
			return res, err
		}
		return e.start(ctx, reg, res.Target)
	})
}

// ChooseDirectory asks the user to pick one of the directories discovered
// under roots. The choice is in Result.Target.
func (e *Engine) ChooseDirectory(ctx context.Context, roots []model.Root) (Result, error) {
	return e.observe(ctx, "choose_directory", func(ctx context.Context) (Result, error) {
		return e.chooseDirectory(ctx, roots)
	})
}

func (e *Engine) chooseDirectory(ctx context.Context, roots []model.Root) (Result, error) {
	candidates, err := discovery.Evaluate(ctx, roots, e.Metrics)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		return mismatch("", "no directories"), nil
	}
	picked, err := e.pick(ctx, picker.Prompt{Header: DirectoriesHeader, Items: candidates})
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusOK, Target: picked}, nil
}

// Start activates id when it is registered and adds and activates it
// otherwise.
func (e *Engine) Start(ctx context.Context, reg *Registry, id string) (Result, error) {
	return e.observe(ctx, "start", func(ctx context.Context) (Result, error) {
		return e.start(ctx, reg, id)
	})
}

func (e *Engine) start(ctx context.Context, reg *Registry, id string) (Result, error) {
	if reg.Contains(id) {
		return e.activate(ctx, reg, id)
	}
	return e.add(ctx, reg, id, true)
}

// Remove drops id from the registry. The live session keeps running. The
// session the client is attached to cannot be removed.
func (e *Engine) Remove(ctx context.Context, reg *Registry, id string) (Result, error) {
	return e.observe(ctx, "remove", func(ctx context.Context) (Result, error) {
		if e.Mux.Attached() {
			current, err := e.Mux.CurrentSession(ctx)
			if err != nil {
				return Result{Target: id}, err
			}
			if current == mux.SessionName(id) {
				return mismatch(id, "%s: cannot remove current session", id), nil
			}
		}
		if !reg.Remove(id) {
			return Result{Status: StatusOK, Target: id, Message: id + ": not registered"}, nil
		}
		return Result{Status: StatusOK, Target: id, Mutated: true, Message: "removed " + id}, nil
	})
}

// Rotate moves through the history. Next activates the oldest entry and
// makes it the most recent. Previous activates the entry just behind the
// most recent one and demotes the most recent entry to the front. With
// showOnly set, the target is reported and nothing changes.
func (e *Engine) Rotate(ctx context.Context, reg *Registry, dir model.Direction, showOnly bool) (Result, error) {
	return e.observe(ctx, dir.String(), func(ctx context.Context) (Result, error) {
		entries := reg.Entries()
		switch len(entries) {
		case 0:
			return mismatch("", "no more sessions"), nil
		case 1:
			return mismatch(entries[0], "only one session"), nil
		}

		var target string
		switch dir {
		case model.Next:
			target = entries[0]
		case model.Previous:
			target = entries[len(entries)-2]
		default:
			return Result{}, fmt.Errorf("unknown direction %v", dir)
		}
		res := Result{Status: StatusOK, Target: target, Message: target}
		if showOnly {
			return res, nil
		}
		if !isDir(target) {
			return mismatch(target, "%s: not a directory", target), nil
		}

		if err := e.ensureActivated(ctx, target, &res); err != nil {
			return res, err
		}
		if dir == model.Next {
			reg.Push(target)
		} else {
			reg.demote()
		}
		res.Mutated = true
		return res, nil
	})
}

// Sync reconciles the registry with the live sessions.
//
// Forward, live sessions missing from the registry are killed and
// registered sessions missing from the server are created (not activated).
// Reverse, the registry is replaced by the live sessions in server order
// and the last of them is activated.
func (e *Engine) Sync(ctx context.Context, reg *Registry, reverse bool) (Result, error) {
	op := "sync"
	if reverse {
		op = "sync_reverse"
	}
	return e.observe(ctx, op, func(ctx context.Context) (Result, error) {
		live, err := e.liveSessions(ctx)
		if err != nil {
			return Result{}, err
		}
		if reverse {
			return e.syncReverse(ctx, reg, live)
		}
		return e.syncForward(ctx, reg, live)
	})
}

func (e *Engine) syncForward(ctx context.Context, reg *Registry, live []string) (Result, error) {
	wanted := make(map[string]bool, reg.Len())
	for _, id := range reg.Entries() {
		wanted[mux.SessionName(id)] = true
	}

	var killed, created int
	running := make(map[string]bool, len(live))
	for _, name := range live {
		if wanted[name] {
			running[name] = true
			continue
		}
		if err := e.Mux.KillSession(ctx, name); err != nil {
			return Result{}, err
		}
		killed++
	}
	for _, id := range reg.Entries() {
		if running[mux.SessionName(id)] {
			continue
		}
		if err := e.Mux.NewSession(ctx, id); err != nil {
			return Result{Target: id}, err
		}
		created++
	}
	return Result{
		Status:  StatusOK,
		Mutated: true,
		Message: fmt.Sprintf("killed %d, created %d", killed, created),
	}, nil
}

func (e *Engine) syncReverse(ctx context.Context, reg *Registry, live []string) (Result, error) {
	if len(live) == 0 {
		return Result{}, ErrNoSessionsToSync
	}
	ids := make([]string, len(live))
	for i, name := range live {
		ids[i] = mux.SessionID(name)
	}
	target := ids[len(ids)-1]
	res := Result{Status: StatusOK, Target: target}
	if err := e.ensureActivated(ctx, target, &res); err != nil {
		return res, err
	}
	reg.replace(ids)
	res.Mutated = true
	res.Message = fmt.Sprintf("adopted %d sessions", len(ids))
	return res, nil
}

// liveSessions lists the live session names. A stopped server has none.
func (e *Engine) liveSessions(ctx context.Context) ([]string, error) {
	if !e.Mux.IsServerActive(ctx) {
		return nil, nil
	}
	return e.Mux.ListSessions(ctx)
}

// ensureActivated creates the session for id if it does not exist and
// brings it to the foreground.
func (e *Engine) ensureActivated(ctx context.Context, id string, res *Result) error {
	attached := e.Mux.Attached()
	if err := e.ensureSession(ctx, id); err != nil {
		return err
	}
	return e.foreground(ctx, id, attached, res)
}

func (e *Engine) ensureSession(ctx context.Context, id string) error {
	exists, err := e.Mux.HasSession(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return e.Mux.NewSession(ctx, id)
}

func (e *Engine) foreground(ctx context.Context, id string, attached bool, res *Result) error {
	if attached {
		return e.Mux.SwitchClient(ctx, id)
	}
	if e.DeferAttach {
		res.Attach = id
		return nil
	}
	return e.Mux.Attach(ctx, id)
}

func (e *Engine) pick(ctx context.Context, p picker.Prompt) (string, error) {
	if e.Picker == nil {
		return "", fmt.Errorf("no picker configured")
	}
	choice, err := e.Picker.Pick(ctx, p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(choice), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
