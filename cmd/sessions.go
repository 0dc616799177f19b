package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timvw/sessionizer/internal/model"
	"github.com/timvw/sessionizer/internal/registry"
)

var (
	flagAddActivate bool
	flagNextShow    bool
	flagPrevShow    bool
	flagSyncReverse bool
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"s"},
	Short:   "Manage the session history",
}

var sessionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"history"},
	Short:   "List sessions, most recent first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		doc, err := st.Load(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range registry.New(doc).Recent() {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var sessionsGoCmd = &cobra.Command{
	Use:   "go [session]",
	Short: "Switch to a session",
	Long: `Switch to a registered session, creating the tmux session if it is not
running. Without an argument, pick one interactively; in fzf, CTRL-X removes
the highlighted sessions from the history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) == 1 {
			abs, err := absArg(args[0])
			if err != nil {
				return err
			}
			id = abs
		} else {
			// Pick before taking the document lock: the CTRL-X binding runs
			// "sessions remove" while the picker is open.
			res, err := chooseSession(cmd)
			if err != nil || res.Status != registry.StatusOK {
				return err
			}
			id = res.Target
		}
		_, err := updateSessions(cmd, func(ctx context.Context, e *registry.Engine, reg *registry.Registry, _ *model.Document) (registry.Result, error) {
			return e.Go(ctx, reg, id)
		})
		return err
	},
}

var sessionsAddCmd = &cobra.Command{
	Use:   "add [directory]",
	Short: "Add a directory to the history and start its session",
	Long: `Add a directory (default: the working directory) to the history and start
a detached tmux session for it. Use --activate to switch to it as well.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := dirArg(args)
		if err != nil {
			return err
		}
		_, err = updateSessions(cmd, func(ctx context.Context, e *registry.Engine, reg *registry.Registry, _ *model.Document) (registry.Result, error) {
			return e.Add(ctx, reg, id, flagAddActivate)
		})
		return err
	},
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Pick a tracked directory and start a session for it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		doc, err := st.Load(cmd.Context())
		if err != nil {
			return err
		}
		e, err := newEngine()
		if err != nil {
			return err
		}
		res, err := e.ChooseDirectory(cmd.Context(), doc.Directories)
		if err != nil {
			return err
		}
		if res.Status != registry.StatusOK {
			report(cmd, res)
			return nil
		}
		_, err = updateSessions(cmd, func(ctx context.Context, e *registry.Engine, reg *registry.Registry, _ *model.Document) (registry.Result, error) {
			return e.Start(ctx, reg, res.Target)
		})
		return err
	},
}

var sessionsRemoveCmd = &cobra.Command{
	Use:   "remove <session>...",
	Short: "Remove sessions from the history",
	Long: `Remove sessions from the history. The tmux sessions keep running; use
'sessions sync' to stop sessions that are no longer in the history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]string, 0, len(args))
		for _, a := range args {
			id, err := absArg(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		_, err := updateSessions(cmd, func(ctx context.Context, e *registry.Engine, reg *registry.Registry, _ *model.Document) (registry.Result, error) {
			var out registry.Result
			for _, id := range ids {
				res, err := e.Remove(ctx, reg, id)
				if err != nil {
					return out, err
				}
				report(cmd, res)
				out.Mutated = out.Mutated || res.Mutated
			}
			return out, nil
		})
		return err
	},
}

var sessionsNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Switch to the oldest session (or show it with --show)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rotate(cmd, model.Next, flagNextShow)
	},
}

var sessionsPreviousCmd = &cobra.Command{
	Use:   "previous",
	Short: "Switch to the session before the current one (or show it with --show)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rotate(cmd, model.Previous, flagPrevShow)
	},
}

var sessionsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the history with the running tmux sessions",
	Long: `Reconcile the history with the running tmux sessions.

By default tmux follows the history: sessions missing from the history are
killed and sessions missing from tmux are started in the background. With
--reverse the history follows tmux: it is replaced by the running sessions
and the last of them is activated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := updateSessions(cmd, func(ctx context.Context, e *registry.Engine, reg *registry.Registry, _ *model.Document) (registry.Result, error) {
			return e.Sync(ctx, reg, flagSyncReverse)
		})
		if err != nil {
			return err
		}
		if res.Message != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), res.Message)
		}
		return nil
	},
}

func init() {
	sessionsAddCmd.Flags().BoolVarP(&flagAddActivate, "activate", "a", false, "switch to the session after adding it")
	sessionsNextCmd.Flags().BoolVarP(&flagNextShow, "show", "s", false, "print the next session without switching")
	sessionsPreviousCmd.Flags().BoolVarP(&flagPrevShow, "show", "s", false, "print the previous session without switching")
	sessionsSyncCmd.Flags().BoolVarP(&flagSyncReverse, "reverse", "r", false, "replace the history with the running sessions")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsGoCmd, sessionsAddCmd, sessionsNewCmd,
		sessionsRemoveCmd, sessionsNextCmd, sessionsPreviousCmd, sessionsSyncCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func rotate(cmd *cobra.Command, dir model.Direction, show bool) error {
	res, err := updateSessions(cmd, func(ctx context.Context, e *registry.Engine, reg *registry.Registry, _ *model.Document) (registry.Result, error) {
		return e.Rotate(ctx, reg, dir, show)
	})
	if err != nil {
		return err
	}
	if show && res.Status == registry.StatusOK {
		fmt.Fprintln(cmd.OutOrStdout(), res.Target)
	}
	return nil
}

// sessionOp is one engine operation run against the locked document.
type sessionOp func(ctx context.Context, e *registry.Engine, reg *registry.Registry, doc *model.Document) (registry.Result, error)

// updateSessions runs op under the document lock, saves the document when
// op changed it, and attaches the terminal afterwards if op asked for it.
func updateSessions(cmd *cobra.Command, op sessionOp) (registry.Result, error) {
	ctx := cmd.Context()
	st, err := openStore()
	if err != nil {
		return registry.Result{}, err
	}
	e, err := newEngine()
	if err != nil {
		return registry.Result{}, err
	}

	var res registry.Result
	err = st.Update(ctx, func(doc *model.Document) (bool, error) {
		var err error
		res, err = op(ctx, e, registry.New(doc), doc)
		if err != nil {
			return false, err
		}
		return res.Mutated, nil
	})
	if err != nil {
		return res, err
	}

	report(cmd, res)
	if res.Attach != "" {
		if err := e.Mux.Attach(ctx, res.Attach); err != nil {
			return res, err
		}
	}
	return res, nil
}

// chooseSession lets the user pick a session from the saved history.
func chooseSession(cmd *cobra.Command) (registry.Result, error) {
	st, err := openStore()
	if err != nil {
		return registry.Result{}, err
	}
	doc, err := st.Load(cmd.Context())
	if err != nil {
		return registry.Result{}, err
	}
	e, err := newEngine()
	if err != nil {
		return registry.Result{}, err
	}
	e.SessionBinds = removeBinds(st.Path())

	res, err := e.ChooseSession(cmd.Context(), registry.New(doc))
	if err != nil {
		return res, err
	}
	report(cmd, res)
	return res, nil
}

// removeBinds returns the fzf bindings that delete the highlighted sessions
// and reload the list.
func removeBinds(document string) []string {
	exe, err := os.Executable()
	if err != nil {
		exe = "sessionizer"
	}
	self := shellQuote(exe) + " --config " + shellQuote(document)
	return []string{fmt.Sprintf("ctrl-x:execute-silent(%s sessions remove {+})+reload(%s sessions list)", self, self)}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// dirArg returns the absolute directory named by args, or the working
// directory when args is empty.
func dirArg(args []string) (string, error) {
	if len(args) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("working directory: %w", err)
		}
		return wd, nil
	}
	return absArg(args[0])
}

func absArg(arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", arg, err)
	}
	return abs, nil
}
