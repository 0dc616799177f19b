package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/timvw/sessionizer/internal/config"
	"github.com/timvw/sessionizer/internal/logger"
	"github.com/timvw/sessionizer/internal/mux"
	telem "github.com/timvw/sessionizer/internal/otel"
	"github.com/timvw/sessionizer/internal/picker"
	"github.com/timvw/sessionizer/internal/registry"
	"github.com/timvw/sessionizer/internal/store"
)

var (
	// cfg holds the settings resolved for the running command.
	cfg *config.Config
	tel *telem.Telemetry
)

// Swapped out in tests.
var (
	newMultiplexer = func(c *config.Config) (mux.Multiplexer, error) {
		m, err := mux.FromName("tmux", c.Tmux)
		if err != nil {
			return nil, err
		}
		if t, ok := m.(*mux.Tmux); ok {
			t.Metrics = metrics()
		}
		return m, nil
	}
	newPicker = func(c *config.Config) picker.Picker {
		return picker.New(c.Picker, c.Fzf)
	}
)

var warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

var rootCmd = &cobra.Command{
	Use:   "sessionizer",
	Short: "Jump between directory-scoped tmux sessions",
	Long: `sessionizer keeps a history of tmux sessions, one per working directory,
and lets you move through it, pick from it, and keep it in step with the
sessions the tmux server is actually running.

Sessions and tracked directories are stored in a YAML (or TOML) document,
by default $XDG_CONFIG_HOME/sessionizer/config.yaml. Run
'sessionizer config init' to create it.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		slog.Error("interrupted", "signal", sig.String())
		os.Exit(1)
	}()

	err := rootCmd.Execute()
	shutdownTelemetry()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path of the sessions document (env: SESSIONIZER_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: SESSIONIZER_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level, overriding --log-level (env: SESSIONIZER_VERBOSE)")
	rootCmd.PersistentFlags().String("picker", "", "picker: auto, fzf, builtin (env: SESSIONIZER_PICKER)")
}

// setup resolves settings and initializes logging and telemetry before any
// command runs.
func setup(cmd *cobra.Command, _ []string) error {
	v := config.New()
	if err := config.BindFlags(v, cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	c, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg = c

	if err := logger.Init(cfg.LogLevel, cmd.ErrOrStderr()); err != nil {
		return err
	}
	if cfg.Verbose {
		logger.SetLevel(slog.LevelDebug)
	}
	slog.Debug("settings resolved", "document", cfg.ConfigFile, "picker", cfg.Picker, "tmux", cfg.Tmux)

	telem.Version = Version
	t, err := telem.Init(cmd.Context(), telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		slog.Warn("otel init failed", "err", err)
	}
	tel = t
	return nil
}

func shutdownTelemetry() {
	if tel != nil {
		tel.Shutdown(context.Background())
		tel = nil
	}
}

func metrics() *telem.Metrics {
	if tel == nil {
		return nil
	}
	return tel.Metrics
}

func openStore() (*store.Store, error) {
	return store.Open(cfg.ConfigFile)
}

func newEngine() (*registry.Engine, error) {
	m, err := newMultiplexer(cfg)
	if err != nil {
		return nil, err
	}
	return &registry.Engine{
		Mux:         m,
		Picker:      newPicker(cfg),
		Metrics:     metrics(),
		DeferAttach: true,
	}, nil
}

// warn prints a notice on stderr. Notices do not change the exit status.
func warn(cmd *cobra.Command, msg string) {
	fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(msg))
}

// report prints the message of a mismatched operation.
func report(cmd *cobra.Command, res registry.Result) {
	if res.Status == registry.StatusMismatch {
		warn(cmd, res.Message)
	}
}
