package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
)

var flagInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the sessions document",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty sessions document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := st.Init(cmd.Context(), flagInitForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "config: created %s\n", st.Path())
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the sessions document in $VISUAL or $EDITOR",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		editor := editorCommand()
		c := exec.CommandContext(cmd.Context(), editor[0], append(editor[1:], st.Path())...)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("editor %s: %w", editor[0], err)
		}
		// Surface mistakes now rather than on the next session switch.
		if _, err := st.Load(cmd.Context()); err != nil {
			return err
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path of the sessions document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), st.Path())
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&flagInitForce, "force", "f", false, "overwrite an existing document")
	configCmd.AddCommand(configInitCmd, configEditCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// editorCommand returns the user's editor split into program and arguments.
func editorCommand() []string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields
		}
	}
	return []string{"vi"}
}
