package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timvw/sessionizer/internal/discovery"
	"github.com/timvw/sessionizer/internal/model"
)

var (
	flagDirName     string
	flagDirMinDepth uint
	flagDirMaxDepth uint
	flagDirGrep     string
)

var directoriesCmd = &cobra.Command{
	Use:     "directories",
	Aliases: []string{"d", "dirs"},
	Short:   "Manage the directories scanned for new sessions",
}

var directoriesAddCmd = &cobra.Command{
	Use:   "add <directory>",
	Short: "Track a directory",
	Long: `Track a directory. Its subdirectories between --mindepth and --maxdepth
(the directory itself is depth 0) whose full path matches --grep become
candidates for 'sessions new'.

Adding a directory that is already tracked updates it; options that are not
given keep their current value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts discovery.RootOptions
		flags := cmd.Flags()
		if flags.Changed("name") {
			opts.Name = &flagDirName
		}
		if flags.Changed("mindepth") {
			opts.MinDepth = &flagDirMinDepth
		}
		if flags.Changed("maxdepth") {
			opts.MaxDepth = &flagDirMaxDepth
		}
		if flags.Changed("grep") {
			opts.Grep = &flagDirGrep
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		var added model.Root
		err = st.Update(cmd.Context(), func(doc *model.Document) (bool, error) {
			roots, root, err := discovery.AddRoot(doc.Directories, args[0], opts)
			if err != nil {
				return false, err
			}
			doc.Directories = roots
			added = root
			return true, nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), added.String())
		return nil
	},
}

var directoriesRemoveCmd = &cobra.Command{
	Use:   "remove <name|directory>",
	Short: "Stop tracking a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		var removed bool
		err = st.Update(cmd.Context(), func(doc *model.Document) (bool, error) {
			doc.Directories, removed = discovery.RemoveRoot(doc.Directories, args[0])
			return removed, nil
		})
		if err != nil {
			return err
		}
		if !removed {
			warn(cmd, args[0]+": not tracked")
		}
		return nil
	},
}

var directoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(cmd)
		if err != nil {
			return err
		}
		for _, r := range doc.Directories {
			fmt.Fprintln(cmd.OutOrStdout(), r.String())
		}
		return nil
	},
}

var directoriesEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "List every directory the tracked directories currently yield",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(cmd)
		if err != nil {
			return err
		}
		dirs, err := discovery.Evaluate(cmd.Context(), doc.Directories, metrics())
		if err != nil {
			return err
		}
		for _, d := range dirs {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	},
}

func init() {
	directoriesAddCmd.Flags().StringVarP(&flagDirName, "name", "n", "", "name used to refer to the directory (default: its base name)")
	directoriesAddCmd.Flags().UintVar(&flagDirMinDepth, "mindepth", discovery.DefaultMinDepth, "minimum depth to scan")
	directoriesAddCmd.Flags().UintVar(&flagDirMaxDepth, "maxdepth", discovery.DefaultMaxDepth, "maximum depth to scan")
	directoriesAddCmd.Flags().StringVarP(&flagDirGrep, "grep", "g", "", "regular expression the full path must match")

	directoriesCmd.AddCommand(directoriesAddCmd, directoriesRemoveCmd, directoriesListCmd, directoriesEvaluateCmd)
	rootCmd.AddCommand(directoriesCmd)
}

func loadDocument(cmd *cobra.Command) (*model.Document, error) {
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	return st.Load(cmd.Context())
}
