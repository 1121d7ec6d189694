package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/storybook/cli"
	"github.com/grovetools/storybook/logging"
	"github.com/grovetools/storybook/pkg/paths"
	"github.com/grovetools/storybook/pkg/profiling"
	"github.com/grovetools/storybook/util/pathutil"
	"github.com/grovetools/storybook/util/sanitize"
)

// NewIndexCmd returns the command that builds the story index once.
func NewIndexCmd() *cobra.Command {
	var (
		output string
		cache  bool
		ids    bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the story index and print it as JSON",
		Long: `Scan the configured stories entries, extract every story file and
print the sorted story index.

The command exits non-zero when any story file fails to extract.

Examples:
  # Print the index of the current project
  storybook index

  # Write it next to the build output
  storybook index --output storybook-static/index.json

  # List only the story ids, one per line
  storybook index --ids`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.GetLogger(cmd, "storybook")
			ws, err := loadWorkspace(cmd, logger)
			if err != nil {
				return err
			}

			span := profiling.Start("index")
			if err := ws.generator.Initialize(cmd.Context()); err != nil {
				return err
			}
			idx, err := ws.generator.GetIndex(cmd.Context())
			span.Stop()
			if err != nil {
				return err
			}

			if ids {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(idx.IDs(), "\n"))
				return nil
			}

			data, err := json.MarshalIndent(idx, "", "  ")
			if err != nil {
				return err
			}

			if cache {
				path := cachePath(ws.root)
				if err := writeFile(path, data); err != nil {
					return err
				}
				logger.WithField("path", path).Info("Cached story index")
			}
			if output != "" {
				if err := writeFile(output, data); err != nil {
					return err
				}
				logging.NewConsole(cmd.ErrOrStderr()).Success(
					fmt.Sprintf("Wrote %d stories to %s", len(idx.IDs()), output))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the index to a file instead of stdout")
	cmd.Flags().BoolVar(&cache, "cache", false, "Also store the index in the user cache directory")
	cmd.Flags().BoolVar(&ids, "ids", false, "Print only the story ids in index order")
	return cmd
}

// cachePath is where --cache stores the index of the project at root.
func cachePath(root string) string {
	if canonical, err := pathutil.NormalizeForLookup(root); err == nil {
		root = canonical
	}
	return filepath.Join(paths.CacheDir(), "index", sanitize.ForFilename(root)+".json")
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
