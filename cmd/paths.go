package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/storybook/internal/pidfile"
	"github.com/grovetools/storybook/pkg/paths"
)

// PathsOutput lists the files storybook reads and writes for a project.
type PathsOutput struct {
	ConfigDir    string `json:"config_dir"`
	CacheDir     string `json:"cache_dir"`
	GlobalConfig string `json:"global_config"`
	PidFile      string `json:"pid_file"`
	IndexCache   string `json:"index_cache"`
}

func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the XDG paths used for the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			output := PathsOutput{
				ConfigDir:    paths.ConfigDir(),
				CacheDir:     paths.CacheDir(),
				GlobalConfig: paths.GlobalConfigFile(),
				PidFile:      pidfile.PathFor(root),
				IndexCache:   cachePath(root),
			}
			jsonData, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
			return nil
		},
	}
}
