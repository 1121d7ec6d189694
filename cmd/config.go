package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/storybook/cli"
	"github.com/grovetools/storybook/config"
)

// NewConfigCmd shows the merged configuration, or every layer with --layers.
func NewConfigCmd() *cobra.Command {
	var layers bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display the configuration for the current project",
		Long: `Shows the configuration storybook runs with. With --layers it shows how
the final configuration is built by merging:
1. Global config (~/.config/storybook/storybook.yml)
2. Project config (storybook.yml)
3. Override files (storybook.override.yml)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			jsonOutput := cli.GetOptions(cmd).JSONOutput

			if !layers {
				cfg, err := cli.LoadConfig(cmd)
				if err != nil {
					return err
				}
				return printConfig(out, cfg, jsonOutput)
			}

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}
			layered, err := config.LoadLayered(cwd)
			if err != nil {
				return err
			}

			printLayer := func(title, path string, cfg *config.Config) {
				if cfg == nil {
					return
				}
				fmt.Fprintf(out, "--- # %s\n", title)
				if path != "" {
					fmt.Fprintf(out, "# Source: %s\n", path)
				}
				data, _ := yaml.Marshal(cfg)
				fmt.Fprintln(out, string(data))
			}

			printLayer("DEFAULTS", "", layered.Default)
			printLayer("GLOBAL CONFIG", layered.FilePaths[config.SourceGlobal], layered.Global)
			printLayer("PROJECT CONFIG", layered.FilePaths[config.SourceProject], layered.Project)
			for _, override := range layered.Overrides {
				printLayer("OVERRIDE CONFIG", override.Path, override.Config)
			}
			printLayer("FINAL MERGED CONFIG", "", layered.Final)
			return nil
		},
	}

	cmd.Flags().BoolVar(&layers, "layers", false, "Show each configuration layer before the merged result")
	return cmd
}

func printConfig(w io.Writer, cfg *config.Config, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(w, string(data))
	return nil
}

// NewSchemaCmd prints the JSON schema of storybook.yml.
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of storybook.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
