package main

import (
	"context"
	"errors"
	"os"

	"github.com/grovetools/storybook/cli"
	"github.com/grovetools/storybook/cmd"
	"github.com/grovetools/storybook/pkg/profiling"
	"github.com/grovetools/storybook/version"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"storybook",
		"Story index and preview runtime for component stories",
	)
	cli.SetVersionTemplate(rootCmd, version.GetInfo())

	profiler := profiling.NewCobraProfiler()
	profiler.AddFlags(rootCmd)
	rootCmd.PersistentPreRunE = profiler.PreRun
	rootCmd.PersistentPostRun = profiler.PostRun

	rootCmd.AddCommand(cmd.NewDevCmd())
	rootCmd.AddCommand(cmd.NewIndexCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cmd.NewSchemaCmd())
	rootCmd.AddCommand(cmd.NewPathsCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("storybook"))
	cli.ApplyStyledHelpRecursive(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, cmd.ErrStopped) {
			verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
			cli.NewErrorHandler(os.Stderr, verbose).Handle(err)
		}
		os.Exit(1)
	}
}
