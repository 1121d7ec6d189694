package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/storybook/cli"
	"github.com/grovetools/storybook/config"
	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/internal/index"
)

// workspace is a loaded project: its configuration and an index generator
// over its stories.
type workspace struct {
	cfg             *config.Config
	root            string
	annotationsPath string
	generator       *index.Generator
}

// loadWorkspace loads the configuration for cmd and builds a generator. A
// project without a storybook.yml is indexed with the defaults rooted at
// the working directory.
func loadWorkspace(cmd *cobra.Command, logger *logrus.Entry) (*workspace, error) {
	cfg, err := cli.LoadConfig(cmd)
	if errors.Is(err, errors.ErrCodeConfigNotFound) && cli.GetOptions(cmd).ConfigFile == "" {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return nil, cwdErr
		}
		logger.WithField("dir", cwd).Info("No storybook.yml found, using defaults")
		cfg, err = config.Default(cwd), nil
	}
	if err != nil {
		return nil, err
	}

	root := cfg.RootDir
	if root == "" {
		if root, err = os.Getwd(); err != nil {
			return nil, err
		}
		cfg.RootDir = root
	}

	specs, err := index.SpecifiersFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	annotations := cfg.Resolve(cfg.PreviewAnnotations)

	gen := index.NewGenerator(specs, index.Options{
		WorkingDir:         root,
		PreviewAnnotations: annotations,
		V2Compatibility:    cfg.Features.V2Compatibility,
		Logger:             cli.GetLogger(cmd, "index"),
	})
	return &workspace{
		cfg:             cfg,
		root:            root,
		annotationsPath: annotations,
		generator:       gen,
	}, nil
}
