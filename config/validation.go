package config

import (
	"fmt"
	"net"
	"path"
	"strings"

	"github.com/grovetools/storybook/errors"
	"github.com/moby/patternmatcher"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	for i, entry := range c.Stories {
		if err := validateStoriesEntry(entry); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("invalid stories entry #%d", i)).
				WithDetail("directory", entry.Directory).
				WithDetail("files", entry.Files)
		}
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("invalid server.addr: %s", c.Server.Addr)).
			WithDetail("addr", c.Server.Addr)
	}

	if c.Watch.DebounceMs < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "watch.debounce_ms cannot be negative").
			WithDetail("debounce_ms", c.Watch.DebounceMs)
	}

	if ext := path.Ext(c.PreviewAnnotations); ext != ".json" {
		return errors.New(errors.ErrCodeConfigValidation, "previewAnnotations must be a .json file").
			WithDetail("previewAnnotations", c.PreviewAnnotations)
	}

	return nil
}

func validateStoriesEntry(entry StoriesEntry) error {
	if entry.Directory == "" {
		return errors.New(errors.ErrCodeConfigValidation, "directory cannot be empty")
	}
	if entry.Files == "" {
		return errors.New(errors.ErrCodeConfigValidation, "files cannot be empty")
	}
	if strings.HasPrefix(entry.Files, "/") {
		return errors.New(errors.ErrCodeConfigValidation, "files must be relative to directory").
			WithDetail("files", entry.Files)
	}
	if _, err := patternmatcher.New([]string{entry.Files}); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "files is not a valid glob")
	}
	return nil
}
