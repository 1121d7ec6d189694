package project

import (
	"context"
	"encoding/json"
	"os"

	"github.com/tidwall/gjson"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/pkg/csf"
)

// LoadAnnotations reads the project annotations from the preview
// annotations JSON file. A missing file yields empty annotations.
func LoadAnnotations(path string) (*csf.ProjectAnnotations, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) || path == "" {
		return &csf.ProjectAnnotations{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStartupFailed, "failed to read preview annotations").
			WithDetail("path", path)
	}
	return ParseAnnotations(data)
}

// ParseAnnotations decodes globals, globalTypes, args, argTypes and
// parameters from preview annotations JSON. Unknown keys are ignored.
func ParseAnnotations(data []byte) (*csf.ProjectAnnotations, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New(errors.ErrCodeStartupFailed, "preview annotations are not valid JSON")
	}
	pa := &csf.ProjectAnnotations{}
	fields := []struct {
		path string
		out  any
	}{
		{"globals", &pa.Globals},
		{"globalTypes", &pa.GlobalTypes},
		{"args", &pa.Args},
		{"argTypes", &pa.ArgTypes},
		{"parameters", &pa.Parameters},
	}
	for _, f := range fields {
		result := gjson.GetBytes(data, f.path)
		if !result.Exists() || result.Type == gjson.Null {
			continue
		}
		if err := json.Unmarshal([]byte(result.Raw), f.out); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStartupFailed, "invalid preview annotations").
				WithDetail("field", f.path)
		}
	}
	return pa, nil
}

// AnnotationsFunc adapts LoadAnnotations to the preview's lazy getter.
func AnnotationsFunc(path string) func(ctx context.Context) (*csf.ProjectAnnotations, error) {
	return func(context.Context) (*csf.ProjectAnnotations, error) {
		return LoadAnnotations(path)
	}
}
