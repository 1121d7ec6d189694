package extract

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/pkg/csf"
	"gopkg.in/yaml.v3"
)

// Manifest is a declarative story file (*.stories.yaml|yml|json).
//
//	title: Components/Button
//	args: {label: Button}
//	template: <button class="{{.variant}}">{{.label}}</button>
//	stories:
//	  - export: Primary
//	    args: {variant: primary}
type Manifest struct {
	Title          string                 `yaml:"title" json:"title"`
	ID             string                 `yaml:"id" json:"id"`
	IncludeStories []string               `yaml:"includeStories" json:"includeStories"`
	ExcludeStories []string               `yaml:"excludeStories" json:"excludeStories"`
	Args           map[string]any         `yaml:"args" json:"args"`
	ArgTypes       map[string]csf.ArgType `yaml:"argTypes" json:"argTypes"`
	Parameters     map[string]any         `yaml:"parameters" json:"parameters"`
	Template       string                 `yaml:"template" json:"template"`
	Stories        []ManifestStory        `yaml:"stories" json:"stories"`
}

// ManifestStory is one story of a Manifest.
type ManifestStory struct {
	Export     string         `yaml:"export" json:"export"`
	Name       string         `yaml:"name" json:"name"`
	ID         string         `yaml:"id" json:"id"`
	Args       map[string]any `yaml:"args" json:"args"`
	Parameters map[string]any `yaml:"parameters" json:"parameters"`
	Template   string         `yaml:"template" json:"template"`
	// Play lists element ids the play step marks as interacted with.
	Play []string `yaml:"play" json:"play"`
}

// ReadManifest decodes a manifest file. YAML is a superset of JSON, so one
// decoder serves both.
func ReadManifest(absPath string) (*Manifest, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, errors.ExtractionFailed(absPath, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NoMetadata(absPath, "empty manifest")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.ExtractionFailed(absPath, err)
	}
	if m.Title == "" && m.ID == "" && len(m.Stories) == 0 {
		return nil, errors.NoMetadata(absPath, "manifest declares no title and no stories")
	}
	return &m, nil
}

// ManifestExtractor reads Manifest files.
type ManifestExtractor struct{}

// Extract implements Extractor.
func (e *ManifestExtractor) Extract(ctx context.Context, absPath string, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := ReadManifest(absPath)
	if err != nil {
		return nil, err
	}

	meta := Meta{
		Title:          m.Title,
		ID:             m.ID,
		IncludeStories: m.IncludeStories,
		ExcludeStories: m.ExcludeStories,
	}
	raws := make([]rawStory, 0, len(m.Stories))
	for _, s := range m.Stories {
		export := s.ExportName()
		raws = append(raws, rawStory{
			exportName: export,
			name:       s.Name,
			id:         s.ID,
			kind:       csf.ObjectForm,
			parameters: s.Parameters,
		})
	}
	return finish(absPath, meta, raws, opts)
}

// ExportName is the story's export, derived from its name when unset.
func (s ManifestStory) ExportName() string {
	if s.Export != "" {
		return s.Export
	}
	return ExportFromName(s.Name)
}

// ExportFromName turns "With Icon" into "WithIcon".
func ExportFromName(name string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(name, func(r rune) bool {
		return !(r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) {
		b.WriteString(strings.ToUpper(word[:1]) + word[1:])
	}
	return b.String()
}
