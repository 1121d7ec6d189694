// Package extract reads story metadata out of story files without executing
// them. Each Extractor understands one family of files; Multi dispatches by
// file suffix.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/pkg/csf"
)

// Options carries per-file context from the index generator.
type Options struct {
	// MakeTitle turns the title written in the file (possibly empty) into
	// the final title, applying the specifier's auto-title and prefix.
	MakeTitle func(userTitle string) string
}

func (o Options) title(userTitle string) string {
	if o.MakeTitle == nil {
		return userTitle
	}
	return o.MakeTitle(userTitle)
}

// Meta is a story file's default export, as far as the index cares.
type Meta struct {
	Title          string
	ID             string
	IncludeStories []string
	ExcludeStories []string
}

// Story is one story found in a file.
type Story struct {
	ExportName string
	Name       string
	ID         string
	Kind       csf.ExportKind
	Parameters map[string]any
}

// Result is everything extracted from one file.
type Result struct {
	Meta    Meta
	Stories []Story
}

// Extractor reads stories from a single file.
type Extractor interface {
	Extract(ctx context.Context, absPath string, opts Options) (*Result, error)
}

// IsNoMetadata reports whether err means "this file declares no stories".
func IsNoMetadata(err error) bool {
	return errors.Is(err, errors.ErrCodeNoMetadata)
}

// rawStory is a story before filtering and id assignment.
type rawStory struct {
	exportName string
	name       string
	id         string
	kind       csf.ExportKind
	parameters map[string]any
}

// finish applies include/exclude filters, resolves names and assigns ids.
func finish(path string, meta Meta, raws []rawStory, opts Options) (*Result, error) {
	meta.Title = opts.title(meta.Title)
	if meta.Title == "" && meta.ID == "" {
		return nil, errors.ExtractionFailed(path, fmt.Errorf("missing title"))
	}

	result := &Result{Meta: meta}
	for _, raw := range raws {
		if !csf.IsExportStory(raw.exportName, meta.IncludeStories, meta.ExcludeStories) {
			continue
		}
		story := Story{
			ExportName: raw.exportName,
			Name:       raw.name,
			ID:         raw.id,
			Kind:       raw.kind,
			Parameters: raw.parameters,
		}
		if story.Name == "" {
			story.Name = csf.StoryNameFromExport(raw.exportName)
		}
		if story.ID == "" {
			kind := meta.ID
			if kind == "" {
				kind = meta.Title
			}
			id, err := csf.ToID(kind, csf.StoryNameFromExport(raw.exportName))
			if err != nil {
				return nil, errors.ExtractionFailed(path, err)
			}
			story.ID = id
		}
		result.Stories = append(result.Stories, story)
	}
	return result, nil
}

// Multi dispatches to an Extractor by file suffix. The longest matching
// suffix wins.
type Multi struct {
	bySuffix map[string]Extractor
	suffixes []string
}

// NewMulti creates a dispatcher with the built-in extractors registered.
func NewMulti() *Multi {
	m := &Multi{bySuffix: make(map[string]Extractor)}
	source := &SourceExtractor{}
	for _, ext := range []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"} {
		m.Register(".stories"+ext, source)
	}
	manifest := &ManifestExtractor{}
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		m.Register(".stories"+ext, manifest)
	}
	docs := &DocsExtractor{}
	m.Register(".stories.md", docs)
	m.Register(".stories.mdx", docs)
	return m
}

// Register adds or replaces the extractor for a suffix.
func (m *Multi) Register(suffix string, e Extractor) {
	if _, exists := m.bySuffix[suffix]; !exists {
		m.suffixes = append(m.suffixes, suffix)
		sort.Slice(m.suffixes, func(i, j int) bool {
			return len(m.suffixes[i]) > len(m.suffixes[j])
		})
	}
	m.bySuffix[suffix] = e
}

// Extract implements Extractor.
func (m *Multi) Extract(ctx context.Context, absPath string, opts Options) (*Result, error) {
	base := strings.ToLower(filepath.Base(absPath))
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(base, suffix) {
			return m.bySuffix[suffix].Extract(ctx, absPath, opts)
		}
	}
	return nil, errors.NoMetadata(absPath, "no extractor for this file type")
}
