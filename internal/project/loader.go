// Package project turns story files on disk into CSF modules the preview
// can import. Manifests render through html/template, docs pages become
// docs-only entries and source files render a placeholder listing their
// args.
package project

import (
	"bytes"
	"context"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/logging"
	"github.com/grovetools/storybook/pkg/csf"
	"github.com/grovetools/storybook/pkg/extract"
)

// Loader imports story files lazily into a csf.Registry.
type Loader struct {
	root     string
	registry *csf.Registry
	logger   *logrus.Entry
}

// NewLoader creates a loader resolving import paths against root.
func NewLoader(root string) *Loader {
	return &Loader{
		root:     root,
		registry: csf.NewRegistry(),
		logger:   logging.NewLogger("storybook"),
	}
}

// Registry exposes the registry files are loaded into.
func (l *Loader) Registry() *csf.Registry { return l.registry }

// Import implements csf.ImportFunc.
func (l *Loader) Import(ctx context.Context, importPath string) (*csf.ModuleExports, error) {
	if exports, err := l.registry.Import(ctx, importPath); err == nil {
		return exports, nil
	}
	abs := filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(importPath, "./")))
	exports, err := LoadFile(ctx, abs)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeImportFailed, "failed to load "+importPath).
			WithDetail("importPath", importPath)
	}
	l.registry.Replace(importPath, exports)
	l.logger.WithField("importPath", importPath).Debug("Loaded story file")
	return exports, nil
}

// Invalidate forgets a loaded file so the next import reads it again.
func (l *Loader) Invalidate(importPath string) {
	l.registry.Remove(importPath)
}

// LoadFile reads one story file.
func LoadFile(ctx context.Context, absPath string) (*csf.ModuleExports, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.ToLower(filepath.Base(absPath))
	switch {
	case hasSuffix(name, ".stories.yaml", ".stories.yml", ".stories.json"):
		m, err := extract.ReadManifest(absPath)
		if err != nil {
			return nil, err
		}
		return FromManifest(m)
	case hasSuffix(name, ".stories.md", ".stories.mdx"):
		page, err := extract.ReadDocsPage(absPath)
		if err != nil {
			return nil, err
		}
		return FromDocsPage(page), nil
	default:
		src, err := os.ReadFile(absPath)
		if err != nil {
			return nil, errors.ExtractionFailed(absPath, err)
		}
		result, err := extract.ParseSource(absPath, string(src), extract.Options{
			MakeTitle: func(title string) string {
				if title == "" {
					return strings.SplitN(filepath.Base(absPath), ".", 2)[0]
				}
				return title
			},
		})
		if err != nil {
			return nil, err
		}
		return FromSource(result), nil
	}
}

func hasSuffix(name string, suffixes ...string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// FromManifest builds a module whose stories execute the manifest's
// templates with the story args. A story template replaces the
// component's.
func FromManifest(m *extract.Manifest) (*csf.ModuleExports, error) {
	exports := &csf.ModuleExports{
		Default: csf.ComponentAnnotations{
			Title:          m.Title,
			ID:             m.ID,
			IncludeStories: m.IncludeStories,
			ExcludeStories: m.ExcludeStories,
			BaseAnnotations: csf.BaseAnnotations{
				Args:       m.Args,
				ArgTypes:   csf.ArgTypes(m.ArgTypes),
				Parameters: m.Parameters,
			},
		},
	}
	if m.Template != "" {
		render, err := templateRender("default", m.Template)
		if err != nil {
			return nil, err
		}
		exports.Default.Render = render
	}
	for _, s := range m.Stories {
		story := csf.NamedStory{
			ExportName: s.ExportName(),
			Kind:       csf.ObjectForm,
			Story: csf.StoryAnnotations{
				Name: s.Name,
				BaseAnnotations: csf.BaseAnnotations{
					Args:       s.Args,
					Parameters: s.Parameters,
				},
			},
		}
		if s.Template != "" {
			render, err := templateRender(story.ExportName, s.Template)
			if err != nil {
				return nil, err
			}
			story.Story.Render = render
		}
		if len(s.Play) > 0 {
			story.Story.Play = playSteps(story.ExportName, s.Play)
		}
		exports.Stories = append(exports.Stories, story)
	}
	return exports, nil
}

func templateRender(name, src string) (csf.RenderFunc, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid story template").
			WithDetail("story", name).
			WithDetail("error", err.Error())
	}
	return func(args csf.Args, sc *csf.StoryContext) (any, error) {
		var buf bytes.Buffer
		data := map[string]any(args)
		if data == nil {
			data = map[string]any{}
		}
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, err
		}
		return template.HTML(buf.String()), nil
	}, nil
}

// playSteps logs each listed interaction in order.
func playSteps(export string, steps []string) csf.PlayFunc {
	return func(ctx context.Context, sc *csf.StoryContext) error {
		logger := logging.NewLogger("preview").WithFields(logrus.Fields{"story": sc.ID, "export": export})
		for _, step := range steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger.WithField("step", step).Debug("Play step")
		}
		return nil
	}
}

// FromDocsPage builds a module for a markdown docs page. The page body
// becomes parameters.docs.description.
func FromDocsPage(page *extract.DocsPage) *csf.ModuleExports {
	exports := &csf.ModuleExports{
		Default: csf.ComponentAnnotations{
			Title: page.Meta.Title,
			ID:    page.Meta.ID,
			BaseAnnotations: csf.BaseAnnotations{
				Parameters: csf.Parameters{
					"docs": map[string]any{"description": string(page.Body)},
				},
			},
		},
	}
	if len(page.Stories) == 0 {
		exports.Default.IncludeStories = []string{extract.PageExport}
		exports.Stories = []csf.NamedStory{{
			ExportName: extract.PageExport,
			Kind:       csf.DirectExport,
			Story: csf.StoryAnnotations{
				BaseAnnotations: csf.BaseAnnotations{
					Parameters: csf.Parameters{"docsOnly": true},
				},
			},
		}}
		return exports
	}
	for _, name := range page.Stories {
		exports.Stories = append(exports.Stories, csf.NamedStory{
			ExportName: extract.ExportFromName(name),
			Kind:       csf.ObjectForm,
			Story: csf.StoryAnnotations{
				Name:            name,
				BaseAnnotations: csf.BaseAnnotations{Render: placeholder},
			},
		})
	}
	return exports
}

// FromSource builds a module for a source story file. Source stories
// cannot run here, so each renders a placeholder with its current args.
func FromSource(result *extract.Result) *csf.ModuleExports {
	exports := &csf.ModuleExports{
		Default: csf.ComponentAnnotations{
			Title:           result.Meta.Title,
			ID:              result.Meta.ID,
			IncludeStories:  result.Meta.IncludeStories,
			ExcludeStories:  result.Meta.ExcludeStories,
			BaseAnnotations: csf.BaseAnnotations{Render: placeholder},
		},
	}
	for _, s := range result.Stories {
		exports.Stories = append(exports.Stories, csf.NamedStory{
			ExportName: s.ExportName,
			Kind:       s.Kind,
			Story: csf.StoryAnnotations{
				Name:            s.Name,
				BaseAnnotations: csf.BaseAnnotations{Parameters: s.Parameters},
			},
		})
	}
	return exports
}

var placeholderTemplate = template.Must(template.New("placeholder").Parse(
	`<div class="sb-placeholder" data-story="{{.ID}}"><h3>{{.Name}}</h3>` +
		`{{if .Args}}<dl>{{range $k, $v := .Args}}<dt>{{$k}}</dt><dd>{{$v}}</dd>{{end}}</dl>{{end}}</div>`))

func placeholder(args csf.Args, sc *csf.StoryContext) (any, error) {
	var buf bytes.Buffer
	err := placeholderTemplate.Execute(&buf, map[string]any{
		"ID":   sc.ID,
		"Name": sc.Name,
		"Args": map[string]any(args),
	})
	if err != nil {
		return nil, err
	}
	return template.HTML(buf.String()), nil
}
