package htmlview

import (
	"bytes"
	"context"
	"html/template"

	chromahtml "github.com/alecthomas/chroma/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	alertcallouts "github.com/zmtcreative/gm-alert-callouts"

	"github.com/grovetools/storybook/internal/preview"
	"github.com/grovetools/storybook/internal/store"
	"github.com/grovetools/storybook/pkg/csf"
)

var docsTemplate = template.Must(template.New("docs").Parse(`<article class="sb-docs">
<h1>{{.Title}}</h1>
{{- if .Description}}
<div class="sb-docs-description">{{.Description}}</div>
{{- end}}
{{- range .Stories}}
<section class="sb-docs-story" id="{{.ID}}">
<h2>{{.Name}}</h2>
{{- if .Description}}
<div class="sb-docs-story-description">{{.Description}}</div>
{{- end}}
<div class="sb-story">{{.HTML}}</div>
</section>
{{- end}}
</article>
`))

type docsPage struct {
	Title       string
	Description template.HTML
	Stories     []docsStory
}

type docsStory struct {
	ID          string
	Name        string
	Description template.HTML
	HTML        template.HTML
}

// DocsContainer renders docs pages: the page's markdown description
// followed by every story of the component.
type DocsContainer struct {
	md goldmark.Markdown
}

var _ preview.DocsRenderer = (*DocsContainer)(nil)

// NewDocsContainer creates a container with GitHub-flavoured markdown,
// alert callouts and class-based syntax highlighting.
func NewDocsContainer() *DocsContainer {
	md := goldmark.New(
		goldmark.WithExtensions(
			alertcallouts.AlertCallouts,
			extension.GFM,
			extension.Linkify,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return &DocsContainer{md: md}
}

// Markdown converts a markdown fragment to HTML.
func (c *DocsContainer) Markdown(source string) (template.HTML, error) {
	if source == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Render implements preview.DocsRenderer.
func (c *DocsContainer) Render(ctx context.Context, docs *preview.DocsContext, el csf.Element) error {
	page := docsPage{Title: docs.Title}
	var err error
	if page.Description, err = c.Markdown(componentDescription(docs.Story)); err != nil {
		return err
	}

	stories, err := docs.ComponentStories(ctx)
	if err != nil {
		return err
	}
	for _, story := range stories {
		if err := ctx.Err(); err != nil {
			return err
		}
		inner := docs.NewElement()
		if err := docs.RenderStory(ctx, story, inner); err != nil {
			return err
		}
		entry := docsStory{ID: story.ID, Name: story.Name, HTML: template.HTML(inner.Content())}
		if entry.Description, err = c.Markdown(storyDescription(story)); err != nil {
			return err
		}
		page.Stories = append(page.Stories, entry)
	}

	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, page); err != nil {
		return err
	}
	el.SetContent(buf.String())
	return nil
}

// Unmount implements preview.DocsRenderer.
func (c *DocsContainer) Unmount(el csf.Element) {
	el.SetContent("")
}

// componentDescription reads parameters.docs.description, either a string
// or {component: "..."}.
func componentDescription(story *store.Story) string {
	switch d := docsParam(story, "description").(type) {
	case string:
		return d
	case map[string]any:
		s, _ := d["component"].(string)
		return s
	}
	return ""
}

// storyDescription reads parameters.docs.description.story.
func storyDescription(story *store.Story) string {
	if d, ok := docsParam(story, "description").(map[string]any); ok {
		s, _ := d["story"].(string)
		return s
	}
	return ""
}

func docsParam(story *store.Story, key string) any {
	if story == nil {
		return nil
	}
	docs, ok := story.Parameters["docs"].(map[string]any)
	if !ok {
		return nil
	}
	return docs[key]
}
