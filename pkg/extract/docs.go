package extract

import (
	"context"
	"os"
	"regexp"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/pkg/csf"
	"github.com/grovetools/storybook/util/frontmatter"
)

// PageExport is the export name of a docs-only page.
const PageExport = "__page"

var (
	reMetaTag  = regexp.MustCompile(`<Meta\b[^>]*?\btitle\s*=\s*(?:"([^"]*)"|'([^']*)'|\{\s*["']([^"']*)["']\s*\})`)
	reMetaID   = regexp.MustCompile(`<Meta\b[^>]*?\bid\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	reMetaBare = regexp.MustCompile(`<Meta\b`)
	reStoryTag = regexp.MustCompile(`<Story\b[^>]*?\bname\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// DocsExtractor reads markdown docs pages (*.stories.md, *.stories.mdx).
// Metadata comes from YAML frontmatter or an MDX <Meta title="..."/> tag.
// <Story name="..."> blocks become stories; a page without any is a
// single docs-only entry.
type DocsExtractor struct{}

// DocsPage is a parsed docs file.
type DocsPage struct {
	Meta    Meta
	Stories []string
	Body    []byte
}

// ReadDocsPage parses a docs file without resolving its title.
func ReadDocsPage(absPath string) (*DocsPage, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, errors.ExtractionFailed(absPath, err)
	}
	doc, err := frontmatter.Parse(data)
	if err != nil {
		return nil, errors.ExtractionFailed(absPath, err)
	}

	page := &DocsPage{Body: doc.Body}
	hasMeta := doc.HasFrontmatter
	page.Meta.Title = doc.Meta.Title
	page.Meta.ID = doc.Meta.ID

	if m := reMetaTag.FindSubmatch(doc.Body); m != nil {
		hasMeta = true
		if page.Meta.Title == "" {
			page.Meta.Title = firstNonEmpty(m[1:]...)
		}
	} else if reMetaBare.Match(doc.Body) {
		hasMeta = true
	}
	if m := reMetaID.FindSubmatch(doc.Body); m != nil && page.Meta.ID == "" {
		page.Meta.ID = firstNonEmpty(m[1:]...)
	}
	if !hasMeta {
		return nil, errors.NoMetadata(absPath, "no frontmatter or <Meta> tag")
	}

	for _, m := range reStoryTag.FindAllSubmatch(doc.Body, -1) {
		page.Stories = append(page.Stories, firstNonEmpty(m[1:]...))
	}
	return page, nil
}

// Extract implements Extractor.
func (e *DocsExtractor) Extract(ctx context.Context, absPath string, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := ReadDocsPage(absPath)
	if err != nil {
		return nil, err
	}

	var raws []rawStory
	if len(page.Stories) == 0 {
		page.Meta.IncludeStories = []string{PageExport}
		raws = append(raws, rawStory{
			exportName: PageExport,
			kind:       csf.DirectExport,
			parameters: map[string]any{"docsOnly": true},
		})
	}
	for _, name := range page.Stories {
		raws = append(raws, rawStory{
			exportName: ExportFromName(name),
			name:       name,
			kind:       csf.ObjectForm,
		})
	}
	return finish(absPath, page.Meta, raws, opts)
}

func firstNonEmpty(groups ...[]byte) string {
	for _, g := range groups {
		if len(g) > 0 {
			return string(g)
		}
	}
	return ""
}
