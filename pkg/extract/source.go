package extract

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/pkg/csf"
)

var (
	reExportDefault = regexp.MustCompile(`\bexport\s+default\s+`)
	reExportVar     = regexp.MustCompile(`\bexport\s+(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=]+)?=\s*`)
	reExportFunc    = regexp.MustCompile(`\bexport\s+(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)`)
	reExportList    = regexp.MustCompile(`\bexport\s*\{([^}]*)\}(\s*from\b)?`)
	reBind          = regexp.MustCompile(`^[A-Za-z_$][\w$]*\.bind\s*\(`)
	reStoryName     = regexp.MustCompile(`(?m)^\s*([A-Za-z_$][\w$]*)\.storyName\s*=\s*`)
	reStoryObject   = regexp.MustCompile(`(?m)^\s*([A-Za-z_$][\w$]*)\.story\s*=\s*\{`)
	reIdentifier    = regexp.MustCompile(`^[A-Za-z_$][\w$]*`)
)

// SourceExtractor reads Component Story Format files written in JavaScript
// or TypeScript.
type SourceExtractor struct{}

// Extract implements Extractor.
func (e *SourceExtractor) Extract(ctx context.Context, absPath string, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, errors.ExtractionFailed(absPath, err)
	}
	return ParseSource(absPath, string(data), opts)
}

// ParseSource extracts stories from CSF source text.
func ParseSource(path, source string, opts Options) (*Result, error) {
	src := blankComments(source)

	meta, err := parseDefaultExport(path, src)
	if err != nil {
		return nil, err
	}

	raws := parseNamedExports(src)
	applyStoryNames(src, raws)

	return finish(path, *meta, raws, opts)
}

func parseDefaultExport(path, src string) (*Meta, error) {
	loc := reExportDefault.FindStringIndex(src)
	if loc == nil {
		return nil, errors.NoMetadata(path, "no default export")
	}
	rest := src[loc[1]:]

	open := loc[1]
	if !strings.HasPrefix(rest, "{") {
		// export default meta; → find `const meta = {`
		ident := reIdentifier.FindString(rest)
		if ident == "" {
			return nil, errors.ExtractionFailed(path, fmt.Errorf("default export is not an object"))
		}
		decl := regexp.MustCompile(`\b(?:const|let|var)\s+` + regexp.QuoteMeta(ident) + `\s*(?::[^=]+)?=\s*\{`)
		dloc := decl.FindStringIndex(src)
		if dloc == nil {
			return nil, errors.ExtractionFailed(path, fmt.Errorf("default export '%s' is not an object literal", ident))
		}
		open = dloc[1] - 1
	}

	props, _, err := parseObject(src, open)
	if err != nil {
		return nil, errors.ExtractionFailed(path, err)
	}

	meta := &Meta{}
	for _, p := range props {
		switch p.key {
		case "title":
			title, ok := unquote(p.value)
			if !ok {
				return nil, errors.ExtractionFailed(path, fmt.Errorf("title must be a string literal, got %s", p.value))
			}
			meta.Title = title
		case "id":
			id, ok := unquote(p.value)
			if !ok {
				return nil, errors.ExtractionFailed(path, fmt.Errorf("id must be a string literal, got %s", p.value))
			}
			meta.ID = id
		case "includeStories":
			meta.IncludeStories = stringList(p.value)
		case "excludeStories":
			meta.ExcludeStories = stringList(p.value)
		}
	}
	return meta, nil
}

func parseNamedExports(src string) []rawStory {
	type found struct {
		offset int
		story  rawStory
	}
	var all []found
	seen := map[string]bool{}
	add := func(offset int, s rawStory) {
		if seen[s.exportName] {
			return
		}
		seen[s.exportName] = true
		all = append(all, found{offset: offset, story: s})
	}

	for _, m := range reExportVar.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		add(m[0], classify(name, src, m[1]))
	}
	for _, m := range reExportFunc.FindAllStringSubmatchIndex(src, -1) {
		add(m[0], rawStory{exportName: src[m[2]:m[3]], kind: csf.DirectExport})
	}
	for _, m := range reExportList.FindAllStringSubmatchIndex(src, -1) {
		if m[4] >= 0 {
			continue // re-export from another module
		}
		for _, item := range strings.Split(src[m[2]:m[3]], ",") {
			fields := strings.Fields(item)
			if len(fields) == 0 {
				continue
			}
			local, exported := fields[0], fields[0]
			if len(fields) == 3 && fields[1] == "as" {
				exported = fields[2]
			}
			if exported == "default" {
				continue
			}
			story := rawStory{exportName: exported, kind: csf.DirectExport}
			decl := regexp.MustCompile(`\b(?:const|let|var)\s+` + regexp.QuoteMeta(local) + `\s*(?::[^=]+)?=\s*`)
			if dloc := decl.FindStringIndex(src); dloc != nil {
				story = classify(exported, src, dloc[1])
			}
			add(m[0], story)
		}
	}

	// keep source order
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].offset < all[j-1].offset; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	stories := make([]rawStory, len(all))
	for i, f := range all {
		stories[i] = f.story
	}
	return stories
}

// classify inspects the initializer starting at valueAt.
func classify(exportName, src string, valueAt int) rawStory {
	story := rawStory{exportName: exportName, kind: csf.DirectExport}
	rest := src[valueAt:]
	switch {
	case strings.HasPrefix(rest, "{"):
		story.kind = csf.ObjectForm
		if props, _, err := parseObject(src, valueAt); err == nil {
			for _, p := range props {
				if p.key == "name" || p.key == "storyName" {
					if name, ok := unquote(p.value); ok {
						story.name = name
					}
				}
			}
		}
	case reBind.MatchString(rest):
		story.kind = csf.BoundTemplate
	}
	return story
}

// applyStoryNames handles `X.storyName = '...'` and `X.story = { name }`.
func applyStoryNames(src string, raws []rawStory) {
	byName := make(map[string]*rawStory, len(raws))
	for i := range raws {
		byName[raws[i].exportName] = &raws[i]
	}

	for _, m := range reStoryName.FindAllStringSubmatchIndex(src, -1) {
		story, ok := byName[src[m[2]:m[3]]]
		if !ok || m[1] >= len(src) {
			continue
		}
		quote := src[m[1]]
		if quote != '\'' && quote != '"' && quote != '`' {
			continue
		}
		end, err := skipString(src, m[1])
		if err != nil {
			continue
		}
		if name, ok := unquote(src[m[1]:end]); ok {
			story.name = name
		}
	}

	for _, m := range reStoryObject.FindAllStringSubmatchIndex(src, -1) {
		story, ok := byName[src[m[2]:m[3]]]
		if !ok {
			continue
		}
		props, _, err := parseObject(src, m[1]-1)
		if err != nil {
			continue
		}
		for _, p := range props {
			if p.key == "name" {
				if name, ok := unquote(p.value); ok {
					story.name = name
				}
			}
		}
	}
}
