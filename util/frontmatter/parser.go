// Package frontmatter splits YAML frontmatter from markdown documents.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DocMetadata represents the frontmatter fields a docs page understands.
// Unknown keys are kept in Parameters.
type DocMetadata struct {
	ID         string                 `yaml:"id"`
	Title      string                 `yaml:"title"`
	Name       string                 `yaml:"name"`
	Parameters map[string]interface{} `yaml:",inline"`
}

// Document is a parsed markdown file.
type Document struct {
	Meta DocMetadata
	// HasFrontmatter is false when the file does not open with '---'.
	HasFrontmatter bool
	// Body is the markdown following the closing separator.
	Body []byte
}

// Parse extracts YAML frontmatter from a markdown document. Leading blank
// lines before the opening '---' are tolerated.
func Parse(content []byte) (*Document, error) {
	var header bytes.Buffer
	offset := 0
	inFrontmatter := false
	closed := false

	for _, raw := range bytes.SplitAfter(content, []byte("\n")) {
		offset += len(raw)
		line := string(raw)
		trimmed := strings.TrimSpace(line)

		if !inFrontmatter {
			if trimmed == "" {
				continue
			}
			if trimmed != "---" {
				return &Document{Body: content}, nil
			}
			inFrontmatter = true
			continue
		}

		if trimmed == "---" {
			closed = true
			break
		}
		header.WriteString(strings.TrimRight(line, "\r\n"))
		header.WriteByte('\n')
	}
	if !inFrontmatter {
		return &Document{Body: content}, nil
	}
	if !closed {
		return nil, fmt.Errorf("unterminated frontmatter")
	}

	doc := &Document{HasFrontmatter: true, Body: content[offset:]}
	if err := yaml.Unmarshal(header.Bytes(), &doc.Meta); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}
	return doc, nil
}

// ParseString extracts metadata from a string containing markdown with frontmatter.
func ParseString(content string) (*Document, error) {
	return Parse([]byte(content))
}
