package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	doc, err := ParseString(`
---
title: Guides/Introduction
id: intro
tags: [docs]
---
# Welcome

Body text.
`)
	require.NoError(t, err)
	assert.True(t, doc.HasFrontmatter)
	assert.Equal(t, "Guides/Introduction", doc.Meta.Title)
	assert.Equal(t, "intro", doc.Meta.ID)
	assert.Equal(t, []interface{}{"docs"}, doc.Meta.Parameters["tags"])
	assert.Equal(t, "# Welcome\n\nBody text.\n", string(doc.Body))
}

func TestParseWithoutFrontmatter(t *testing.T) {
	doc, err := ParseString("# Just markdown\n")
	require.NoError(t, err)
	assert.False(t, doc.HasFrontmatter)
	assert.Equal(t, "# Just markdown\n", string(doc.Body))
}

func TestParseErrors(t *testing.T) {
	_, err := ParseString("---\ntitle: x\n")
	assert.ErrorContains(t, err, "unterminated")

	_, err = ParseString("---\ntitle: [x\n---\n")
	assert.ErrorContains(t, err, "invalid frontmatter")
}
