package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/pkg/csf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buttonStories = `
import React from 'react';
import { Button } from './Button';

// export const Commented = () => null;
export default {
  title: 'Example/Button',
  component: Button,
  argTypes: {
    backgroundColor: { control: 'color' },
  },
  excludeStories: /.*Data$/,
};

const Template = (args) => <Button {...args} />;

export const Primary = Template.bind({});
Primary.args = { primary: true, label: 'Button' };

export const Secondary = Template.bind({});
Secondary.storyName = 'Second one';

export const Large = {
  name: "Big button",
  args: { size: 'large', label: "Don\"t" },
};

export function Small() {
  return <Button size="small" label="Button" />;
}

export const mockData = [{ id: 1 }];
export const WithIcon = () => <Button icon="star" />;
WithIcon.story = { name: 'With an icon' };
`

func storyIDs(r *Result) []string {
	ids := make([]string, len(r.Stories))
	for i, s := range r.Stories {
		ids[i] = s.ID
	}
	return ids
}

func TestParseSource(t *testing.T) {
	r, err := ParseSource("Button.stories.jsx", buttonStories, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Example/Button", r.Meta.Title)
	assert.Equal(t, []string{"/.*Data$/"}, r.Meta.ExcludeStories)
	assert.Equal(t, []string{
		"example-button--primary",
		"example-button--secondary",
		"example-button--large",
		"example-button--small",
		"example-button--with-icon",
	}, storyIDs(r))

	byExport := map[string]Story{}
	for _, s := range r.Stories {
		byExport[s.ExportName] = s
	}
	assert.Equal(t, csf.BoundTemplate, byExport["Primary"].Kind)
	assert.Equal(t, "Primary", byExport["Primary"].Name)
	assert.Equal(t, "Second one", byExport["Secondary"].Name)
	assert.Equal(t, csf.ObjectForm, byExport["Large"].Kind)
	assert.Equal(t, "Big button", byExport["Large"].Name)
	assert.Equal(t, csf.DirectExport, byExport["Small"].Kind)
	assert.Equal(t, "With an icon", byExport["WithIcon"].Name)
}

func TestParseSourceMetaVariable(t *testing.T) {
	src := `
import type { Meta, StoryObj } from '@storybook/react';
const meta: Meta<typeof Header> = {
  id: 'header',
  includeStories: ['LoggedIn', 'LoggedOut'],
} satisfies Meta<typeof Header>;
export default meta;

type Story = StoryObj<typeof meta>;
export const LoggedIn: Story = { args: { user: { name: 'Jane' } } };
export const LoggedOut: Story = {};
export const Helper = () => null;
`
	r, err := ParseSource("Header.stories.tsx", src, Options{
		MakeTitle: func(userTitle string) string {
			assert.Empty(t, userTitle)
			return "Example/Header"
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Example/Header", r.Meta.Title)
	assert.Equal(t, []string{"header--logged-in", "header--logged-out"}, storyIDs(r))
}

func TestParseSourceExportList(t *testing.T) {
	src := `
export default { title: "List" };
const A = Template.bind({});
const B = { name: 'Bee' };
export { A, B as Renamed };
export { x } from './other';
`
	r, err := ParseSource("List.stories.js", src, Options{})
	require.NoError(t, err)
	require.Len(t, r.Stories, 2)
	assert.Equal(t, "A", r.Stories[0].ExportName)
	assert.Equal(t, csf.BoundTemplate, r.Stories[0].Kind)
	assert.Equal(t, "Renamed", r.Stories[1].ExportName)
	assert.Equal(t, "Bee", r.Stories[1].Name)
	assert.Equal(t, "list--renamed", r.Stories[1].ID)
}

func TestParseSourceErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code errors.ErrorCode
	}{
		{"no default export", "export const A = () => null;", errors.ErrCodeNoMetadata},
		{"dynamic title", "const t = 'x';\nexport default { title: t };", errors.ErrCodeExtractionFailed},
		{"unterminated default export", "export default { title: 'A',\n", errors.ErrCodeExtractionFailed},
		{"missing title without auto title", "export default { component: X };\nexport const A = {};", errors.ErrCodeExtractionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSource("x.stories.js", tt.src, Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestMultiDispatch(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}

	m := NewMulti()
	ctx := context.Background()

	r, err := m.Extract(ctx, write("A.stories.ts", "export default { title: 'A' };\nexport const One = {};"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a--one"}, storyIDs(r))

	r, err = m.Extract(ctx, write("B.stories.yaml", "title: B\nstories:\n  - export: Two\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b--two"}, storyIDs(r))

	r, err = m.Extract(ctx, write("C.stories.md", "---\ntitle: Guides/C\n---\n# C\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"guides-c--page"}, storyIDs(r))

	_, err = m.Extract(ctx, write("D.stories.vue", "<template/>"), Options{})
	assert.True(t, IsNoMetadata(err))
}
