package csf

import (
	"testing"

	"github.com/grovetools/storybook/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToID(t *testing.T) {
	tests := []struct {
		kind, name string
		want       string
	}{
		{"Components/Button", "Primary", "components-button--primary"},
		{"components-button", "With Icon", "components-button--with-icon"},
		{"Example/Header", "Logged In", "example-header--logged-in"},
		{"A", "B", "a--b"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := ToID(tt.kind, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToIDRejectsEmptyParts(t *testing.T) {
	_, err := ToID("***", "Primary")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	assert.Contains(t, err.Error(), "invalid kind")

	_, err = ToID("Button", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid name")
}

func TestStoryNameFromExport(t *testing.T) {
	tests := map[string]string{
		"primary":        "Primary",
		"someExportName": "Some Export Name",
		"WithIcon2":      "With Icon 2",
		"snake_case_arg": "Snake Case Arg",
		"HTMLParser":     "HTML Parser",
		"__page":         "Page",
	}
	for in, want := range tests {
		assert.Equal(t, want, StoryNameFromExport(in), in)
	}
}

func TestIsExportStory(t *testing.T) {
	tests := []struct {
		name             string
		key              string
		include, exclude []string
		want             bool
	}{
		{"no filters", "Primary", nil, nil, true},
		{"es module marker", "__esModule", nil, nil, false},
		{"included by name", "Primary", []string{"Primary"}, nil, true},
		{"not in include list", "Secondary", []string{"Primary"}, nil, false},
		{"empty include list", "Primary", []string{}, nil, false},
		{"excluded by name", "mockData", nil, []string{"mockData"}, false},
		{"excluded by regex", "mockUser", nil, []string{"/^mock/"}, false},
		{"included by regex", "StoryOne", []string{"/^Story/"}, nil, true},
		{"include and exclude", "StoryData", []string{"/^Story/"}, []string{"/Data$/"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExportStory(tt.key, tt.include, tt.exclude))
		})
	}
}

func TestCombineParameters(t *testing.T) {
	project := Parameters{
		"layout":  "centered",
		"options": map[string]any{"a": 1, "b": 2},
		"list":    []any{1, 2},
	}
	component := Parameters{
		"options": map[string]any{"b": 3},
		"list":    []any{3},
	}
	story := Parameters{
		"layout":  "fullscreen",
		"options": map[string]any{"c": 4},
	}

	got := CombineParameters(project, nil, component, story)
	assert.Equal(t, "fullscreen", got["layout"])
	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, got["options"])
	assert.Equal(t, []any{3}, got["list"])

	// inputs are not mutated
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, project["options"])
}

func TestExportKindString(t *testing.T) {
	assert.Equal(t, "direct", DirectExport.String())
	assert.Equal(t, "bound-template", BoundTemplate.String())
	assert.Equal(t, "object", ObjectForm.String())
	text, err := ObjectForm.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "object", string(text))
}
