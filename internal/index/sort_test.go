package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/storybook/errors"
)

func entries(specs ...[2]string) []*IndexEntry {
	out := make([]*IndexEntry, len(specs))
	for i, s := range specs {
		out[i] = &IndexEntry{ExtractedStory: ExtractedStory{ID: s[0], Title: s[1], Name: s[0]}}
	}
	return out
}

func ids(es []*IndexEntry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func TestWildcardKeepsImportOrder(t *testing.T) {
	es := entries(
		[2]string{"b", "B"},
		[2]string{"z", "Z"},
		[2]string{"a", "A"},
		[2]string{"intro", "Intro"},
		[2]string{"c", "C"},
	)
	d := &SortDirective{Method: SortConfigure, Order: []any{"Intro", "*", "Z"}}
	require.NoError(t, d.Sort(es))
	assert.Equal(t, []string{"intro", "b", "a", "c", "z"}, ids(es))
}

func TestUnlistedWithoutWildcardGoLast(t *testing.T) {
	es := entries(
		[2]string{"x", "X"},
		[2]string{"y", "Y"},
		[2]string{"intro", "Intro"},
	)
	d := &SortDirective{Method: SortConfigure, Order: []any{"Intro"}}
	require.NoError(t, d.Sort(es))
	assert.Equal(t, []string{"intro", "x", "y"}, ids(es))
}

func TestNestedOrder(t *testing.T) {
	es := entries(
		[2]string{"other", "Other"},
		[2]string{"zeta", "Docs/Zeta"},
		[2]string{"docs-intro", "Docs / Intro"},
	)
	d := &SortDirective{Method: SortConfigure, Order: []any{"Docs", []any{"Intro", "*"}, "*"}}
	require.NoError(t, d.Sort(es))
	assert.Equal(t, []string{"docs-intro", "zeta", "other"}, ids(es))
}

func TestAlphabeticalUsesNumericCaseInsensitiveCollation(t *testing.T) {
	es := entries(
		[2]string{"b10", "Comp/b10"},
		[2]string{"b2", "Comp/b2"},
		[2]string{"a", "Comp/A"},
		[2]string{"comp", "Comp"},
	)
	d := &SortDirective{Method: SortAlphabetical}
	require.NoError(t, d.Sort(es))
	assert.Equal(t, []string{"comp", "a", "b2", "b10"}, ids(es))
}

func TestIncludeNames(t *testing.T) {
	es := []*IndexEntry{
		{ExtractedStory: ExtractedStory{ID: "btn--secondary", Title: "Button", Name: "Secondary"}},
		{ExtractedStory: ExtractedStory{ID: "btn--primary", Title: "Button", Name: "Primary"}},
	}
	d := &SortDirective{Method: SortAlphabetical}
	require.NoError(t, d.Sort(es))
	assert.Equal(t, []string{"btn--secondary", "btn--primary"}, ids(es), "same title ties without includeNames")

	d.IncludeNames = true
	require.NoError(t, d.Sort(es))
	assert.Equal(t, []string{"btn--primary", "btn--secondary"}, ids(es))
}

func TestExprSorter(t *testing.T) {
	t.Run("numeric result", func(t *testing.T) {
		s, err := NewExprSorter(`a[1].title == b[1].title ? 0 : (a[1].title < b[1].title ? 1 : -1)`)
		require.NoError(t, err)
		es := entries([2]string{"a", "A"}, [2]string{"c", "C"}, [2]string{"b", "B"}, [2]string{"c2", "C"})
		require.NoError(t, s.Sort(es))
		assert.Equal(t, []string{"c", "c2", "b", "a"}, ids(es))
	})

	t.Run("boolean result", func(t *testing.T) {
		s, err := NewExprSorter(`a[0] < b[0]`)
		require.NoError(t, err)
		es := entries([2]string{"m", "T"}, [2]string{"d", "T"}, [2]string{"x", "T"})
		require.NoError(t, s.Sort(es))
		assert.Equal(t, []string{"d", "m", "x"}, ids(es))
	})

	t.Run("wrong result type", func(t *testing.T) {
		s, err := NewExprSorter(`a[1].title`)
		require.NoError(t, err)
		err = s.Sort(entries([2]string{"a", "A"}, [2]string{"b", "B"}))
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidSort))
	})
}

func TestParseSortDirective(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantNil bool
		wantErr bool
	}{
		{name: "no parameters", json: `{}`, wantNil: true},
		{name: "null", json: `{"parameters":{"options":{"storySort":null}}}`, wantNil: true},
		{name: "object", json: `{"parameters":{"options":{"storySort":{"method":"alphabetical"}}}}`},
		{name: "expression", json: `{"parameters":{"options":{"storySort":"a[0] < b[0]"}}}`},
		{name: "number", json: `{"parameters":{"options":{"storySort":42}}}`, wantErr: true},
		{name: "bad method", json: `{"parameters":{"options":{"storySort":{"method":"random"}}}}`, wantErr: true},
		{name: "bad expression", json: `{"parameters":{"options":{"storySort":"a[0] <"}}}`, wantErr: true},
		{name: "invalid json", json: `{"parameters":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSortDirective([]byte(tt.json))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidSort, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNil, s == nil)
		})
	}
}

func TestLoadSortDirectiveMissingFile(t *testing.T) {
	s, err := LoadSortDirective(t.TempDir() + "/nope.json")
	require.NoError(t, err)
	assert.Nil(t, s)
}
