package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/pkg/csf"
)

func TestArgsStoreRequiresInitialization(t *testing.T) {
	s := NewArgsStore()

	_, err := s.Get("a--b")
	assert.True(t, errors.Is(err, errors.ErrCodeArgsNotInitialized))
	err = s.Update("a--b", csf.Args{"x": 1})
	assert.True(t, errors.Is(err, errors.ErrCodeArgsNotInitialized))
}

func TestSetInitialIsFirstWriteWins(t *testing.T) {
	s := NewArgsStore()
	s.SetInitial("a--b", csf.Args{"foo": "a"})
	require.NoError(t, s.Update("a--b", csf.Args{"foo": "edited"}))
	s.SetInitial("a--b", csf.Args{"foo": "other"})

	args, err := s.Get("a--b")
	require.NoError(t, err)
	assert.Equal(t, csf.Args{"foo": "edited"}, args)
}

func TestUpdateIsShallowMerge(t *testing.T) {
	s := NewArgsStore()
	s.SetInitial("a--b", csf.Args{
		"kept":     map[string]any{"x": 1, "y": 2},
		"replaced": map[string]any{"x": 1, "y": 2},
		"scalar":   "old",
	})
	require.NoError(t, s.Update("a--b", csf.Args{
		"replaced": map[string]any{"z": 3},
		"scalar":   "new",
		"added":    true,
	}))

	args, err := s.Get("a--b")
	require.NoError(t, err)
	assert.Equal(t, csf.Args{
		"kept":     map[string]any{"x": 1, "y": 2},
		"replaced": map[string]any{"z": 3},
		"scalar":   "new",
		"added":    true,
	}, args)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewArgsStore()
	s.SetInitial("a--b", csf.Args{"obj": map[string]any{"x": 1}})
	args, _ := s.Get("a--b")
	args["obj"].(map[string]any)["x"] = 99

	again, _ := s.Get("a--b")
	assert.Equal(t, 1, again["obj"].(map[string]any)["x"])
}

func TestUpdateFromPersistedMergesObjectsAndSparseArrays(t *testing.T) {
	s := NewArgsStore()
	story := &Story{
		ID: "id",
		ArgTypes: csf.ArgTypes{
			"a": {Name: "a", Type: &csf.SBType{Name: csf.TypeObject, Value: map[string]*csf.SBType{"baz": {Name: csf.TypeString}}}},
			"b": {Name: "b", Type: &csf.SBType{Name: csf.TypeArray, Value: &csf.SBType{Name: csf.TypeString}}},
		},
	}
	s.SetInitial("id", csf.Args{"a": map[string]any{"foo": "bar"}, "b": []any{"1", "2", "3"}})

	require.NoError(t, s.UpdateFromPersisted(story, csf.Args{
		"a": map[string]any{"baz": "bing"},
		"b": []any{csf.Undefined, csf.Undefined, "4"},
	}))

	args, err := s.Get("id")
	require.NoError(t, err)
	assert.Equal(t, csf.Args{
		"a": map[string]any{"foo": "bar", "baz": "bing"},
		"b": []any{"1", "2", "4"},
	}, args)
}

func TestUpdateFromPersistedCoercesAndFilters(t *testing.T) {
	s := NewArgsStore()
	story := &Story{
		ID: "id",
		ArgTypes: csf.ArgTypes{
			"count":   {Name: "count", Type: &csf.SBType{Name: csf.TypeNumber}},
			"enabled": {Name: "enabled", Type: &csf.SBType{Name: csf.TypeBoolean}},
			"label":   {Name: "label", Type: &csf.SBType{Name: csf.TypeString}},
			"size":    {Name: "size", Type: &csf.SBType{Name: csf.TypeEnum}, Options: []any{"small", "large"}},
			"onClick": {Name: "onClick", Type: &csf.SBType{Name: csf.TypeFunction}},
		},
	}
	s.SetInitial("id", csf.Args{"count": 1.0, "enabled": false, "label": "x", "size": "small"})

	require.NoError(t, s.UpdateFromPersisted(story, csf.Args{
		"count":   "42",
		"enabled": "true",
		"label":   "not-a-number",
		"size":    "huge",
		"onClick": "alert(1)",
		"unknown": "dropped",
	}))

	args, err := s.Get("id")
	require.NoError(t, err)
	assert.Equal(t, csf.Args{"count": 42.0, "enabled": true, "label": "not-a-number", "size": "small"}, args)
}

func TestDeltaAndResetOnImplementationChange(t *testing.T) {
	s := NewArgsStore()
	old := csf.Args{"foo": "a", "bar": "b"}
	s.SetInitial("id", old)
	require.NoError(t, s.Update("id", csf.Args{"foo": "edited"}))

	delta, err := s.Delta("id")
	require.NoError(t, err)
	assert.Equal(t, csf.Args{"foo": "edited"}, delta)

	story := &Story{ID: "id", InitialArgs: csf.Args{"foo": "a", "bar": "new default", "baz": 1}}
	require.NoError(t, s.ResetOnImplementationChange(story, old))

	args, err := s.Get("id")
	require.NoError(t, err)
	assert.Equal(t, csf.Args{"foo": "edited", "bar": "new default", "baz": 1}, args)

	initial, err := s.Initial("id")
	require.NoError(t, err)
	assert.Equal(t, story.InitialArgs, initial)
}

func TestCombineDropsUndefinedKeys(t *testing.T) {
	got := combine(map[string]any{"a": 1, "b": 2}, map[string]any{"b": csf.Undefined, "c": 3})
	assert.Equal(t, map[string]any{"a": 1, "c": 3}, got)
}
