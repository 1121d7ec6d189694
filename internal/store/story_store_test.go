package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/internal/index"
	"github.com/grovetools/storybook/pkg/csf"
)

func buttonFile() *csf.ModuleExports {
	return &csf.ModuleExports{
		Default: csf.ComponentAnnotations{
			Title: "Button",
			BaseAnnotations: csf.BaseAnnotations{
				Args:       csf.Args{"label": "Button", "size": "medium"},
				Parameters: csf.Parameters{"layout": "centered", "docs": map[string]any{"source": "component"}},
				ArgTypes:   csf.ArgTypes{"size": {Options: []any{"small", "medium", "large"}}},
			},
		},
		Stories: []csf.NamedStory{
			{ExportName: "Primary", Kind: csf.ObjectForm, Story: csf.StoryAnnotations{
				BaseAnnotations: csf.BaseAnnotations{
					Args:       csf.Args{"primary": true},
					Parameters: csf.Parameters{"docs": map[string]any{"description": "main"}},
				},
			}},
			{ExportName: "Large", Kind: csf.BoundTemplate, Story: csf.StoryAnnotations{
				BaseAnnotations: csf.BaseAnnotations{Args: csf.Args{"size": "large"}},
			}},
		},
	}
}

func testIndex(entries ...*index.IndexEntry) *index.StoryIndex {
	idx := index.NewStoryIndex()
	for _, e := range entries {
		idx.Stories.Set(e.ID, e)
	}
	return idx
}

func entry(id, title, name, importPath, export string) *index.IndexEntry {
	return &index.IndexEntry{
		ExtractedStory: index.ExtractedStory{ID: id, Title: title, Name: name, ImportPath: importPath},
		ExportName:     export,
	}
}

type countingImporter struct {
	files map[string]*csf.ModuleExports
	calls int
}

func (c *countingImporter) Import(ctx context.Context, p string) (*csf.ModuleExports, error) {
	c.calls++
	f, ok := c.files[p]
	if !ok {
		return nil, errors.New(errors.ErrCodeImportFailed, "missing "+p)
	}
	return f, nil
}

func newTestStore(t *testing.T) (*StoryStore, *countingImporter) {
	t.Helper()
	imp := &countingImporter{files: map[string]*csf.ModuleExports{"./Button.stories.go": buttonFile()}}
	s := NewStoryStore()
	s.Initialize(testIndex(
		entry("button--primary", "Button", "Primary", "./Button.stories.go", "Primary"),
		// no export name: resolved by id
		entry("button--large", "Button", "Large", "./Button.stories.go", ""),
		entry("gone--story", "Gone", "Story", "./Gone.stories.go", "Story"),
	), imp.Import, &csf.ProjectAnnotations{
		BaseAnnotations: csf.BaseAnnotations{
			Args:       csf.Args{"theme": "light"},
			Parameters: csf.Parameters{"docs": map[string]any{"source": "project", "theme": "x"}},
		},
		Globals: csf.Globals{"locale": "en"},
	})
	return s, imp
}

func TestLoadStoryMergesAnnotations(t *testing.T) {
	s, _ := newTestStore(t)

	story, err := s.LoadStory(context.Background(), "button--primary")
	require.NoError(t, err)
	assert.Equal(t, "Button", story.Title)
	assert.Equal(t, "Primary", story.Name)
	assert.Equal(t, csf.ObjectForm, story.Kind)
	assert.Equal(t, csf.Args{"theme": "light", "label": "Button", "size": "medium", "primary": true}, story.InitialArgs)
	assert.Equal(t, csf.Parameters{
		"layout": "centered",
		"docs":   map[string]any{"source": "component", "theme": "x", "description": "main"},
	}, story.Parameters)

	assert.Equal(t, csf.TypeBoolean, story.ArgTypes["primary"].Type.Name)
	assert.Equal(t, csf.TypeString, story.ArgTypes["label"].Type.Name)
	assert.Equal(t, csf.TypeEnum, story.ArgTypes["size"].Type.Name)

	args, err := s.Args.Get("button--primary")
	require.NoError(t, err)
	assert.Equal(t, story.InitialArgs, args)
}

func TestLoadStoryResolvesExportByID(t *testing.T) {
	s, _ := newTestStore(t)
	story, err := s.LoadStory(context.Background(), "button--large")
	require.NoError(t, err)
	assert.Equal(t, "Large", story.ExportName)
	assert.Equal(t, "large", story.InitialArgs["size"])
}

func TestLoadStoryErrors(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadStory(ctx, "nope--missing")
	assert.True(t, errors.Is(err, errors.ErrCodeStoryNotFound))

	_, err = s.LoadStory(ctx, "gone--story")
	assert.True(t, errors.Is(err, errors.ErrCodeImportFailed))
}

func TestImportsAreCachedUntilImportFunctionChanges(t *testing.T) {
	s, imp := newTestStore(t)
	ctx := context.Background()

	first, err := s.LoadStory(ctx, "button--primary")
	require.NoError(t, err)
	again, err := s.LoadStory(ctx, "button--primary")
	require.NoError(t, err)
	_, err = s.LoadStory(ctx, "button--large")
	require.NoError(t, err)
	assert.Equal(t, 1, imp.calls)
	assert.Same(t, first, again, "unchanged files yield the same prepared story")

	s.OnStoriesChanged(imp.Import, nil)
	_, err = s.LoadStory(ctx, "button--primary")
	require.NoError(t, err)
	assert.Equal(t, 2, imp.calls)
}

func TestHotReloadKeepsUserArgs(t *testing.T) {
	s, imp := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadStory(ctx, "button--primary")
	require.NoError(t, err)
	require.NoError(t, s.Args.Update("button--primary", csf.Args{"label": "Mine"}))

	changed := buttonFile()
	changed.Default.Args["size"] = "small"
	imp.files["./Button.stories.go"] = changed
	s.OnStoriesChanged(imp.Import, nil)

	story, err := s.LoadStory(ctx, "button--primary")
	require.NoError(t, err)
	assert.Equal(t, "small", story.InitialArgs["size"])

	args, err := s.Args.Get("button--primary")
	require.NoError(t, err)
	assert.Equal(t, "Mine", args["label"])
	assert.Equal(t, "small", args["size"])
}

func TestGetStoryContext(t *testing.T) {
	s, _ := newTestStore(t)
	story, err := s.LoadStory(context.Background(), "button--primary")
	require.NoError(t, err)
	require.NoError(t, s.Args.Update(story.ID, csf.Args{"label": "Changed"}))

	sc, err := s.GetStoryContext(story)
	require.NoError(t, err)
	assert.Equal(t, "button--primary", sc.ID)
	assert.Equal(t, "Changed", sc.Args["label"])
	assert.Equal(t, "Button", sc.InitialArgs["label"])
	assert.Equal(t, csf.Globals{"locale": "en"}, sc.Globals)
}

func TestProjectAnnotationsChangeKeepsUserGlobals(t *testing.T) {
	s, _ := newTestStore(t)
	s.Globals.Update(csf.Globals{"locale": "fr"})

	s.OnGetProjectAnnotationsChanged(&csf.ProjectAnnotations{
		Globals:     csf.Globals{"locale": "de"},
		GlobalTypes: csf.GlobalTypes{"theme": {Name: "theme", DefaultValue: "dark"}},
	})
	assert.Equal(t, csf.Globals{"locale": "fr", "theme": "dark"}, s.Globals.Get())
}

func TestDecorateOrder(t *testing.T) {
	var trace []string
	deco := func(name string) csf.DecoratorFunc {
		return func(next csf.StoryFn, sc *csf.StoryContext) (any, error) {
			trace = append(trace, name+">")
			out, err := next(sc)
			trace = append(trace, "<"+name)
			return out, err
		}
	}
	story := &Story{
		Decorators: []csf.DecoratorFunc{deco("project"), deco("component"), deco("story")},
		Render: func(args csf.Args, sc *csf.StoryContext) (any, error) {
			trace = append(trace, "render")
			return "<b>" + args["label"].(string) + "</b>", nil
		},
	}
	out, err := Decorate(story)(&csf.StoryContext{Args: csf.Args{"label": "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", out)
	assert.Equal(t, "project> component> story> render <story <component <project", strings.Join(trace, " "))
}

func TestCleanupStory(t *testing.T) {
	s, _ := newTestStore(t)
	var order []int
	s.AddCleanup("a--b", func() { order = append(order, 1) })
	s.AddCleanup("a--b", func() { order = append(order, 2) })

	s.CleanupStory(&Story{ID: "a--b"})
	s.CleanupStory(&Story{ID: "a--b"})
	assert.Equal(t, []int{2, 1}, order)
}
