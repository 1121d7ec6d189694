package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/internal/index"
	"github.com/grovetools/storybook/logging"
	"github.com/grovetools/storybook/pkg/csf"
)

// DefaultImportCacheSize bounds the number of imported story files kept.
const DefaultImportCacheSize = 128

type preparedKey struct {
	exports    *csf.ModuleExports
	exportName string
}

// StoryStore loads and prepares stories from the index for the preview.
type StoryStore struct {
	Args    *ArgsStore
	Globals *GlobalsStore

	mu          sync.RWMutex
	index       *index.StoryIndex
	importFn    csf.ImportFunc
	project     *csf.ProjectAnnotations
	imports     *lru.Cache[string, *csf.ModuleExports]
	prepared    map[preparedKey]*Story
	cleanups    map[string][]func()
	logger      *logrus.Entry
	initialized bool
}

// NewStoryStore creates an empty store. Call Initialize before loading
// stories.
func NewStoryStore() *StoryStore {
	cache, _ := lru.New[string, *csf.ModuleExports](DefaultImportCacheSize)
	return &StoryStore{
		Args:     NewArgsStore(),
		imports:  cache,
		prepared: make(map[preparedKey]*Story),
		cleanups: make(map[string][]func()),
		logger:   logging.NewLogger("preview"),
	}
}

// Initialize sets the index, import function and project annotations.
func (s *StoryStore) Initialize(idx *index.StoryIndex, importFn csf.ImportFunc, project *csf.ProjectAnnotations) {
	if project == nil {
		project = &csf.ProjectAnnotations{}
	}
	s.mu.Lock()
	s.index = idx
	s.importFn = importFn
	s.project = project
	s.initialized = true
	s.mu.Unlock()
	s.Globals = NewGlobalsStore(project.Globals, project.GlobalTypes)
}

// Index returns the current story index.
func (s *StoryStore) Index() *index.StoryIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Entry looks up a story in the current index.
func (s *StoryStore) Entry(storyID string) (*index.IndexEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Entry(storyID)
}

// Project returns the current project annotations.
func (s *StoryStore) Project() *csf.ProjectAnnotations {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project
}

// OnStoriesChanged swaps in a new import function and/or index after a hot
// reload. Imported files are dropped when the import function changes.
func (s *StoryStore) OnStoriesChanged(importFn csf.ImportFunc, idx *index.StoryIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if importFn != nil {
		s.importFn = importFn
		s.imports.Purge()
	}
	if idx != nil {
		s.index = idx
	}
}

// InvalidateImport forgets one imported file so the next load re-imports it.
func (s *StoryStore) InvalidateImport(importPath string) {
	s.imports.Remove(importPath)
}

// OnGetProjectAnnotationsChanged swaps in new project annotations. Globals
// the user changed are kept; prepared stories are rebuilt on next load.
func (s *StoryStore) OnGetProjectAnnotationsChanged(project *csf.ProjectAnnotations) {
	if project == nil {
		project = &csf.ProjectAnnotations{}
	}
	s.mu.Lock()
	s.project = project
	s.prepared = make(map[preparedKey]*Story)
	s.mu.Unlock()
	s.Globals.Set(project.Globals, project.GlobalTypes)
}

// LoadStory imports and prepares a story and seeds its args. When the
// story's initial args changed since it was last loaded, the user's edits
// are re-applied on top of the new ones.
func (s *StoryStore) LoadStory(ctx context.Context, storyID string) (*Story, error) {
	s.mu.RLock()
	if !s.initialized {
		s.mu.RUnlock()
		return nil, errors.New(errors.ErrCodeInternal, "story store is not initialized")
	}
	entry, ok := s.index.Entry(storyID)
	importFn := s.importFn
	s.mu.RUnlock()
	if !ok {
		return nil, errors.StoryNotFound(storyID)
	}

	exports, err := s.importFile(ctx, importFn, entry.ImportPath)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	story, err := s.storyFromExports(entry, exports)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if previous, err := s.Args.Initial(story.ID); err == nil && !reflect.DeepEqual(previous, story.InitialArgs) {
		if err := s.Args.ResetOnImplementationChange(story, previous); err != nil {
			return nil, err
		}
	} else {
		s.Args.SetInitial(story.ID, story.InitialArgs)
	}
	return story, nil
}

func (s *StoryStore) importFile(ctx context.Context, importFn csf.ImportFunc, importPath string) (*csf.ModuleExports, error) {
	if exports, ok := s.imports.Get(importPath); ok {
		return exports, nil
	}
	if importFn == nil {
		return nil, errors.New(errors.ErrCodeImportFailed, "no import function")
	}
	exports, err := importFn(ctx, importPath)
	if err != nil {
		if errors.GetCode(err) == errors.ErrCodeImportFailed {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeImportFailed, fmt.Sprintf("failed to import %s", importPath))
	}
	s.imports.Add(importPath, exports)
	s.logger.WithField("importPath", importPath).Debug("Imported story file")
	return exports, nil
}

// storyFromExports finds the entry's export and prepares it, reusing the
// prepared story while neither the file nor the project changed.
func (s *StoryStore) storyFromExports(entry *index.IndexEntry, exports *csf.ModuleExports) (*Story, error) {
	named := findExport(entry, exports)
	if named == nil {
		return nil, errors.StoryNotFound(entry.ID).WithDetail("importPath", entry.ImportPath)
	}
	key := preparedKey{exports: exports, exportName: named.ExportName}
	if story, ok := s.prepared[key]; ok && story.ID == entry.ID {
		return story, nil
	}
	story := prepareStory(entry.ID, entry.Title, entry.Name, entry.ImportPath, named, &exports.Default, s.project)
	s.prepared[key] = story
	return story, nil
}

func findExport(entry *index.IndexEntry, exports *csf.ModuleExports) *csf.NamedStory {
	if entry.ExportName != "" {
		if named, ok := exports.Story(entry.ExportName); ok {
			return named
		}
	}
	kind := exports.Default.ID
	if kind == "" {
		kind = entry.Title
	}
	for i := range exports.Stories {
		named := &exports.Stories[i]
		id, err := csf.ToID(kind, csf.StoryNameFromExport(named.ExportName))
		if err == nil && id == entry.ID {
			return named
		}
	}
	return nil
}

// StoriesForComponent loads every story sharing story's title, in index
// order. Docs pages use it to render all stories of a component.
func (s *StoryStore) StoriesForComponent(ctx context.Context, title string) ([]*Story, error) {
	var out []*Story
	for _, entry := range s.Index().Entries() {
		if entry.Title != title {
			continue
		}
		story, err := s.LoadStory(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
		if story.DocsOnly() {
			continue
		}
		out = append(out, story)
	}
	return out, nil
}

// GetStoryContext returns the context loaders, decorators and render
// functions receive: the story's static data plus its current args and
// globals.
func (s *StoryStore) GetStoryContext(story *Story) (*csf.StoryContext, error) {
	args, err := s.Args.Get(story.ID)
	if err != nil {
		return nil, err
	}
	return &csf.StoryContext{
		ID:          story.ID,
		Title:       story.Title,
		Name:        story.Name,
		Parameters:  story.Parameters,
		InitialArgs: Clone(story.InitialArgs),
		ArgTypes:    story.ArgTypes,
		Args:        args,
		Globals:     s.Globals.Get(),
		Loaded:      map[string]any{},
	}, nil
}

// AddCleanup registers fn to run when the story is torn down.
func (s *StoryStore) AddCleanup(storyID string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups[storyID] = append(s.cleanups[storyID], fn)
}

// CleanupStory runs and clears the story's cleanup functions.
func (s *StoryStore) CleanupStory(story *Story) {
	s.mu.Lock()
	fns := s.cleanups[story.ID]
	delete(s.cleanups, story.ID)
	s.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
