package index

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/logging"
	"github.com/grovetools/storybook/pkg/extract"
	"github.com/grovetools/storybook/pkg/profiling"
)

// Options configures a Generator.
type Options struct {
	// WorkingDir is the directory import paths are relative to.
	WorkingDir string
	// Extractor reads stories from a file. Defaults to extract.NewMulti().
	Extractor extract.Extractor
	// PreviewAnnotations is the JSON file holding the storySort directive.
	PreviewAnnotations string
	// V2Compatibility adds kind, story and parameters to each entry.
	V2Compatibility bool
	Logger          *logrus.Entry
}

// specifierCache maps absolute file paths to their stories. A nil value
// means the file has not been extracted since it was found or invalidated.
type specifierCache = orderedmap.OrderedMap[string, *StoryMap]

// InvalidatedFunc is notified after a file is invalidated.
type InvalidatedFunc func(spec *Specifier, path string, removed bool)

// Generator builds the story index incrementally: only files that were
// invalidated since the last build are extracted again.
type Generator struct {
	specifiers []*Specifier
	opts       Options
	logger     *logrus.Entry

	mu         sync.Mutex
	caches     map[*Specifier]*specifierCache
	lastIndex  *StoryIndex
	listenerMu sync.RWMutex
	listeners  []InvalidatedFunc
}

// NewGenerator creates a generator for the given specifiers.
func NewGenerator(specifiers []*Specifier, opts Options) *Generator {
	if opts.Extractor == nil {
		opts.Extractor = extract.NewMulti()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("index")
	}
	caches := make(map[*Specifier]*specifierCache, len(specifiers))
	for _, spec := range specifiers {
		caches[spec] = orderedmap.New[string, *StoryMap]()
	}
	return &Generator{
		specifiers: specifiers,
		opts:       opts,
		logger:     opts.Logger,
		caches:     caches,
	}
}

// Specifiers returns the generator's specifiers in configuration order.
func (g *Generator) Specifiers() []*Specifier {
	return g.specifiers
}

// SpecifiersFor returns every specifier whose glob matches absPath, in
// configuration order.
func (g *Generator) SpecifiersFor(absPath string) []*Specifier {
	var matched []*Specifier
	for _, spec := range g.specifiers {
		if spec.Matches(absPath) {
			matched = append(matched, spec)
		}
	}
	return matched
}

// Initialize scans every specifier and extracts all files it finds. Only
// a failing scan is an error here; extraction errors surface from GetIndex.
func (g *Generator) Initialize(ctx context.Context) error {
	span := profiling.Start("index.initialize")
	defer span.Stop()

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, spec := range g.specifiers {
		files, err := spec.Scan(g.logger)
		if err != nil {
			return err
		}
		cache := g.caches[spec]
		for _, f := range files {
			if _, ok := cache.Get(f); !ok {
				cache.Set(f, nil)
			}
		}
		g.logger.WithFields(logrus.Fields{
			"specifier": spec.String(),
			"files":     len(files),
		}).Debug("Scanned stories specifier")
	}

	if _, err := g.ensureExtracted(ctx); err != nil {
		g.logger.WithError(err).Warn("Initial extraction failed")
	}
	return nil
}

// ExtractStories extracts one file and stores the result in its cache slot.
// A file without story metadata is stored as empty.
func (g *Generator) ExtractStories(ctx context.Context, spec *Specifier, absPath string) (*StoryMap, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.extractStories(ctx, spec, absPath)
}

func (g *Generator) extractStories(ctx context.Context, spec *Specifier, absPath string) (*StoryMap, error) {
	logger := g.logger.WithField("file", absPath)
	stories := newStoryMap()

	result, err := g.opts.Extractor.Extract(ctx, absPath, extract.Options{
		MakeTitle: extract.MakeTitle(absPath, spec.Directory, spec.TitlePrefix),
	})
	if err != nil {
		if extract.IsNoMetadata(err) {
			logger.WithError(err).Info("Skipping file without story metadata")
			g.caches[spec].Set(absPath, stories)
			return stories, nil
		}
		logger.WithError(err).Warn("Failed to extract stories")
		if errors.GetCode(err) == errors.ErrCodeExtractionFailed {
			return nil, err
		}
		return nil, errors.ExtractionFailed(absPath, err)
	}

	importPath := g.ImportPath(absPath)
	for _, s := range result.Stories {
		stories.Set(s.ID, &IndexEntry{
			ExtractedStory: ExtractedStory{
				ID:         s.ID,
				Title:      result.Meta.Title,
				Name:       s.Name,
				ImportPath: importPath,
			},
			ExportName: s.ExportName,
		})
	}
	g.caches[spec].Set(absPath, stories)
	return stories, nil
}

// EnsureExtracted extracts every file not extracted yet and returns the
// per-file story maps in specifier and file order.
func (g *Generator) EnsureExtracted(ctx context.Context) ([]*StoryMap, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ensureExtracted(ctx)
}

func (g *Generator) ensureExtracted(ctx context.Context) ([]*StoryMap, error) {
	var all []*StoryMap
	for _, spec := range g.specifiers {
		cache := g.caches[spec]
		for pair := cache.Oldest(); pair != nil; pair = pair.Next() {
			stories := pair.Value
			if stories == nil {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				var err error
				stories, err = g.extractStories(ctx, spec, pair.Key)
				if err != nil {
					return nil, err
				}
			}
			all = append(all, stories)
		}
	}
	return all, nil
}

// GetIndex returns the story index, rebuilding it if anything was
// invalidated since the last call.
func (g *Generator) GetIndex(ctx context.Context) (*StoryIndex, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastIndex != nil {
		return g.lastIndex, nil
	}

	span := profiling.Start("index.build")
	files, err := g.ensureExtracted(ctx)
	if err != nil {
		span.Stop()
		return nil, err
	}

	// A later file overwrites an earlier story with the same id but keeps
	// its position.
	positions := make(map[string]int)
	var entries []*IndexEntry
	for _, stories := range files {
		for pair := stories.Oldest(); pair != nil; pair = pair.Next() {
			entry := *pair.Value
			if i, exists := positions[entry.ID]; exists {
				entries[i] = &entry
				continue
			}
			positions[entry.ID] = len(entries)
			entries = append(entries, &entry)
		}
	}

	sorter, err := LoadSortDirective(g.opts.PreviewAnnotations)
	if err != nil {
		span.Stop()
		return nil, err
	}
	if sorter != nil {
		if err := sorter.Sort(entries); err != nil {
			span.Stop()
			return nil, err
		}
	}

	if g.opts.V2Compatibility {
		toV2(entries)
	}

	idx := NewStoryIndex()
	for _, entry := range entries {
		idx.Stories.Set(entry.ID, entry)
	}
	g.lastIndex = idx

	g.logger.WithFields(logrus.Fields{
		"stories":  idx.Stories.Len(),
		"files":    len(files),
		"duration": span.Stop(),
	}).Debug("Built story index")
	return idx, nil
}

// Invalidate marks a file for re-extraction, or forgets it when removed.
// The next GetIndex rebuilds the index.
func (g *Generator) Invalidate(spec *Specifier, absPath string, removed bool) {
	g.mu.Lock()
	cache, ok := g.caches[spec]
	if ok {
		if removed {
			cache.Delete(absPath)
		} else {
			cache.Set(absPath, nil)
		}
	}
	g.lastIndex = nil
	g.mu.Unlock()

	if !ok {
		return
	}
	g.logger.WithFields(logrus.Fields{
		"file":    absPath,
		"removed": removed,
	}).Debug("Invalidated story file")

	g.listenerMu.RLock()
	listeners := append([]InvalidatedFunc(nil), g.listeners...)
	g.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(spec, absPath, removed)
	}
}

// InvalidateIndex drops the memoized index without touching any file, so
// the next GetIndex sorts again. Used when the preview annotations change.
func (g *Generator) InvalidateIndex() {
	g.mu.Lock()
	g.lastIndex = nil
	g.mu.Unlock()
}

// OnInvalidated registers fn to run after every Invalidate.
func (g *Generator) OnInvalidated(fn InvalidatedFunc) {
	g.listenerMu.Lock()
	defer g.listenerMu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// ImportPath is the path of absPath relative to the working directory, in
// the "./src/Button.stories.tsx" form.
func (g *Generator) ImportPath(absPath string) string {
	rel, err := filepath.Rel(g.opts.WorkingDir, absPath)
	if err != nil || g.opts.WorkingDir == "" {
		return filepath.ToSlash(absPath)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return rel
	}
	return "./" + rel
}

// toV2 adds the fields of the v2 compatible format. An entry is docs-only
// when it is the placeholder page export and the only story of its title.
func toV2(entries []*IndexEntry) {
	perTitle := make(map[string]int)
	for _, e := range entries {
		perTitle[e.Title]++
	}
	for _, e := range entries {
		e.Kind = e.Title
		e.Story = e.Name
		e.Parameters = &V2Parameters{
			ID:       e.ID,
			DocsOnly: e.ExportName == extract.PageExport && perTitle[e.Title] == 1,
			FileName: e.ImportPath,
		}
	}
}
