package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/storybook/internal/index"
)

type call struct {
	path    string
	removed bool
}

type fakeInvalidator struct {
	spec  *index.Specifier
	mu    sync.Mutex
	calls []call
}

func (f *fakeInvalidator) Specifiers() []*index.Specifier { return []*index.Specifier{f.spec} }

func (f *fakeInvalidator) SpecifiersFor(p string) []*index.Specifier {
	if f.spec.Matches(p) {
		return []*index.Specifier{f.spec}
	}
	return nil
}

func (f *fakeInvalidator) Invalidate(_ *index.Specifier, p string, removed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{path: p, removed: removed})
}

func (f *fakeInvalidator) has(c call) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, got := range f.calls {
		if got == c {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T) (string, *fakeInvalidator, *Watcher) {
	t.Helper()
	dir := t.TempDir()
	spec, err := index.NewSpecifier(dir, "**/*.stories.yaml", "")
	require.NoError(t, err)
	target := &fakeInvalidator{spec: spec}

	w, err := New(target)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Start(ctx)
	return dir, target, w
}

func TestWatcherInvalidatesChangedAndRemovedFiles(t *testing.T) {
	dir, target, _ := startWatcher(t)

	story := filepath.Join(dir, "A.stories.yaml")
	require.NoError(t, os.WriteFile(story, []byte("title: A\n"), 0644))
	assert.Eventually(t, func() bool { return target.has(call{story, false}) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(story))
	assert.Eventually(t, func() bool { return target.has(call{story, true}) }, 2*time.Second, 10*time.Millisecond)

	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, target.has(call{other, false}))
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir, target, _ := startWatcher(t)

	sub := filepath.Join(dir, "components", "button")
	require.NoError(t, os.MkdirAll(sub, 0755))
	story := filepath.Join(sub, "Button.stories.yaml")
	require.NoError(t, os.WriteFile(story, []byte("title: Button\n"), 0644))

	assert.Eventually(t, func() bool { return target.has(call{story, false}) }, 2*time.Second, 10*time.Millisecond)
}

func TestWatchFile(t *testing.T) {
	_, _, w := startWatcher(t)

	cfgDir := t.TempDir()
	preview := filepath.Join(cfgDir, "preview.json")
	changed := make(chan string, 4)
	require.NoError(t, w.WatchFile(preview, func(p string) { changed <- p }))

	require.NoError(t, os.WriteFile(preview, []byte("{}"), 0644))
	select {
	case p := <-changed:
		assert.Equal(t, preview, p)
	case <-time.After(2 * time.Second):
		t.Fatal("expected preview.json change")
	}
}

func TestInvalidateReachesEveryOverlappingSpecifier(t *testing.T) {
	root := t.TempDir()
	components := filepath.Join(root, "components")
	require.NoError(t, os.MkdirAll(components, 0755))
	story := filepath.Join(components, "Card.stories.yaml")
	require.NoError(t, os.WriteFile(story, []byte("title: Card\nstories:\n  - export: One\n"), 0644))

	wide, err := index.NewSpecifier(root, "**/*.stories.yaml", "")
	require.NoError(t, err)
	narrow, err := index.NewSpecifier(components, "**/*.stories.yaml", "")
	require.NoError(t, err)
	gen := index.NewGenerator([]*index.Specifier{wide, narrow}, index.Options{WorkingDir: root})
	ctx := context.Background()
	require.NoError(t, gen.Initialize(ctx))

	idx, err := gen.GetIndex(ctx)
	require.NoError(t, err)
	entry, ok := idx.Entry("card--one")
	require.True(t, ok)
	assert.Equal(t, "One", entry.Name)

	w, err := New(gen)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	require.NoError(t, os.WriteFile(story, []byte("title: Card\nstories:\n  - export: One\n    name: Renamed\n"), 0644))
	w.invalidate(story, false)

	idx, err = gen.GetIndex(ctx)
	require.NoError(t, err)
	entry, ok = idx.Entry("card--one")
	require.True(t, ok)
	assert.Equal(t, "Renamed", entry.Name)
}
