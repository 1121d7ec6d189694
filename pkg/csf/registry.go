package csf

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/grovetools/storybook/errors"
)

// ImportFunc loads the story file registered under importPath.
type ImportFunc func(ctx context.Context, importPath string) (*ModuleExports, error)

// Registry holds the story files a preview can import, keyed by import path
// (the path relative to the project root, e.g. "./src/Button.stories.tsx").
type Registry struct {
	mu        sync.RWMutex
	files     map[string]*ModuleExports
	listeners []func(importPath string)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{files: make(map[string]*ModuleExports)}
}

// Register adds a story file. Registering the same path twice is an error;
// use Replace for hot reloads.
func (r *Registry) Register(importPath string, exports *ModuleExports) error {
	if exports == nil {
		return errors.New(errors.ErrCodeInvalidInput, "cannot register nil story file").
			WithDetail("importPath", importPath)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.files[importPath]; exists {
		return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("story file '%s' is already registered", importPath)).
			WithDetail("importPath", importPath)
	}
	r.files[importPath] = exports
	return nil
}

// Replace swaps in a new version of a story file and notifies listeners.
func (r *Registry) Replace(importPath string, exports *ModuleExports) {
	r.mu.Lock()
	r.files[importPath] = exports
	listeners := append([]func(string){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(importPath)
	}
}

// Remove drops a story file and notifies listeners.
func (r *Registry) Remove(importPath string) {
	r.mu.Lock()
	_, existed := r.files[importPath]
	delete(r.files, importPath)
	listeners := append([]func(string){}, r.listeners...)
	r.mu.Unlock()

	if existed {
		for _, fn := range listeners {
			fn(importPath)
		}
	}
}

// OnChange registers fn to run after every Replace or Remove.
func (r *Registry) OnChange(fn func(importPath string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Import returns the story file registered under importPath.
func (r *Registry) Import(ctx context.Context, importPath string) (*ModuleExports, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	exports, ok := r.files[importPath]
	if !ok {
		return nil, errors.New(errors.ErrCodeImportFailed, fmt.Sprintf("no story file registered for '%s'", importPath)).
			WithDetail("importPath", importPath)
	}
	return exports, nil
}

// ImportPaths lists the registered paths in sorted order.
func (r *Registry) ImportPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.files))
	for p := range r.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
