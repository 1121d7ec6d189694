package store

import (
	"sync"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/logging"
	"github.com/grovetools/storybook/pkg/csf"
)

// ArgsStore holds the current args of every story that has been loaded.
type ArgsStore struct {
	mu      sync.RWMutex
	initial map[string]csf.Args
	args    map[string]csf.Args
}

// NewArgsStore creates an empty store.
func NewArgsStore() *ArgsStore {
	return &ArgsStore{
		initial: make(map[string]csf.Args),
		args:    make(map[string]csf.Args),
	}
}

// SetInitial seeds a story's args. Later calls for the same id are ignored
// so re-rendering a story never clobbers the user's edits.
func (s *ArgsStore) SetInitial(storyID string, args csf.Args) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.args[storyID]; ok {
		return
	}
	s.initial[storyID] = Clone(args)
	s.args[storyID] = Clone(args)
}

// Has reports whether a story's args were seeded.
func (s *ArgsStore) Has(storyID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.args[storyID]
	return ok
}

// Get returns a copy of a story's current args.
func (s *ArgsStore) Get(storyID string) (csf.Args, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	args, ok := s.args[storyID]
	if !ok {
		return nil, errors.ArgsNotInitialized(storyID)
	}
	return Clone(args), nil
}

// Initial returns a copy of the args a story was seeded with.
func (s *ArgsStore) Initial(storyID string) (csf.Args, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	args, ok := s.initial[storyID]
	if !ok {
		return nil, errors.ArgsNotInitialized(storyID)
	}
	return Clone(args), nil
}

// Update shallow-merges partial into a story's args: every key in partial
// replaces the whole current value. csf.Undefined removes the key.
func (s *ArgsStore) Update(storyID string, partial csf.Args) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.args[storyID]
	if !ok {
		return errors.ArgsNotInitialized(storyID)
	}
	next := make(csf.Args, len(current)+len(partial))
	for k, v := range current {
		next[k] = v
	}
	for k, v := range Clone(partial) {
		if csf.IsUndefined(v) {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	s.args[storyID] = next
	return nil
}

// UpdateFromPersisted applies args decoded from a lossy serialization such
// as the URL. Values are coerced to the story's declared arg types, args
// that are not declared are dropped, and objects and arrays are merged
// into the current value instead of replacing it.
func (s *ArgsStore) UpdateFromPersisted(story *Story, persisted csf.Args) error {
	return s.updateFromDelta(story, mapArgsToTypes(persisted, story.ArgTypes))
}

func (s *ArgsStore) updateFromDelta(story *Story, delta csf.Args) error {
	validated, dropped := validateOptions(delta, story.ArgTypes)
	if len(dropped) > 0 {
		logging.NewLogger("preview").WithField("story", story.ID).
			Warnf("Ignored args with values outside their options: %v", dropped)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.args[story.ID]
	if !ok {
		return errors.ArgsNotInitialized(story.ID)
	}
	merged, _ := asObject(combine(map[string]any(current), map[string]any(validated)))
	s.args[story.ID] = csf.Args(merged)
	return nil
}

// Delta returns what the user changed relative to the initial args.
// Removed keys appear as csf.Undefined.
func (s *ArgsStore) Delta(storyID string) (csf.Args, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current, ok := s.args[storyID]
	if !ok {
		return nil, errors.ArgsNotInitialized(storyID)
	}
	diff := deepDiff(map[string]any(s.initial[storyID]), map[string]any(current))
	if diff == deeplyEqual {
		return csf.Args{}, nil
	}
	m, _ := asObject(diff)
	return csf.Args(m), nil
}

// ResetOnImplementationChange reseeds a story whose initial args changed,
// for example after a hot reload, and re-applies the user's delta on top
// of the new initial args.
func (s *ArgsStore) ResetOnImplementationChange(story *Story, previousInitial csf.Args) error {
	s.mu.Lock()
	current, ok := s.args[story.ID]
	if !ok {
		s.mu.Unlock()
		s.SetInitial(story.ID, story.InitialArgs)
		return nil
	}
	var delta csf.Args
	if d := deepDiff(map[string]any(previousInitial), map[string]any(current)); d != deeplyEqual {
		m, _ := asObject(d)
		delta = csf.Args(m)
	}
	s.initial[story.ID] = Clone(story.InitialArgs)
	s.args[story.ID] = Clone(story.InitialArgs)
	s.mu.Unlock()

	if len(delta) == 0 {
		return nil
	}
	return s.updateFromDelta(story, delta)
}
