package store

import (
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/storybook/logging"
	"github.com/grovetools/storybook/pkg/csf"
)

// GlobalsStore holds the globals shared by every story.
type GlobalsStore struct {
	mu      sync.RWMutex
	allowed map[string]bool
	initial csf.Globals
	globals csf.Globals
	logger  *logrus.Entry
}

// NewGlobalsStore seeds the store from explicit globals and the defaults
// of the declared global types. Explicit values win over defaults.
func NewGlobalsStore(globals csf.Globals, globalTypes csf.GlobalTypes) *GlobalsStore {
	s := &GlobalsStore{logger: logging.NewLogger("preview")}
	s.Set(globals, globalTypes)
	return s
}

// Set re-seeds the store after the project annotations changed. Values the
// user changed are kept when their key is still declared.
func (s *GlobalsStore) Set(globals csf.Globals, globalTypes csf.GlobalTypes) {
	s.mu.Lock()
	delta := csf.Globals{}
	for k, v := range s.globals {
		if initial, ok := s.initial[k]; !ok || !reflect.DeepEqual(initial, v) {
			delta[k] = v
		}
	}

	s.allowed = make(map[string]bool, len(globals)+len(globalTypes))
	initial := csf.Globals{}
	for name, gt := range globalTypes {
		s.allowed[name] = true
		if gt.DefaultValue != nil {
			initial[name] = gt.DefaultValue
		}
	}
	for name, value := range globals {
		s.allowed[name] = true
		initial[name] = value
	}
	s.initial = Clone(initial)
	s.globals = Clone(initial)
	for k, v := range delta {
		if s.allowed[k] {
			s.globals[k] = v
		}
	}
	s.mu.Unlock()
}

// Get returns a copy of the current globals.
func (s *GlobalsStore) Get() csf.Globals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Clone(s.globals)
}

// Initial returns a copy of the globals the store was seeded with.
func (s *GlobalsStore) Initial() csf.Globals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Clone(s.initial)
}

// Update shallow-merges values into the current globals.
func (s *GlobalsStore) Update(values csf.Globals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(csf.Globals, len(s.globals)+len(values))
	for k, v := range s.globals {
		next[k] = v
	}
	for k, v := range Clone(values) {
		next[k] = v
	}
	s.globals = next
}

// UpdateFromPersisted applies globals from the URL, ignoring any that are
// not declared.
func (s *GlobalsStore) UpdateFromPersisted(persisted csf.Globals) {
	s.mu.RLock()
	allowed := csf.Globals{}
	for k, v := range persisted {
		if s.allowed[k] {
			allowed[k] = v
		} else {
			s.logger.Warnf("Attempted to set a global (%s) that is not defined in initial globals or globalTypes", k)
		}
	}
	s.mu.RUnlock()
	s.Update(allowed)
}
