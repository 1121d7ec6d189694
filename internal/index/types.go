// Package index discovers story files, extracts their stories, and builds
// the sorted story index served at /stories.json.
package index

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Version is the index wire format version.
const Version = 3

// ExtractedStory is one story as it appears in the index.
type ExtractedStory struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Name       string `json:"name"`
	ImportPath string `json:"importPath"`
}

// V2Parameters are the synthesized parameters of the v2 compatible format.
type V2Parameters struct {
	ID       string `json:"__id"`
	DocsOnly bool   `json:"docsOnly"`
	FileName string `json:"fileName"`
}

// IndexEntry is an ExtractedStory plus the fields only present in v2
// compatibility mode.
type IndexEntry struct {
	ExtractedStory
	Kind       string        `json:"kind,omitempty"`
	Story      string        `json:"story,omitempty"`
	Parameters *V2Parameters `json:"parameters,omitempty"`

	// ExportName is kept for the docs-only heuristic; it is not served.
	ExportName string `json:"-"`
}

// StoryMap holds the stories of one file keyed by id, in file order.
type StoryMap = orderedmap.OrderedMap[string, *IndexEntry]

func newStoryMap() *StoryMap {
	return orderedmap.New[string, *IndexEntry]()
}

// StoryIndex is the served index. Stories iterate in sort order.
type StoryIndex struct {
	V       int       `json:"v"`
	Stories *StoryMap `json:"stories"`
}

// NewStoryIndex returns an empty index.
func NewStoryIndex() *StoryIndex {
	return &StoryIndex{V: Version, Stories: newStoryMap()}
}

// Entry looks up a story by id.
func (idx *StoryIndex) Entry(id string) (*IndexEntry, bool) {
	if idx == nil || idx.Stories == nil {
		return nil, false
	}
	return idx.Stories.Get(id)
}

// First returns the first story in index order.
func (idx *StoryIndex) First() (*IndexEntry, bool) {
	if idx == nil || idx.Stories == nil {
		return nil, false
	}
	if pair := idx.Stories.Oldest(); pair != nil {
		return pair.Value, true
	}
	return nil, false
}

// Entries returns the stories in index order.
func (idx *StoryIndex) Entries() []*IndexEntry {
	if idx == nil || idx.Stories == nil {
		return nil
	}
	out := make([]*IndexEntry, 0, idx.Stories.Len())
	for pair := idx.Stories.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// IDs returns the story ids in index order.
func (idx *StoryIndex) IDs() []string {
	entries := idx.Entries()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
