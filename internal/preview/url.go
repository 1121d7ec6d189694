package preview

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/storybook/pkg/csf"
)

// View modes.
const (
	ViewModeStory = "story"
	ViewModeDocs  = "docs"
)

// AnyStory selects the first story of the index.
const AnyStory = "*"

// Selection is the story currently shown.
type Selection struct {
	StoryID  string `json:"storyId"`
	ViewMode string `json:"viewMode"`
}

// SelectionSpecifier is what the navigation context asks for. StoryID may
// be AnyStory.
type SelectionSpecifier struct {
	StoryID  string
	ViewMode string
	Args     csf.Args
	Globals  csf.Globals
}

var (
	legacyPath = regexp.MustCompile(`^/(story|docs)/(.+)$`)
	safeValue  = regexp.MustCompile(`^[a-zA-Z0-9 _\-.,#%()!]*$`)
	safeKey    = regexp.MustCompile(`^[a-zA-Z0-9_\-]+((\.[a-zA-Z0-9_\-]+)|(\[\d+\]))*$`)
	colorValue = regexp.MustCompile(`^!(hex|rgba?|hsla?)\((.*)\)$`)
	pathToken  = regexp.MustCompile(`\.?([a-zA-Z0-9_\-]+)|\[(\d+)\]`)
)

// UrlStore keeps the selection in sync with the query string.
type UrlStore struct {
	mu        sync.RWMutex
	query     url.Values
	specifier *SelectionSpecifier
	selection *Selection
}

// NewUrlStore parses the initial query string.
func NewUrlStore(query url.Values, logger *logrus.Entry) *UrlStore {
	if query == nil {
		query = url.Values{}
	}
	return &UrlStore{
		query:     query,
		specifier: parseSpecifier(query, logger),
	}
}

// SelectionSpecifier returns what the initial URL asked for.
func (u *UrlStore) SelectionSpecifier() *SelectionSpecifier {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.specifier
}

// Selection returns the current selection, or nil before one was made.
func (u *UrlStore) Selection() *Selection {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.selection == nil {
		return nil
	}
	sel := *u.selection
	return &sel
}

// SetSelection records a new selection and reflects it into the query.
func (u *UrlStore) SetSelection(sel Selection) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.selection = &sel
	u.query.Del("path")
	u.query.Set("id", sel.StoryID)
	u.query.Set("viewMode", sel.ViewMode)
}

// Location returns the query string for the current selection.
func (u *UrlStore) Location() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return "?" + u.query.Encode()
}

func parseSpecifier(q url.Values, logger *logrus.Entry) *SelectionSpecifier {
	spec := &SelectionSpecifier{StoryID: AnyStory, ViewMode: ViewModeStory}
	if m := legacyPath.FindStringSubmatch(q.Get("path")); m != nil {
		spec.ViewMode = m[1]
		spec.StoryID = m[2]
	}
	if id := q.Get("id"); id != "" {
		spec.StoryID = id
		if vm := q.Get("viewMode"); vm == ViewModeDocs || vm == ViewModeStory {
			spec.ViewMode = vm
		}
	}
	if raw := q.Get("args"); raw != "" {
		spec.Args = csf.Args(ParseArgsParam(raw, logger))
	}
	if raw := q.Get("globals"); raw != "" {
		spec.Globals = csf.Globals(ParseArgsParam(raw, logger))
	}
	return spec
}

// ParseArgsParam decodes the "k:v;k2:v2" form used for args and globals in
// the URL. Keys may address nested values ("a.b", "a[2]"); values prefixed
// with "!" carry null, undefined, booleans and colours. Unsafe pairs are
// dropped.
func ParseArgsParam(raw string, logger *logrus.Entry) map[string]any {
	out := map[string]any{}
	var omitted bool
	for _, pair := range strings.Split(raw, ";") {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, ":")
		if !ok || !safeKey.MatchString(key) || !safeValue.MatchString(value) {
			omitted = true
			continue
		}
		setPath(out, tokens(key), decodeValue(value))
	}
	if omitted && logger != nil {
		logger.Warn("Omitted potentially unsafe URL args")
	}
	return out
}

func decodeValue(v string) any {
	switch v {
	case "!null":
		return nil
	case "!undefined":
		return csf.Undefined
	case "!true":
		return true
	case "!false":
		return false
	}
	if m := colorValue.FindStringSubmatch(v); m != nil {
		if m[1] == "hex" {
			return "#" + m[2]
		}
		return m[1] + "(" + m[2] + ")"
	}
	return v
}

type token struct {
	key   string
	index int
}

func tokens(key string) []token {
	var out []token
	for _, m := range pathToken.FindAllStringSubmatch(key, -1) {
		if m[2] != "" {
			i, _ := strconv.Atoi(m[2])
			out = append(out, token{index: i})
			continue
		}
		out = append(out, token{key: m[1], index: -1})
	}
	return out
}

// setPath stores value at path below container, creating maps for keys
// and sparse arrays (holes are csf.Undefined) for indexes.
func setPath(container map[string]any, path []token, value any) {
	head := path[0]
	if len(path) == 1 {
		container[head.key] = value
		return
	}
	container[head.key] = setChild(container[head.key], path[1:], value)
}

func setChild(current any, path []token, value any) any {
	head := path[0]
	if head.index >= 0 {
		arr, _ := current.([]any)
		for len(arr) <= head.index {
			arr = append(arr, csf.Undefined)
		}
		if len(path) == 1 {
			arr[head.index] = value
		} else {
			arr[head.index] = setChild(arr[head.index], path[1:], value)
		}
		return arr
	}
	obj, ok := current.(map[string]any)
	if !ok {
		obj = map[string]any{}
	}
	if len(path) == 1 {
		obj[head.key] = value
	} else {
		obj[head.key] = setChild(obj[head.key], path[1:], value)
	}
	return obj
}
