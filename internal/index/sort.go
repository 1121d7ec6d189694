package index

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/tidwall/gjson"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/grovetools/storybook/errors"
)

// SortPath is where the sort directive lives in the preview annotations.
const SortPath = "parameters.options.storySort"

const (
	SortConfigure    = "configure"
	SortAlphabetical = "alphabetical"
)

var titleSeparator = regexp.MustCompile(`\s*/\s*`)

// SortDirective is the object form of storySort.
type SortDirective struct {
	Method       string `json:"method"`
	Order        []any  `json:"order"`
	IncludeNames bool   `json:"includeNames"`
	Locales      string `json:"locales"`
}

// Sorter orders index entries.
type Sorter interface {
	Sort(entries []*IndexEntry) error
}

// LoadSortDirective reads storySort from a preview annotations file. It
// returns nil when the file or the directive is absent.
func LoadSortDirective(path string) (Sorter, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidSort, fmt.Sprintf("failed to read %s", path))
	}
	return ParseSortDirective(data)
}

// ParseSortDirective reads storySort from preview annotations JSON.
func ParseSortDirective(annotations []byte) (Sorter, error) {
	if len(annotations) > 0 && !gjson.ValidBytes(annotations) {
		return nil, errors.New(errors.ErrCodeInvalidSort, "preview annotations are not valid JSON")
	}
	result := gjson.GetBytes(annotations, SortPath)
	switch {
	case !result.Exists() || result.Type == gjson.Null:
		return nil, nil
	case result.Type == gjson.String:
		return NewExprSorter(result.String())
	case result.IsObject():
		var d SortDirective
		if err := json.Unmarshal([]byte(result.Raw), &d); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidSort, "invalid storySort object")
		}
		if d.Method == "" {
			d.Method = SortConfigure
		}
		if d.Method != SortConfigure && d.Method != SortAlphabetical {
			return nil, errors.New(errors.ErrCodeInvalidSort, fmt.Sprintf("unknown storySort method '%s'", d.Method))
		}
		return &d, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidSort,
			fmt.Sprintf("storySort must be an object or an expression, got %s", result.Type))
	}
}

// Sort implements Sorter. Entries the directive does not distinguish keep
// their import order.
func (d *SortDirective) Sort(entries []*IndexEntry) error {
	var collator *collate.Collator
	if d.Method == SortAlphabetical {
		tag := language.Und
		if d.Locales != "" {
			if t, err := language.Parse(d.Locales); err == nil {
				tag = t
			}
		}
		collator = collate.New(tag, collate.Numeric, collate.IgnoreCase)
	}
	slices.SortStableFunc(entries, func(a, b *IndexEntry) int {
		return d.compare(a, b, collator)
	})
	return nil
}

func (d *SortDirective) compare(a, b *IndexEntry, collator *collate.Collator) int {
	if a.Title == b.Title && !d.IncludeNames {
		return 0
	}
	partsA := titleSeparator.Split(strings.TrimSpace(a.Title), -1)
	partsB := titleSeparator.Split(strings.TrimSpace(b.Title), -1)
	if d.IncludeNames {
		partsA = append(partsA, a.Name)
		partsB = append(partsB, b.Name)
	}

	order := d.Order
	for depth := 0; depth < len(partsA) || depth < len(partsB); depth++ {
		if depth >= len(partsA) {
			return -1
		}
		if depth >= len(partsB) {
			return 1
		}
		nameA, nameB := partsA[depth], partsB[depth]
		if nameA != nameB {
			indexA, indexB := indexOf(order, nameA), indexOf(order, nameB)
			if indexA != -1 || indexB != -1 {
				wildcard := indexOf(order, "*")
				if indexA == -1 {
					indexA = len(order)
					if wildcard != -1 {
						indexA = wildcard
					}
				}
				if indexB == -1 {
					indexB = len(order)
					if wildcard != -1 {
						indexB = wildcard
					}
				}
				return indexA - indexB
			}
			if collator == nil {
				return 0
			}
			return collator.CompareString(nameA, nameB)
		}

		i := indexOf(order, nameA)
		if i == -1 {
			i = indexOf(order, "*")
		}
		var next []any
		if i != -1 && i+1 < len(order) {
			next, _ = order[i+1].([]any)
		}
		order = next
	}
	return 0
}

func indexOf(order []any, name string) int {
	for i, v := range order {
		if s, ok := v.(string); ok && s == name {
			return i
		}
	}
	return -1
}

// ExprSorter compares entries with a user expression. The expression sees
// a and b as [id, story] pairs and returns a number (negative when a comes
// first) or a boolean (true when a comes first).
type ExprSorter struct {
	source  string
	program *vm.Program
}

// NewExprSorter compiles a comparison expression.
func NewExprSorter(source string) (*ExprSorter, error) {
	program, err := expr.Compile(source, expr.Env(sortEnv(&IndexEntry{}, &IndexEntry{})))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidSort, "failed to compile storySort expression").
			WithDetail("expression", source)
	}
	return &ExprSorter{source: source, program: program}, nil
}

// Sort implements Sorter. The first evaluation error aborts the sort.
func (s *ExprSorter) Sort(entries []*IndexEntry) error {
	var firstErr error
	slices.SortStableFunc(entries, func(a, b *IndexEntry) int {
		if firstErr != nil {
			return 0
		}
		c, err := s.compare(a, b)
		if err != nil {
			firstErr = err
			return 0
		}
		return c
	})
	return firstErr
}

func (s *ExprSorter) compare(a, b *IndexEntry) (int, error) {
	out, err := expr.Run(s.program, sortEnv(a, b))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInvalidSort, "storySort expression failed").
			WithDetail("expression", s.source)
	}
	switch v := out.(type) {
	case bool:
		if v {
			return -1, nil
		}
		// "a before b" is false: b may still come before a, or they tie.
		rev, err := expr.Run(s.program, sortEnv(b, a))
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeInvalidSort, "storySort expression failed")
		}
		if r, _ := rev.(bool); r {
			return 1, nil
		}
		return 0, nil
	case int:
		return sign(float64(v)), nil
	case int64:
		return sign(float64(v)), nil
	case float64:
		return sign(v), nil
	default:
		return 0, errors.New(errors.ErrCodeInvalidSort,
			fmt.Sprintf("storySort expression returned %T, want a number or a boolean", out)).
			WithDetail("expression", s.source)
	}
}

func sign(f float64) int {
	switch {
	case f < 0:
		return -1
	case f > 0:
		return 1
	}
	return 0
}

func sortEnv(a, b *IndexEntry) map[string]any {
	return map[string]any{
		"a": pair(a),
		"b": pair(b),
	}
}

func pair(e *IndexEntry) []any {
	return []any{e.ID, map[string]any{
		"id":         e.ID,
		"title":      e.Title,
		"name":       e.Name,
		"importPath": e.ImportPath,
	}}
}
