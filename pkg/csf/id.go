package csf

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/util/sanitize"
)

// Sanitize lower-cases s and replaces every run of characters outside
// [a-z0-9] with a single dash.
func Sanitize(s string) string {
	return sanitize.ForID(s)
}

func sanitizeSafe(s, part string) (string, error) {
	sanitized := Sanitize(s)
	if sanitized == "" {
		return "", errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("invalid %s '%s', must include alphanumeric characters", part, s)).
			WithDetail(part, s)
	}
	return sanitized, nil
}

// ToID builds a story id of the form "<kind>--<name>".
func ToID(kind, name string) (string, error) {
	k, err := sanitizeSafe(kind, "kind")
	if err != nil {
		return "", err
	}
	n, err := sanitizeSafe(name, "name")
	if err != nil {
		return "", err
	}
	return k + "--" + n, nil
}

// StoryNameFromExport converts an export name into a display name:
// "someExportName" becomes "Some Export Name".
func StoryNameFromExport(key string) string {
	words := splitWords(key)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// splitWords breaks an identifier on separators, lower-to-upper transitions,
// letter/digit transitions and the end of an acronym ("HTMLParser" → HTML, Parser).
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	rs := []rune(s)
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(r):
				flush()
			case unicode.IsDigit(prev) != unicode.IsDigit(r):
				flush()
			case unicode.IsUpper(prev) && unicode.IsUpper(r) && i+1 < len(rs) && unicode.IsLower(rs[i+1]):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// IsExportStory reports whether a named export is a story. include and
// exclude hold exact export names or "/regex/" patterns; a nil list means
// the filter is absent.
func IsExportStory(key string, include, exclude []string) bool {
	if key == "__esModule" {
		return false
	}
	if include != nil && !matchesAny(key, include) {
		return false
	}
	if exclude != nil && matchesAny(key, exclude) {
		return false
	}
	return true
}

func matchesAny(key string, patterns []string) bool {
	for _, p := range patterns {
		if len(p) >= 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
			re, err := regexp.Compile(p[1 : len(p)-1])
			if err == nil && re.MatchString(key) {
				return true
			}
			continue
		}
		if p == key {
			return true
		}
	}
	return false
}
