package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// The helpers below scan JavaScript/TypeScript source just far enough to
// read object literals and string values. They never evaluate code.

// blankComments replaces comments with spaces so offsets stay valid.
func blankComments(src string) string {
	out := []byte(src)
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end, err := skipString(src, i)
			if err != nil {
				return string(out)
			}
			i = end - 1
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				out[i] = ' '
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			j := i
			for ; j < len(src); j++ {
				if src[j] == '*' && j+1 < len(src) && src[j+1] == '/' {
					out[j], out[j+1] = ' ', ' '
					j++
					break
				}
				if src[j] != '\n' {
					out[j] = ' '
				}
			}
			i = j
		case c == '/' && regexAllowed(src, i):
			i = skipRegex(src, i) - 1
		}
	}
	return string(out)
}

// regexAllowed reports whether a '/' at i starts a regex literal rather
// than a division, judged by the previous significant character.
func regexAllowed(src string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch src[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case '(', ',', '=', ':', '[', '!', '&', '|', '?', '{', '}', ';':
			return true
		default:
			return false
		}
	}
	return true
}

// skipRegex returns the offset just past the regex literal (and flags) at i.
func skipRegex(src string, i int) int {
	inClass := false
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\n':
			return j
		case '/':
			if inClass {
				continue
			}
			j++
			for j < len(src) && isIdentChar(src[j]) {
				j++
			}
			return j
		}
	}
	return len(src)
}

// skipString returns the offset just past the string literal opening at i.
func skipString(src string, i int) (int, error) {
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case quote:
			return j + 1, nil
		case '\n':
			if quote != '`' {
				return 0, fmt.Errorf("unterminated string at offset %d", i)
			}
		case '$':
			if quote == '`' && j+1 < len(src) && src[j+1] == '{' {
				end, err := matchBalanced(src, j+1)
				if err != nil {
					return 0, err
				}
				j = end - 1
			}
		}
	}
	return 0, fmt.Errorf("unterminated string at offset %d", i)
}

// matchBalanced returns the offset just past the bracket matching the one at i.
func matchBalanced(src string, i int) (int, error) {
	var stack []byte
	for j := i; j < len(src); j++ {
		c := src[j]
		switch c {
		case '\'', '"', '`':
			end, err := skipString(src, j)
			if err != nil {
				return 0, err
			}
			j = end - 1
		case '/':
			if j > i && regexAllowed(src, j) {
				j = skipRegex(src, j) - 1
			}
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '(':
			stack = append(stack, ')')
		case '}', ']', ')':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, fmt.Errorf("unbalanced %q at offset %d", c, j)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return j + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated %q at offset %d", src[i], i)
}

// scanValue reads an object property value starting at i and stops at the
// top-level ',' or the '}' closing the enclosing object.
func scanValue(src string, i int) (string, int, error) {
	for j := i; j < len(src); j++ {
		c := src[j]
		switch c {
		case '\'', '"', '`':
			end, err := skipString(src, j)
			if err != nil {
				return "", 0, err
			}
			j = end - 1
		case '/':
			if regexAllowed(src, j) {
				j = skipRegex(src, j) - 1
			}
		case '{', '[', '(':
			end, err := matchBalanced(src, j)
			if err != nil {
				return "", 0, err
			}
			j = end - 1
		case ',', '}':
			return strings.TrimSpace(src[i:j]), j, nil
		}
	}
	return "", 0, fmt.Errorf("unterminated object value at offset %d", i)
}

type property struct {
	key   string
	value string
}

// parseObject reads the top-level properties of the object literal whose
// '{' is at open. Spread elements are skipped.
func parseObject(src string, open int) ([]property, int, error) {
	var props []property
	j := open + 1
	for {
		j = skipSpace(src, j)
		for j < len(src) && src[j] == ',' {
			j = skipSpace(src, j+1)
		}
		if j >= len(src) {
			return nil, 0, fmt.Errorf("unterminated object at offset %d", open)
		}
		if src[j] == '}' {
			return props, j + 1, nil
		}

		if strings.HasPrefix(src[j:], "...") {
			_, end, err := scanValue(src, j+3)
			if err != nil {
				return nil, 0, err
			}
			j = end
			continue
		}

		var key string
		switch c := src[j]; {
		case c == '\'' || c == '"':
			end, err := skipString(src, j)
			if err != nil {
				return nil, 0, err
			}
			key, _ = unquote(src[j:end])
			j = end
		case c == '[':
			end, err := matchBalanced(src, j)
			if err != nil {
				return nil, 0, err
			}
			key = src[j:end]
			j = end
		case isIdentChar(c):
			start := j
			for j < len(src) && isIdentChar(src[j]) {
				j++
			}
			key = src[start:j]
			// async/get/set method modifiers
			if (key == "async" || key == "get" || key == "set") && j < len(src) && src[j] == ' ' {
				k := skipSpace(src, j)
				if k < len(src) && isIdentChar(src[k]) {
					start = k
					for k < len(src) && isIdentChar(src[k]) {
						k++
					}
					key, j = src[start:k], k
				}
			}
		default:
			return nil, 0, fmt.Errorf("unexpected %q in object at offset %d", c, j)
		}

		j = skipSpace(src, j)
		if j < len(src) && src[j] == '?' {
			j = skipSpace(src, j+1)
		}
		if j < len(src) && src[j] == ':' {
			value, end, err := scanValue(src, j+1)
			if err != nil {
				return nil, 0, err
			}
			props = append(props, property{key: key, value: value})
			j = end
			continue
		}

		// shorthand property or method
		value, end, err := scanValue(src, j)
		if err != nil {
			return nil, 0, err
		}
		if value == "" {
			value = key
		}
		props = append(props, property{key: key, value: value})
		j = end
	}
}

func skipSpace(src string, j int) int {
	for j < len(src) && strings.ContainsRune(" \t\r\n", rune(src[j])) {
		j++
	}
	return j
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// unquote returns the value of a static string literal. Template literals
// with substitutions are not static.
func unquote(lit string) (string, bool) {
	lit = strings.TrimSpace(lit)
	if len(lit) < 2 {
		return "", false
	}
	quote := lit[0]
	if (quote != '\'' && quote != '"' && quote != '`') || lit[len(lit)-1] != quote {
		return "", false
	}
	body := lit[1 : len(lit)-1]
	switch quote {
	case '"':
		s, err := strconv.Unquote(lit)
		return s, err == nil
	case '`':
		if strings.Contains(body, "${") {
			return "", false
		}
		return body, true
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(body[i])
			}
			continue
		}
		b.WriteByte(body[i])
	}
	return b.String(), true
}

// regexLiteral returns "/pattern/" for a regex literal value, dropping flags.
func regexLiteral(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if len(v) < 2 || v[0] != '/' {
		return "", false
	}
	end := skipRegex(v, 0)
	if end != len(v) {
		return "", false
	}
	last := strings.LastIndexByte(v, '/')
	if last <= 0 {
		return "", false
	}
	return v[:last+1], true
}

// stringList reads includeStories/excludeStories: an array of strings and
// regexes, or a single string or regex.
func stringList(v string) []string {
	v = strings.TrimSpace(v)
	if s, ok := unquote(v); ok {
		return []string{s}
	}
	if re, ok := regexLiteral(v); ok {
		return []string{re}
	}
	if !strings.HasPrefix(v, "[") || !strings.HasSuffix(v, "]") {
		return nil
	}

	list := []string{}
	inner := v[1 : len(v)-1]
	// wrap in braces so scanValue sees an enclosing object
	wrapped := inner + "}"
	for j := 0; j < len(inner); {
		item, end, err := scanValue(wrapped, j)
		if err != nil {
			break
		}
		if s, ok := unquote(item); ok {
			list = append(list, s)
		} else if re, ok := regexLiteral(item); ok {
			list = append(list, re)
		}
		j = end + 1
	}
	return list
}
