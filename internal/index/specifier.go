package index

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/storybook/config"
	"github.com/grovetools/storybook/errors"
)

// skippedDirs are never descended into while scanning for story files.
var skippedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
}

// Specifier says where story files live: a directory, a glob relative to
// it, and an optional prefix for every title found there.
type Specifier struct {
	Directory   string
	Files       string
	TitlePrefix string

	matcher *patternmatcher.PatternMatcher
}

// NewSpecifier compiles a specifier. directory must be absolute.
func NewSpecifier(directory, files, titlePrefix string) (*Specifier, error) {
	if !filepath.IsAbs(directory) {
		return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("specifier directory '%s' is not absolute", directory))
	}
	if files == "" {
		files = "**/*.stories.*"
	}
	matcher, err := patternmatcher.New(expandGlob(files))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("invalid stories glob '%s'", files))
	}
	return &Specifier{
		Directory:   filepath.Clean(directory),
		Files:       files,
		TitlePrefix: titlePrefix,
		matcher:     matcher,
	}, nil
}

// SpecifiersFromConfig resolves the configured stories entries against the
// project root.
func SpecifiersFromConfig(cfg *config.Config) ([]*Specifier, error) {
	specs := make([]*Specifier, 0, len(cfg.Stories))
	for _, entry := range cfg.Stories {
		spec, err := NewSpecifier(cfg.Resolve(entry.Directory), entry.Files, entry.TitlePrefix)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// String is used in log fields.
func (s *Specifier) String() string {
	return filepath.ToSlash(filepath.Join(s.Directory, s.Files))
}

// Matches reports whether absPath is one of this specifier's story files.
func (s *Specifier) Matches(absPath string) bool {
	rel, err := filepath.Rel(s.Directory, absPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if skippedDirs[part] {
			return false
		}
	}
	ok, err := s.matcher.MatchesOrParentMatches(rel)
	return err == nil && ok
}

// Scan lists every file under the specifier directory that matches the
// glob, sorted. A missing directory yields no files.
func (s *Specifier) Scan(logger *logrus.Entry) ([]string, error) {
	if _, err := os.Stat(s.Directory); os.IsNotExist(err) {
		if logger != nil {
			logger.WithField("directory", s.Directory).Warn("Stories directory does not exist")
		}
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(s.Directory, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != s.Directory && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if s.Matches(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexScanFailed, fmt.Sprintf("failed to scan %s", s.Directory))
	}
	sort.Strings(files)
	return files, nil
}

// expandGlob rewrites brace sets "{a,b}" and extglob groups "@(a|b)" into
// plain alternatives, which patternmatcher does not understand.
func expandGlob(glob string) []string {
	start, end, sep := -1, -1, byte(0)
	for i := 0; i < len(glob); i++ {
		switch {
		case glob[i] == '{':
			start, sep = i, ','
		case glob[i] == '(' && i > 0 && strings.IndexByte("@+?*!", glob[i-1]) >= 0:
			start, sep = i-1, '|'
		default:
			continue
		}
		open := glob[i]
		closer := byte('}')
		if open == '(' {
			closer = ')'
		}
		depth := 0
		for j := i; j < len(glob); j++ {
			if glob[j] == open {
				depth++
			} else if glob[j] == closer {
				depth--
				if depth == 0 {
					end = j
					break
				}
			}
		}
		break
	}
	if start < 0 || end < 0 {
		return []string{glob}
	}

	bodyStart := start + 1
	if glob[start] != '{' {
		bodyStart = start + 2
	}
	var out []string
	for _, alt := range splitTopLevel(glob[bodyStart:end], sep) {
		out = append(out, expandGlob(glob[:start]+alt+glob[end+1:])...)
	}
	return out
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{', '(':
			depth++
		case '}', ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}
