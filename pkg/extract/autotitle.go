package extract

import (
	"path"
	"path/filepath"
	"strings"
)

// AutoTitle derives a title from a file's location below a specifier
// directory. It returns "" when the file is outside directory.
//
//	AutoTitle("/p/src/components/Button.stories.tsx", "/p/src", "Design") == "Design/components/Button"
func AutoTitle(fileName, directory, titlePrefix string) string {
	file := filepath.ToSlash(filepath.Clean(fileName))
	dir := filepath.ToSlash(filepath.Clean(directory))

	var suffix string
	switch {
	case dir == ".":
		suffix = file
	case strings.HasPrefix(file, dir+"/"):
		suffix = strings.TrimPrefix(file, dir+"/")
	default:
		return ""
	}

	joined := strings.TrimPrefix(path.Join("/", titlePrefix, suffix), "/")
	parts := strings.Split(joined, "/")

	last := parts[len(parts)-1]
	if i := strings.Index(last, "."); i > 0 {
		last = last[:i]
	}
	parts[len(parts)-1] = last

	// "Button/Button" and "Button/index" both collapse to "Button"
	if n := len(parts); n > 1 && (parts[n-1] == parts[n-2] || strings.EqualFold(parts[n-1], "index")) {
		parts = parts[:n-1]
	}
	return strings.Join(parts, "/")
}

// MakeTitle returns the title function the generator hands to extractors
// for one file: a written title gets the prefix, a missing one is derived
// from the path.
func MakeTitle(fileName, directory, titlePrefix string) func(string) string {
	return func(userTitle string) string {
		if userTitle == "" {
			return AutoTitle(fileName, directory, titlePrefix)
		}
		if titlePrefix == "" {
			return userTitle
		}
		return strings.TrimPrefix(path.Join("/", titlePrefix, userTitle), "/")
	}
}
