package clipboard

import (
	"net/url"
	"path/filepath"
	"strings"
)

// ParseFileURIs returns the paths named by text when every non-empty line is
// a file:// URI (the text/uri-list convention used by file managers).
func ParseFileURIs(text string) ([]string, bool) {
	var paths []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Scheme != "file" || u.Path == "" {
			return nil, false
		}
		if u.Host != "" && u.Host != "localhost" {
			return nil, false
		}
		paths = append(paths, filepath.FromSlash(u.Path))
	}
	return paths, len(paths) > 0
}

// FormatFileURIs renders paths as a text/uri-list body
func FormatFileURIs(paths []string) string {
	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
		lines = append(lines, u.String())
	}
	return strings.Join(lines, "\r\n")
}
