package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns skip documents the text extractors cannot read.
var defaultExcludePatterns = []string{
	"*.pdf",
	"*.zip",
	"*.xls",
	"*.xlsx",
	"*.doc",
	"*.docx",
	"*.ppt",
	"*.pptx",
	"*.jpg",
	"*.png",
}

// PathMatcher filters URLs on glob-style path patterns. A pattern without
// a leading slash matches the last path segment ("*.pdf"); one with a
// leading slash matches the whole path, and "/dir/*" also matches
// everything below /dir.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher. Falls back to the default patterns
// if none are provided.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &PathMatcher{patterns: lowered}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded reports whether a URL matches any pattern. Unparseable and
// non-HTTP URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSegmented(pattern, p) {
			return true
		}
	}
	return false
}

func matchSegmented(pattern, urlPath string) bool {
	if !strings.HasPrefix(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(urlPath))
		return ok
	}
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
