package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathMatcher_Defaults(t *testing.T) {
	m := NewPathMatcher(nil)
	tests := []struct {
		url      string
		excluded bool
	}{
		{"https://www.test.co.jp/news/2024/0401.html", false},
		{"https://www.test.co.jp/", false},
		{"https://www.test.co.jp/ir/pdf/20240401.PDF", true},
		{"https://www.test.co.jp/files/release.xlsx", true},
		{"https://www.test.co.jp/img/logo.png", true},
		{"ftp://files.test.co.jp/a.html", true},
		{"::not a url", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.excluded, m.IsExcluded(tt.url))
		})
	}
}

func TestPathMatcher_CustomPatterns(t *testing.T) {
	m := NewPathMatcher([]string{"/Recruit/*", "/sitemap.xml"})
	assert.Equal(t, []string{"/recruit/*", "/sitemap.xml"}, m.Patterns())

	assert.True(t, m.IsExcluded("https://a.co.jp/recruit"))
	assert.True(t, m.IsExcluded("https://a.co.jp/recruit/2025/new"))
	assert.True(t, m.IsExcluded("https://a.co.jp/sitemap.xml"))
	assert.False(t, m.IsExcluded("https://a.co.jp/recruiting"))
	assert.False(t, m.IsExcluded("https://a.co.jp/news/a.pdf"))
}
