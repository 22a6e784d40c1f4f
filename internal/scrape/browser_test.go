package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	text string
	err  error
}

func (f fakeRenderer) Text(context.Context, string) (string, error) { return f.text, f.err }

func TestBrowserScraper(t *testing.T) {
	tests := []struct {
		name     string
		renderer fakeRenderer
		want     string
		wantErr  string
	}{
		{"renders text", fakeRenderer{text: "  お知らせ \n\n 新社名  決定 "}, "お知らせ\n新社名 決定", ""},
		{"render error", fakeRenderer{err: errors.New("chrome not found")}, "", "chrome not found"},
		{"blank page", fakeRenderer{text: " \n "}, "", "empty page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewBrowserScraper(tt.renderer).Scrape(context.Background(), "https://a.co.jp/")
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Page.Text)
			assert.Equal(t, "browser", res.Source)
		})
	}
}
