package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockDenied     BlockType = "denied"
)

var deniedMarkers = []string{
	"アクセスが拒否されました",
	"アクセスできません",
	"403 forbidden",
	"access denied",
}

// DetectBlock checks an HTTP response for signs of anti-bot protection.
// body should be the decoded page.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" ||
			resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "captcha") || strings.Contains(lower, "画像認証") {
		return true, BlockCaptcha
	}

	// Small pages only: a long article may quote these phrases.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && (strings.Contains(lower, "javascript") ||
			strings.Contains(lower, "有効にしてください")) {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `http-equiv="refresh"`) {
			return true, BlockJSShell
		}
		for _, m := range deniedMarkers {
			if strings.Contains(lower, m) {
				return true, BlockDenied
			}
		}
	}

	return false, BlockNone
}
