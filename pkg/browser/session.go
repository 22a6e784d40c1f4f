// Package browser provides a shared headless Chrome session for pages that
// only render in a real browser.
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Options configures a Session.
type Options struct {
	// Headful shows the browser window, for debugging.
	Headful bool
	// ExecPath overrides Chrome discovery.
	ExecPath  string
	UserAgent string
	// PageTimeout bounds one navigation.
	PageTimeout time.Duration
	// Settle is how long to wait after the page is ready for scripts to
	// finish rendering.
	Settle time.Duration
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.PageTimeout <= 0 {
		o.PageTimeout = 60 * time.Second
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	return o
}

func (o Options) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !o.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(o.UserAgent),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}

// Session is one browser process shared by many tabs. It is safe for
// concurrent use; each call opens its own tab.
type Session struct {
	opts Options

	browserCtx context.Context
	cancel     func()
	closeOnce  sync.Once
}

// NewSession starts Chrome. The browser lives until Close, independent of
// ctx.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, eris.Wrap(err, "browser: start chrome")
	}

	return &Session{
		opts:       opts,
		browserCtx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}, nil
}

// HTML navigates to url in a new tab and returns the rendered document.
func (s *Session) HTML(ctx context.Context, url string) (string, error) {
	var html string
	err := s.run(ctx, url, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", err
	}
	return html, nil
}

// Text navigates to url in a new tab and returns the body's visible text.
func (s *Session) Text(ctx context.Context, url string) (string, error) {
	var text string
	err := s.run(ctx, url, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	if err != nil {
		return "", err
	}
	return text, nil
}

func (s *Session) run(ctx context.Context, url string, capture chromedp.Action) error {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.opts.PageTimeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if s.opts.Settle > 0 {
		actions = append(actions, chromedp.Sleep(s.opts.Settle))
	}
	actions = append(actions, capture)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return eris.Wrapf(ctx.Err(), "browser: render %s", url)
		}
		return eris.Wrapf(err, "browser: render %s", url)
	}
	return nil
}

// Close shuts the browser down.
func (s *Session) Close() {
	s.closeOnce.Do(s.cancel)
}
