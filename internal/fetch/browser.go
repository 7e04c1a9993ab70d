// Package fetch - browser.go renders pages in headless Chrome for sites
// that only produce their links after JavaScript runs.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultSettleDelay is how long a rendered page is given to finish
// client-side work before its HTML is captured.
const DefaultSettleDelay = time.Second

// BrowserFetcher fetches pages through one shared headless browser, one tab
// per request. Requires Chrome/Chromium on the host.
type BrowserFetcher struct {
	browserCtx context.Context
	cancel     context.CancelFunc
	timeout    time.Duration
	settle     time.Duration
}

// NewBrowserFetcher starts a headless browser. Close releases it.
func NewBrowserFetcher(ctx context.Context, opts *Options) (*BrowserFetcher, error) {
	timeout := DefaultTimeout
	userAgent := DefaultUserAgent
	if opts != nil {
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		if opts.UserAgent != "" {
			userAgent = opts.UserAgent
		}
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(userAgent),
		)...,
	)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run launches the browser so later tabs share it.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, &Error{Kind: KindNetwork, Message: "failed to start browser", Cause: err}
	}

	return &BrowserFetcher{
		browserCtx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		timeout: timeout,
		settle:  DefaultSettleDelay,
	}, nil
}

// Fetch renders urlStr in a new tab and returns the outer HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, urlStr string) (*Result, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, &Error{URL: urlStr, Kind: KindNetwork, Message: "request canceled", Cause: ctx.Err()}
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(tabCtx.Err(), context.DeadlineExceeded):
			return nil, &Error{URL: urlStr, Kind: KindTimeout, Message: "browser rendering timed out", Cause: err}
		default:
			return nil, &Error{URL: urlStr, Kind: KindNetwork, Message: "browser rendering failed", Cause: err}
		}
	}

	return &Result{
		URL:         urlStr,
		Body:        html,
		ContentType: "text/html",
		Encoding:    "utf-8",
	}, nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() {
	b.cancel()
}
