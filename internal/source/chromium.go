package source

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	appLog "gdqnow/internal/log"
)

// ChromiumOptions configures a ChromiumFetcher.
type ChromiumOptions struct {
	URL string
	// WaitSelector is polled until it matches before the DOM is read,
	// typically the row selector of the schedule table.
	WaitSelector string
	UserAgent    string
	Timeout      time.Duration
}

// ChromiumFetcher loads the page in headless Chromium and returns the
// rendered DOM. Use it when the schedule table is built by script.
type ChromiumFetcher struct {
	opts ChromiumOptions
}

func NewChromiumFetcher(opts ChromiumOptions) *ChromiumFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &ChromiumFetcher{opts: opts}
}

// Fetch navigates to the page, waits for WaitSelector and returns the
// outer HTML of the document.
func (f *ChromiumFetcher) Fetch(parentCtx context.Context) (string, error) {
	if f.opts.URL == "" {
		return "", ErrEmptyURL
	}

	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if f.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(f.opts.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer timeoutCancel()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(f.opts.URL),
	}
	if f.opts.WaitSelector != "" {
		tasks = append(tasks, chromedp.WaitReady(f.opts.WaitSelector, chromedp.ByQuery))
	}
	tasks = append(tasks, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	appLog.Debug("schedule chromium fetch start", "url", redactURL(f.opts.URL))
	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", fmt.Errorf("source: chromedp run failed: %w", err)
	}
	return html, nil
}
