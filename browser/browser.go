// Package browser renders pages in headless Chrome for sites that only answer real browsers.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/docutag/linkaudit"
)

// minRenderedHTML is the smallest document accepted as a real page rather than an error shell
const minRenderedHTML = 500

// Config contains browser configuration
type Config struct {
	Timeout   time.Duration // Per-navigation timeout
	WaitTime  time.Duration // Extra settle time after the body is ready
	UserAgent string
}

// DefaultConfig returns default browser configuration
func DefaultConfig() Config {
	return Config{
		Timeout:   20 * time.Second,
		WaitTime:  2 * time.Second,
		UserAgent: linkaudit.DefaultUserAgent,
	}
}

// Browser is a shared headless Chrome instance. Each navigation gets its own tab.
type Browser struct {
	config        Config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	mu            sync.Mutex
}

// New starts a headless browser
func New(config Config) (*Browser, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = linkaudit.DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
		chromedp.UserAgent(config.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser now so a missing Chrome fails here rather than on the first link.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Browser{
		config:        config,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close shuts the browser down
func (b *Browser) Close() {
	b.browserCancel()
	b.allocCancel()
}

// page is a rendered document and the HTTP status Chrome received for it.
// Status is zero when no document response was seen.
type page struct {
	html   string
	status int
}

// render navigates a new tab to targetURL and returns the document HTML
func (b *Browser) render(ctx context.Context, targetURL string) (page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	defer cancel()

	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, b.config.Timeout)
	defer timeoutCancel()

	// Stop the tab when the caller gives up.
	stop := context.AfterFunc(ctx, timeoutCancel)
	defer stop()

	// The last main-frame document response wins so redirects report the final page.
	// The main frame shares its ID with the tab target; iframes are ignored.
	var statusMu sync.Mutex
	status := 0
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil && string(e.FrameID) == string(c.Target.TargetID) {
			statusMu.Lock()
			status = int(e.Response.Status)
			statusMu.Unlock()
		}
	})

	tasks := []chromedp.Action{
		network.Enable(),
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
	}
	if b.config.WaitTime > 0 {
		tasks = append(tasks, chromedp.Sleep(b.config.WaitTime))
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return page{}, fmt.Errorf("navigation failed: %w", err)
	}

	var pageHTML string
	if err := chromedp.Run(timeoutCtx, chromedp.OuterHTML("html", &pageHTML)); err != nil {
		return page{}, fmt.Errorf("error getting HTML: %w", err)
	}

	statusMu.Lock()
	defer statusMu.Unlock()
	return page{html: pageHTML, status: status}, nil
}

// Name implements linkaudit.Probe
func (b *Browser) Name() string { return "browser" }

// Probe implements linkaudit.Probe. A substantive rendered document counts as decisive;
// anything else falls through to the HTTP probes.
func (b *Browser) Probe(ctx context.Context, targetURL string) linkaudit.ProbeResult {
	p, err := b.render(ctx, targetURL)
	if err != nil {
		return linkaudit.ProbeResult{Err: err}
	}
	return probeResult(p)
}

// probeResult classifies a rendered page. An error status is reported as a plain
// status code, which is not decisive, so styled 404 pages are not taken as valid.
func probeResult(p page) linkaudit.ProbeResult {
	if p.status >= 400 {
		return linkaudit.ProbeResult{StatusCode: p.status}
	}
	if len(strings.TrimSpace(p.html)) <= minRenderedHTML {
		return linkaudit.ProbeResult{Err: fmt.Errorf("rendered page too small (%d bytes)", len(p.html))}
	}
	return linkaudit.ProbeResult{Rendered: true}
}

// Fetch implements linkaudit.Fetcher with the rendered document
func (b *Browser) Fetch(ctx context.Context, targetURL string) (string, error) {
	p, err := b.render(ctx, strings.TrimSpace(targetURL))
	if err != nil {
		return "", &linkaudit.FetchError{URL: targetURL, Err: err}
	}
	if p.status >= 400 {
		return "", &linkaudit.FetchError{URL: targetURL, StatusCode: p.status}
	}
	return p.html, nil
}

var (
	_ linkaudit.Probe   = (*Browser)(nil)
	_ linkaudit.Fetcher = (*Browser)(nil)
)
