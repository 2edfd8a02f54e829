// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package render

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/models"
)

// PageCapturer renders an HTML document of the given viewport size to image
// bytes. The production implementation drives a headless browser; tests
// substitute a stub.
type PageCapturer interface {
	Capture(ctx context.Context, html string, width, height int, format string) ([]byte, error)
	Healthy() bool
	Close() error
}

// captureTimeout bounds a single page render.
const captureTimeout = 30 * time.Second

// Browser is the chromedp-backed PageCapturer. One long-lived browser
// process serves all renders; each Capture leases a fresh tab so concurrent
// renders never share page state. A broken browser connection is recreated
// on the next Capture.
type Browser struct {
	mu        sync.Mutex
	allocCtx  context.Context
	allocStop context.CancelFunc
	browser   context.Context
	stop      context.CancelFunc
	closed    bool
}

// NewBrowser constructs the capturer without launching anything; the
// browser process starts lazily on first use.
func NewBrowser() *Browser {
	return &Browser{}
}

// ensureBrowser launches or relaunches the shared browser under the mutex.
func (b *Browser) ensureBrowser() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, models.E(models.KindInternal, "browser is shut down")
	}
	if b.browser != nil && b.browser.Err() == nil {
		return b.browser, nil
	}

	// Drop any dead instance before relaunching.
	b.teardownLocked()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	b.allocCtx, b.allocStop = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browser, b.stop = chromedp.NewContext(b.allocCtx)

	// Run a no-op to force the process launch so failures surface here
	// instead of mid-render.
	if err := chromedp.Run(b.browser); err != nil {
		b.teardownLocked()
		return nil, models.Wrap(models.KindInternal, "launch headless browser", err)
	}
	logging.Info().Msg("Headless browser launched")
	return b.browser, nil
}

func (b *Browser) teardownLocked() {
	if b.stop != nil {
		b.stop()
		b.stop = nil
		b.browser = nil
	}
	if b.allocStop != nil {
		b.allocStop()
		b.allocStop = nil
		b.allocCtx = nil
	}
}

// Healthy reports whether the browser connection is up. It never launches.
func (b *Browser) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.browser != nil && b.browser.Err() == nil
}

// Capture implements PageCapturer: lease a tab, set the viewport, load the
// document, wait for network quiescence, and screenshot a WxH clip.
func (b *Browser) Capture(ctx context.Context, html string, width, height int, format string) ([]byte, error) {
	browserCtx, err := b.ensureBrowser()
	if err != nil {
		return nil, err
	}

	tab, cancel := chromedp.NewContext(browserCtx)
	defer cancel()
	tab, cancelTimeout := context.WithTimeout(tab, captureTimeout)
	defer cancelTimeout()

	capFormat := page.CaptureScreenshotFormatPng
	quality := int64(0)
	if format == models.FormatJPEG {
		capFormat = page.CaptureScreenshotFormatJpeg
		quality = models.JPEGQuality
	}

	dataURL := "data:text/html;charset=utf-8," + url.PathEscape(html)

	var buf []byte
	err = chromedp.Run(tab,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURL),
		// Navigate waits for the load event; fonts and data URIs need no
		// further network round trips with the built-in templates.
		chromedp.ActionFunc(func(ctx context.Context) error {
			shot := page.CaptureScreenshot().
				WithFormat(capFormat).
				WithClip(&page.Viewport{
					X:      0,
					Y:      0,
					Width:  float64(width),
					Height: float64(height),
					Scale:  1,
				})
			if quality > 0 {
				shot = shot.WithQuality(quality)
			}
			var err error
			buf, err = shot.Do(ctx)
			return err
		}),
	)
	if err != nil {
		// A context error on the shared browser means the process died; the
		// next Capture relaunches it.
		if ctxErr := browserCtx.Err(); ctxErr != nil {
			logging.Warn().Err(ctxErr).Msg("Browser connection lost, will relaunch on next render")
		}
		return nil, models.Wrap(models.KindInternal, fmt.Sprintf("capture %dx%d screenshot", width, height), err)
	}
	return buf, nil
}

// Close shuts the browser down. Further Captures fail.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.teardownLocked()
	return nil
}
