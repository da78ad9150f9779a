// Copyright 2025 the varsnap authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package varsnap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoStartURLs is returned when a crawl is started without any seed
	// URLs (neither start URLs nor manual URLs).
	ErrNoStartURLs = errors.New("no start URLs")
	// ErrMissingSelector is returned when a scan or crawl is started
	// without a target selector.
	ErrMissingSelector = errors.New("missing selector")
)

// SitemapFetcher supplies seed URLs for a site. The crawl controller
// consults it unless ManualURLs bypass it. Implementations must be best
// effort; an error only falls the crawl back to its literal start URLs.
type SitemapFetcher interface {
	FetchURLs(ctx context.Context, baseURL string) ([]string, error)
}

// CrawlOptions configures one crawl session.
type CrawlOptions struct {
	// MaxURLs is the hard cap on total pages processed. Default 10.
	MaxURLs int
	// MaxDepth bounds how many processed-page rounds may discover new
	// links: once the processed count reaches MaxDepth, no further links
	// are enqueued, though already-queued URLs still drain up to MaxURLs.
	// Default 2.
	MaxDepth int
	// IncludePatterns keeps a discovered link only when at least one
	// pattern matches it. Empty list keeps everything.
	IncludePatterns []string
	// ExcludePatterns drops a discovered link when any pattern matches it.
	// Include filtering runs first.
	ExcludePatterns []string
	// DelayBetweenPages is courteous pacing between page loads, not a
	// resource limit. Default 1s.
	DelayBetweenPages time.Duration
	// ContinueOnError keeps crawling past per-page failures, recording
	// them in the result. When false, the first page failure aborts the
	// whole crawl. NewDefaultCrawlOptions sets it to true.
	ContinueOnError bool
	// ManualURLs, when non-empty, replace both the start URLs and the
	// sitemap supplier as the literal seed list.
	ManualURLs []string
	// FollowLinks enables link discovery on scanned pages.
	FollowLinks bool
	// ScreenshotDir is where captured variation images are written.
	// Default "screenshots".
	ScreenshotDir string
	// DisableScreenshots skips the capture pass entirely; variations are
	// still collected.
	DisableScreenshots bool
}

// NewDefaultCrawlOptions returns CrawlOptions with sensible defaults,
// adjusted by any VARSNAP_* environment overrides.
func NewDefaultCrawlOptions() *CrawlOptions {
	opts := &CrawlOptions{
		MaxURLs:           10,
		MaxDepth:          2,
		DelayBetweenPages: time.Second,
		ContinueOnError:   true,
		ScreenshotDir:     "screenshots",
	}
	opts.parseSettingsFromEnv()
	return opts
}

var optionsEnvMap = map[string]func(*CrawlOptions, string){
	"MAX_URLS": func(o *CrawlOptions, val string) {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			o.MaxURLs = n
		}
	},
	"MAX_DEPTH": func(o *CrawlOptions, val string) {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			o.MaxDepth = n
		}
	},
	"DELAY_MS": func(o *CrawlOptions, val string) {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			o.DelayBetweenPages = time.Duration(n) * time.Millisecond
		}
	},
	"SCREENSHOT_DIR": func(o *CrawlOptions, val string) {
		o.ScreenshotDir = val
	},
	"CONTINUE_ON_ERROR": func(o *CrawlOptions, val string) {
		o.ContinueOnError = isYesString(val)
	},
}

func (o *CrawlOptions) parseSettingsFromEnv() {
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, "VARSNAP_") {
			continue
		}
		pair := strings.SplitN(e[len("VARSNAP_"):], "=", 2)
		if len(pair) != 2 {
			continue
		}
		if f, ok := optionsEnvMap[pair[0]]; ok {
			f(o, pair[1])
		}
	}
}

func isYesString(s string) bool {
	switch strings.ToLower(s) {
	case "1", "yes", "true", "y":
		return true
	}
	return false
}

// mergeOptions fills zero-valued fields of the user options from defaults.
// Boolean fields are taken from the user struct as-is, so callers that want
// ContinueOnError should start from NewDefaultCrawlOptions.
func mergeOptions(user *CrawlOptions) *CrawlOptions {
	defaults := NewDefaultCrawlOptions()
	if user == nil {
		return defaults
	}
	merged := *user
	if merged.MaxURLs <= 0 {
		merged.MaxURLs = defaults.MaxURLs
	}
	if merged.MaxDepth <= 0 {
		merged.MaxDepth = defaults.MaxDepth
	}
	if merged.DelayBetweenPages < 0 {
		merged.DelayBetweenPages = 0
	}
	if merged.ScreenshotDir == "" {
		merged.ScreenshotDir = defaults.ScreenshotDir
	}
	return &merged
}

// PageFailure records one page that could not be processed.
type PageFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// CrawlStats summarizes a finished crawl.
//
// TotalPages and SuccessfulPages are computed against the original seed
// count, not the expanded discovered-link count; pages reached through link
// following do not raise TotalPages. This mirrors the long-standing
// reporting behavior downstream consumers depend on.
type CrawlStats struct {
	TotalPages      int `json:"totalPages"`
	SuccessfulPages int `json:"successfulPages"`
	TotalVariations int `json:"totalVariations"`
}

// CrawlResult aggregates everything a crawl session produced.
type CrawlResult struct {
	Variations []Variation   `json:"variations"`
	FailedURLs []PageFailure `json:"failedUrls"`
	Stats      CrawlStats    `json:"stats"`
}

// crawlState is the mutable per-session state. It is owned exclusively by
// the controller for one crawl and discarded at crawl end.
type crawlState struct {
	visited        map[string]bool
	queue          []string
	processedCount int
	failures       []PageFailure
}

func (s *crawlState) dequeue() string {
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next
}

// Crawler drives crawl sessions. A single Crawler may run many sessions,
// but each session is strictly sequential: one page handle, one page at a
// time, pages processed in FIFO discovery order.
type Crawler struct {
	browser Browser
	sitemap SitemapFetcher
	logger  *log.Logger
}

// NewCrawler creates a crawler on top of a browser. The sitemap fetcher is
// optional; with a nil fetcher the crawl seeds from its literal start URLs.
func NewCrawler(browser Browser, sitemap SitemapFetcher) *Crawler {
	return &Crawler{
		browser: browser,
		sitemap: sitemap,
		logger:  log.New(os.Stderr, "[varsnap] ", log.LstdFlags),
	}
}

// SetLogger overrides the crawler's logger.
func (c *Crawler) SetLogger(l *log.Logger) {
	if l != nil {
		c.logger = l
	}
}

// ScanURL navigates a fresh page to a single URL, scans it for variations
// and (unless disabled) captures their screenshots. It is the single-page
// counterpart of Crawl, used by the CLI scan command and the MCP scan tool.
func (c *Crawler) ScanURL(ctx context.Context, pageURL, selector, variationClassPrefix string, opts *CrawlOptions) ([]Variation, error) {
	if pageURL == "" {
		return nil, ErrNoStartURLs
	}
	if selector == "" {
		return nil, ErrMissingSelector
	}
	opts = mergeOptions(opts)

	page, err := c.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring page: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			c.logger.Printf("closing page: %v", closeErr)
		}
	}()

	if err := page.Navigate(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", pageURL, err)
	}
	variations, err := ScanPage(ctx, page, selector, variationClassPrefix)
	if err != nil {
		return nil, err
	}
	if !opts.DisableScreenshots && len(variations) > 0 {
		c.captureAll(ctx, page, variations, pageURL, opts.ScreenshotDir, 0)
	}
	for i := range variations {
		variations[i].PageURL = pageURL
	}
	return variations, nil
}

// Crawl walks a breadth-first queue of URLs, scanning each page for
// variations of the selector, optionally following same-domain links, and
// aggregating everything into one result.
//
// Seeds are ManualURLs when given; otherwise the sitemap fetcher expands
// the start URLs, falling back to the literal start URLs when it yields
// nothing. The session processes at most MaxURLs pages, discovers links
// only while fewer than MaxDepth pages have been processed, and never
// revisits a URL. Per-page failures are recorded and, with ContinueOnError,
// do not stop the session; without it the first failure aborts the crawl
// and surfaces as the returned error. The page handle is released exactly
// once on every exit path.
func (c *Crawler) Crawl(ctx context.Context, startURLs []string, selector, variationClassPrefix string, opts *CrawlOptions) (*CrawlResult, error) {
	if selector == "" {
		return nil, ErrMissingSelector
	}
	opts = mergeOptions(opts)

	seeds := c.seedURLs(ctx, startURLs, opts)
	if len(seeds) == 0 {
		return nil, ErrNoStartURLs
	}

	page, err := c.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring page: %w", err)
	}
	// The page handle is shared by the whole session and must be released
	// exactly once regardless of how the loop exits.
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			c.logger.Printf("closing page: %v", closeErr)
		}
	}()

	state := &crawlState{
		visited: make(map[string]bool),
		queue:   append([]string(nil), seeds...),
	}
	var variations []Variation
	globalIndex := 0

	for len(state.queue) > 0 && state.processedCount < opts.MaxURLs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		url := state.dequeue()
		if state.visited[url] {
			// A URL enqueued via two discovery paths is scanned once and
			// never double-counted.
			continue
		}
		state.visited[url] = true
		state.processedCount++

		c.logger.Printf("page %d/%d: %s", state.processedCount, opts.MaxURLs, url)

		if err := page.Navigate(ctx, url); err != nil {
			state.failures = append(state.failures, PageFailure{URL: url, Error: err.Error()})
			if !opts.ContinueOnError {
				return nil, fmt.Errorf("crawl aborted at %s: %w", url, err)
			}
			continue
		}

		pageVariations, err := ScanPage(ctx, page, selector, variationClassPrefix)
		if err != nil {
			state.failures = append(state.failures, PageFailure{URL: url, Error: err.Error()})
			if !opts.ContinueOnError {
				return nil, fmt.Errorf("crawl aborted at %s: %w", url, err)
			}
			continue
		}

		if len(pageVariations) > 0 {
			if !opts.DisableScreenshots {
				c.captureAll(ctx, page, pageVariations, url, opts.ScreenshotDir, globalIndex)
			}
			for i := range pageVariations {
				pageVariations[i].PageURL = url
				pageVariations[i].PageIndex = state.processedCount
				pageVariations[i].GlobalIndex = globalIndex
				globalIndex++
			}
			variations = append(variations, pageVariations...)
		}

		if opts.FollowLinks && state.processedCount < opts.MaxDepth {
			discovered := DiscoverLinks(ctx, page, hostnameOf(url), state.visited, opts.IncludePatterns, opts.ExcludePatterns)
			remainingSlots := opts.MaxURLs - state.processedCount - len(state.queue)
			if remainingSlots > 0 && len(discovered) > 0 {
				if len(discovered) > remainingSlots {
					discovered = discovered[:remainingSlots]
				}
				state.queue = append(state.queue, discovered...)
				c.logger.Printf("discovered %d new links on %s", len(discovered), url)
			}
		}

		if len(state.queue) > 0 && state.processedCount < opts.MaxURLs && opts.DelayBetweenPages > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.DelayBetweenPages):
			}
		}
	}

	return &CrawlResult{
		Variations: variations,
		FailedURLs: state.failures,
		Stats: CrawlStats{
			TotalPages:      len(seeds),
			SuccessfulPages: len(seeds) - len(state.failures),
			TotalVariations: len(variations),
		},
	}, nil
}

// seedURLs resolves the session's initial queue: manual URLs verbatim,
// otherwise the start URLs followed by whatever the sitemap supplier finds
// for each of them. Sitemap failures only log; the start URLs remain.
func (c *Crawler) seedURLs(ctx context.Context, startURLs []string, opts *CrawlOptions) []string {
	if len(opts.ManualURLs) > 0 {
		return opts.ManualURLs
	}
	seeds := append([]string(nil), startURLs...)
	if c.sitemap == nil {
		return seeds
	}
	for _, base := range startURLs {
		urls, err := c.sitemap.FetchURLs(ctx, base)
		if err != nil {
			c.logger.Printf("sitemap fetch for %s failed: %v", base, err)
			continue
		}
		seeds = append(seeds, urls...)
	}
	if len(seeds) > opts.MaxURLs {
		seeds = seeds[:opts.MaxURLs]
	}
	return seeds
}

// captureAll runs the screenshot strategy chain for each variation on the
// current page, writing successful captures under dir. Capture failures are
// logged per variation and never abort the pass.
func (c *Crawler) captureAll(ctx context.Context, page Page, variations []Variation, pageURL, dir string, globalIndexBase int) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.logger.Printf("cannot create screenshot dir %s: %v", dir, err)
		return
	}
	if err := page.HideFixedOverlays(ctx); err != nil {
		c.logger.Printf("hiding overlays on %s: %v", pageURL, err)
	}
	for i := range variations {
		v := &variations[i]
		img, err := CaptureVariation(ctx, page, v)
		if err != nil {
			c.logger.Printf("no capture for variation %d on %s: %v", v.Index, pageURL, err)
			continue
		}
		name := fmt.Sprintf("variation-%04d-%s.png", globalIndexBase+i, v.Digest)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, img, 0o644); err != nil {
			c.logger.Printf("writing %s: %v", path, err)
			continue
		}
		v.ScreenshotPath = path
	}
}
