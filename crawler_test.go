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
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// testOptions returns zero-delay options with screenshots off, the baseline
// for controller tests.
func testOptions() *CrawlOptions {
	return &CrawlOptions{
		MaxURLs:            10,
		MaxDepth:           2,
		ContinueOnError:    true,
		DisableScreenshots: true,
	}
}

func TestCrawlRequiresSelector(t *testing.T) {
	c := NewCrawler(&fakeBrowser{page: &fakePage{}}, nil)
	_, err := c.Crawl(context.Background(), []string{"https://example.com"}, "", "", testOptions())
	if !errors.Is(err, ErrMissingSelector) {
		t.Errorf("expected ErrMissingSelector, got %v", err)
	}
}

func TestCrawlRequiresSeeds(t *testing.T) {
	c := NewCrawler(&fakeBrowser{page: &fakePage{}}, nil)
	_, err := c.Crawl(context.Background(), nil, ".card", "", testOptions())
	if !errors.Is(err, ErrNoStartURLs) {
		t.Errorf("expected ErrNoStartURLs, got %v", err)
	}
}

func TestCrawlHonorsMaxURLs(t *testing.T) {
	page := &fakePage{}
	c := NewCrawler(&fakeBrowser{page: page}, nil)

	opts := testOptions()
	opts.MaxURLs = 3
	opts.ManualURLs = []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
		"https://example.com/4",
		"https://example.com/5",
	}

	_, err := c.Crawl(context.Background(), []string{"https://example.com"}, ".card", "", opts)
	if err != nil {
		t.Fatalf("Crawl() failed: %v", err)
	}
	if len(page.navigations) != 3 {
		t.Errorf("navigated %d pages, want 3: %v", len(page.navigations), page.navigations)
	}
}

func TestCrawlNeverRevisits(t *testing.T) {
	page := &fakePage{}
	c := NewCrawler(&fakeBrowser{page: page}, nil)

	opts := testOptions()
	opts.ManualURLs = []string{
		"https://example.com/a",
		"https://example.com/a",
		"https://example.com/b",
	}

	result, err := c.Crawl(context.Background(), nil, ".card", "", opts)
	if err != nil {
		t.Fatalf("Crawl() failed: %v", err)
	}
	want := []string{"https://example.com/a", "https://example.com/b"}
	if !reflect.DeepEqual(page.navigations, want) {
		t.Errorf("navigations = %v, want %v", page.navigations, want)
	}
	// Stats count seeds, not distinct processed pages.
	if result.Stats.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", result.Stats.TotalPages)
	}
}

func TestCrawlClosesPageExactlyOnce(t *testing.T) {
	t.Run("OnSuccess", func(t *testing.T) {
		page := &fakePage{}
		c := NewCrawler(&fakeBrowser{page: page}, nil)
		opts := testOptions()
		opts.ManualURLs = []string{"https://example.com/a"}

		if _, err := c.Crawl(context.Background(), nil, ".card", "", opts); err != nil {
			t.Fatalf("Crawl() failed: %v", err)
		}
		if page.closeCount != 1 {
			t.Errorf("closeCount = %d, want 1", page.closeCount)
		}
	})

	t.Run("OnAbort", func(t *testing.T) {
		page := &fakePage{
			navErr: map[string]error{"https://example.com/bad": errors.New("net::ERR_FAILED")},
		}
		c := NewCrawler(&fakeBrowser{page: page}, nil)
		opts := testOptions()
		opts.ContinueOnError = false
		opts.ManualURLs = []string{"https://example.com/bad", "https://example.com/next"}

		_, err := c.Crawl(context.Background(), nil, ".card", "", opts)
		if err == nil || !strings.Contains(err.Error(), "crawl aborted at https://example.com/bad") {
			t.Fatalf("expected abort error, got %v", err)
		}
		if page.closeCount != 1 {
			t.Errorf("closeCount = %d, want 1", page.closeCount)
		}
		if len(page.navigations) != 1 {
			t.Errorf("crawl continued past fatal failure: %v", page.navigations)
		}
	})
}

func TestCrawlContinueOnError(t *testing.T) {
	page := &fakePage{
		navErr: map[string]error{"https://example.com/bad": errors.New("timeout")},
		snapshots: snapshotsFor(map[string][]*RawElementSnapshot{
			"https://example.com/good": {{TagName: "div", ClassAttr: "card"}},
		}),
	}
	c := NewCrawler(&fakeBrowser{page: page}, nil)
	opts := testOptions()
	opts.ManualURLs = []string{"https://example.com/bad", "https://example.com/good"}

	result, err := c.Crawl(context.Background(), nil, ".card", "", opts)
	if err != nil {
		t.Fatalf("Crawl() failed: %v", err)
	}
	if len(result.FailedURLs) != 1 || result.FailedURLs[0].URL != "https://example.com/bad" {
		t.Errorf("FailedURLs = %v", result.FailedURLs)
	}
	if result.Stats.SuccessfulPages != 1 {
		t.Errorf("SuccessfulPages = %d, want 1", result.Stats.SuccessfulPages)
	}
	if len(result.Variations) != 1 {
		t.Errorf("got %d variations, want 1", len(result.Variations))
	}
}

func TestCrawlTagsVariationsWithPageInfo(t *testing.T) {
	page := &fakePage{
		snapshots: snapshotsFor(map[string][]*RawElementSnapshot{
			"https://example.com/a": {{TagName: "div", ClassAttr: "one", Box: &Rect{X: 1, Y: 1}}},
			"https://example.com/b": {
				{TagName: "div", ClassAttr: "two", Box: &Rect{X: 2, Y: 2}},
				{TagName: "div", ClassAttr: "three", Box: &Rect{X: 3, Y: 3}},
			},
		}),
	}
	c := NewCrawler(&fakeBrowser{page: page}, nil)
	opts := testOptions()
	opts.ManualURLs = []string{"https://example.com/a", "https://example.com/b"}

	result, err := c.Crawl(context.Background(), nil, "div", "", opts)
	if err != nil {
		t.Fatalf("Crawl() failed: %v", err)
	}
	if len(result.Variations) != 3 {
		t.Fatalf("got %d variations, want 3", len(result.Variations))
	}
	for i, v := range result.Variations {
		if v.GlobalIndex != i {
			t.Errorf("variation %d GlobalIndex = %d", i, v.GlobalIndex)
		}
	}
	if result.Variations[0].PageURL != "https://example.com/a" || result.Variations[0].PageIndex != 1 {
		t.Errorf("first variation page info: %q %d", result.Variations[0].PageURL, result.Variations[0].PageIndex)
	}
	if result.Variations[2].PageURL != "https://example.com/b" || result.Variations[2].PageIndex != 2 {
		t.Errorf("last variation page info: %q %d", result.Variations[2].PageURL, result.Variations[2].PageIndex)
	}
}

func TestCrawlFollowLinks(t *testing.T) {
	linkHTML := `<html><body><a href="/found">next</a></body></html>`

	t.Run("DiscoversWithinDepth", func(t *testing.T) {
		page := &fakePage{
			htmlBody: func(url string) string {
				if url == "https://example.com/" {
					return linkHTML
				}
				return "<html><body></body></html>"
			},
		}
		c := NewCrawler(&fakeBrowser{page: page}, nil)
		opts := testOptions()
		opts.FollowLinks = true
		opts.MaxDepth = 2
		opts.ManualURLs = []string{"https://example.com/"}

		if _, err := c.Crawl(context.Background(), nil, ".card", "", opts); err != nil {
			t.Fatalf("Crawl() failed: %v", err)
		}
		want := []string{"https://example.com/", "https://example.com/found"}
		if !reflect.DeepEqual(page.navigations, want) {
			t.Errorf("navigations = %v, want %v", page.navigations, want)
		}
	})

	t.Run("DepthGateStopsDiscovery", func(t *testing.T) {
		page := &fakePage{
			htmlBody: func(string) string { return linkHTML },
		}
		c := NewCrawler(&fakeBrowser{page: page}, nil)
		opts := testOptions()
		opts.FollowLinks = true
		opts.MaxDepth = 1
		opts.ManualURLs = []string{"https://example.com/"}

		if _, err := c.Crawl(context.Background(), nil, ".card", "", opts); err != nil {
			t.Fatalf("Crawl() failed: %v", err)
		}
		if len(page.navigations) != 1 {
			t.Errorf("links discovered past the depth gate: %v", page.navigations)
		}
	})

	t.Run("DisabledByDefault", func(t *testing.T) {
		page := &fakePage{
			htmlBody: func(string) string { return linkHTML },
		}
		c := NewCrawler(&fakeBrowser{page: page}, nil)
		opts := testOptions()
		opts.ManualURLs = []string{"https://example.com/"}

		if _, err := c.Crawl(context.Background(), nil, ".card", "", opts); err != nil {
			t.Fatalf("Crawl() failed: %v", err)
		}
		if len(page.navigations) != 1 {
			t.Errorf("followed links without FollowLinks: %v", page.navigations)
		}
	})
}

func TestCrawlSitemapSeeds(t *testing.T) {
	page := &fakePage{}
	sitemap := &fakeSitemap{urls: map[string][]string{
		"https://example.com": {"https://example.com/from-sitemap"},
	}}
	c := NewCrawler(&fakeBrowser{page: page}, sitemap)
	opts := testOptions()

	result, err := c.Crawl(context.Background(), []string{"https://example.com"}, ".card", "", opts)
	if err != nil {
		t.Fatalf("Crawl() failed: %v", err)
	}
	want := []string{"https://example.com", "https://example.com/from-sitemap"}
	if !reflect.DeepEqual(page.navigations, want) {
		t.Errorf("navigations = %v, want %v", page.navigations, want)
	}
	if result.Stats.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", result.Stats.TotalPages)
	}
}

func TestCrawlManualURLsBypassSitemap(t *testing.T) {
	page := &fakePage{}
	sitemap := &fakeSitemap{urls: map[string][]string{
		"https://example.com": {"https://example.com/from-sitemap"},
	}}
	c := NewCrawler(&fakeBrowser{page: page}, sitemap)
	opts := testOptions()
	opts.ManualURLs = []string{"https://example.com/only"}

	if _, err := c.Crawl(context.Background(), []string{"https://example.com"}, ".card", "", opts); err != nil {
		t.Fatalf("Crawl() failed: %v", err)
	}
	if len(page.navigations) != 1 || page.navigations[0] != "https://example.com/only" {
		t.Errorf("navigations = %v", page.navigations)
	}
}

func TestCrawlSitemapFailureFallsBack(t *testing.T) {
	page := &fakePage{}
	c := NewCrawler(&fakeBrowser{page: page}, &fakeSitemap{err: errors.New("dns failure")})

	if _, err := c.Crawl(context.Background(), []string{"https://example.com"}, ".card", "", testOptions()); err != nil {
		t.Fatalf("Crawl() failed: %v", err)
	}
	if len(page.navigations) != 1 || page.navigations[0] != "https://example.com" {
		t.Errorf("navigations = %v", page.navigations)
	}
}

func TestCrawlContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCrawler(&fakeBrowser{page: &fakePage{}}, nil)
	opts := testOptions()
	opts.ManualURLs = []string{"https://example.com/a"}

	_, err := c.Crawl(ctx, nil, ".card", "", opts)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScanURL(t *testing.T) {
	t.Run("SetsPageURL", func(t *testing.T) {
		page := &fakePage{
			snapshots: snapshotsFor(map[string][]*RawElementSnapshot{
				"https://example.com/p": {{TagName: "div", ClassAttr: "card"}},
			}),
		}
		c := NewCrawler(&fakeBrowser{page: page}, nil)

		variations, err := c.ScanURL(context.Background(), "https://example.com/p", ".card", "", testOptions())
		if err != nil {
			t.Fatalf("ScanURL() failed: %v", err)
		}
		if len(variations) != 1 || variations[0].PageURL != "https://example.com/p" {
			t.Errorf("variations = %+v", variations)
		}
		if page.closeCount != 1 {
			t.Errorf("closeCount = %d, want 1", page.closeCount)
		}
	})

	t.Run("ValidatesArguments", func(t *testing.T) {
		c := NewCrawler(&fakeBrowser{page: &fakePage{}}, nil)
		if _, err := c.ScanURL(context.Background(), "", ".card", "", nil); !errors.Is(err, ErrNoStartURLs) {
			t.Errorf("expected ErrNoStartURLs, got %v", err)
		}
		if _, err := c.ScanURL(context.Background(), "https://example.com", "", "", nil); !errors.Is(err, ErrMissingSelector) {
			t.Errorf("expected ErrMissingSelector, got %v", err)
		}
	})

	t.Run("ScreenshotNamesUseFingerprintDigest", func(t *testing.T) {
		dir := t.TempDir()
		box := &Rect{X: 10.6, Y: 20.4, Width: 200, Height: 100}
		page := &fakePage{
			snapshots: snapshotsFor(map[string][]*RawElementSnapshot{
				"https://example.com": {{
					TagName:         "div",
					ClassAttr:       "card  featured",
					Selector:        ".card",
					SiblingPosition: 1,
					Box:             box,
				}},
			}),
			boxes: map[string]*Rect{".card:nth-child(1)": box},
		}
		c := NewCrawler(&fakeBrowser{page: page}, nil)

		opts := testOptions()
		opts.DisableScreenshots = false
		opts.ScreenshotDir = dir

		variations, err := c.ScanURL(context.Background(), "https://example.com", ".card", "", opts)
		if err != nil {
			t.Fatalf("ScanURL() failed: %v", err)
		}
		if len(variations) != 1 {
			t.Fatalf("got %d variations, want 1", len(variations))
		}

		// The file name carries the digest of the exact fingerprint key:
		// raw class attribute (double space preserved) and rounded, not
		// truncated, coordinates.
		want := filepath.Join(dir, "variation-0000-"+KeyDigest("div|card  featured|11,20")+".png")
		if variations[0].ScreenshotPath != want {
			t.Errorf("ScreenshotPath = %q, want %q", variations[0].ScreenshotPath, want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("screenshot not written: %v", err)
		}
	})
}

func TestNewDefaultCrawlOptions(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		opts := NewDefaultCrawlOptions()
		if opts.MaxURLs != 10 || opts.MaxDepth != 2 {
			t.Errorf("bounds = %d/%d", opts.MaxURLs, opts.MaxDepth)
		}
		if opts.DelayBetweenPages != time.Second {
			t.Errorf("delay = %v", opts.DelayBetweenPages)
		}
		if !opts.ContinueOnError {
			t.Error("ContinueOnError should default to true")
		}
		if opts.ScreenshotDir != "screenshots" {
			t.Errorf("ScreenshotDir = %q", opts.ScreenshotDir)
		}
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("VARSNAP_MAX_URLS", "25")
		t.Setenv("VARSNAP_DELAY_MS", "50")
		t.Setenv("VARSNAP_CONTINUE_ON_ERROR", "no")
		t.Setenv("VARSNAP_SCREENSHOT_DIR", "/tmp/caps")

		opts := NewDefaultCrawlOptions()
		if opts.MaxURLs != 25 {
			t.Errorf("MaxURLs = %d", opts.MaxURLs)
		}
		if opts.DelayBetweenPages != 50*time.Millisecond {
			t.Errorf("delay = %v", opts.DelayBetweenPages)
		}
		if opts.ContinueOnError {
			t.Error("ContinueOnError should be off")
		}
		if opts.ScreenshotDir != "/tmp/caps" {
			t.Errorf("ScreenshotDir = %q", opts.ScreenshotDir)
		}
	})

	t.Run("InvalidEnvIgnored", func(t *testing.T) {
		t.Setenv("VARSNAP_MAX_URLS", "not-a-number")
		opts := NewDefaultCrawlOptions()
		if opts.MaxURLs != 10 {
			t.Errorf("MaxURLs = %d, want default 10", opts.MaxURLs)
		}
	})
}

func TestMergeOptions(t *testing.T) {
	t.Run("NilGetsDefaults", func(t *testing.T) {
		opts := mergeOptions(nil)
		if opts.MaxURLs != 10 || opts.ScreenshotDir != "screenshots" {
			t.Errorf("merged = %+v", opts)
		}
	})

	t.Run("ZeroFieldsFilled", func(t *testing.T) {
		opts := mergeOptions(&CrawlOptions{FollowLinks: true})
		if opts.MaxURLs != 10 || opts.MaxDepth != 2 {
			t.Errorf("bounds = %d/%d", opts.MaxURLs, opts.MaxDepth)
		}
		if !opts.FollowLinks {
			t.Error("user booleans must be preserved")
		}
	})

	t.Run("ExplicitValuesKept", func(t *testing.T) {
		opts := mergeOptions(&CrawlOptions{MaxURLs: 99, ScreenshotDir: "caps"})
		if opts.MaxURLs != 99 || opts.ScreenshotDir != "caps" {
			t.Errorf("merged = %+v", opts)
		}
	})
}
