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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/varsnap/varsnap"
)

// crawlCmdFlags holds all the flags for the crawl command
type crawlCmdFlags struct {
	selector        string
	classPrefix     string
	maxURLs         int
	maxDepth        int
	followLinks     bool
	manualURLs      string
	includePatterns string
	excludePatterns string
	delayMs         int
	stopOnError     bool
	screenshotDir   string
	noScreenshots   bool
	reportDir       string
	jsonOutput      bool
	quiet           bool
}

func runCrawl(args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)

	var flags crawlCmdFlags
	fs.StringVar(&flags.selector, "selector", "", "CSS selector to scan for (required)")
	fs.StringVar(&flags.selector, "s", "", "CSS selector to scan for (shorthand)")
	fs.StringVar(&flags.classPrefix, "class-prefix", "", "Only keep elements with a class starting with this prefix")
	fs.IntVar(&flags.maxURLs, "max-urls", 10, "Maximum number of pages to process")
	fs.IntVar(&flags.maxDepth, "max-depth", 2, "Link discovery stops after this many processed pages")
	fs.BoolVar(&flags.followLinks, "follow-links", false, "Discover and follow same-domain links")
	fs.StringVar(&flags.manualURLs, "manual-urls", "", "Comma-separated explicit page list (replaces discovery)")
	fs.StringVar(&flags.includePatterns, "include", "", "Comma-separated URL patterns to include (glob or substring)")
	fs.StringVar(&flags.excludePatterns, "exclude", "", "Comma-separated URL patterns to exclude (glob or substring)")
	fs.IntVar(&flags.delayMs, "delay-ms", 1000, "Delay between pages in milliseconds")
	fs.BoolVar(&flags.stopOnError, "stop-on-error", false, "Abort the crawl on the first page failure")
	fs.StringVar(&flags.screenshotDir, "screenshot-dir", "screenshots", "Directory for per-variation screenshots")
	fs.BoolVar(&flags.noScreenshots, "no-screenshots", false, "Skip screenshot capture")
	fs.StringVar(&flags.reportDir, "report-dir", "report", "Directory for the HTML report")
	fs.BoolVar(&flags.jsonOutput, "json", false, "Print the crawl result as JSON instead of a report")
	fs.BoolVar(&flags.quiet, "quiet", false, "Suppress progress output")
	fs.BoolVar(&flags.quiet, "q", false, "Suppress progress output (shorthand)")

	fs.Usage = func() {
		fmt.Println(`Usage: varsnap crawl <url> --selector <css> [flags]

Crawl a site breadth-first starting at the given URL, scanning every page
for deduplicated variations of the selector. Seed pages come from the start
URL plus any sitemap; --follow-links extends the frontier from page links.

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  # Crawl up to 10 pages following links
  varsnap crawl https://example.com --selector ".card" --follow-links

  # Crawl a fixed page list, skipping discovery entirely
  varsnap crawl https://example.com -s ".card" --manual-urls https://example.com/a,https://example.com/b

  # Restrict discovered links to the blog section
  varsnap crawl https://example.com -s ".card" --follow-links --include "/blog/*"`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("URL argument is required")
	}
	if flags.selector == "" {
		fs.Usage()
		return fmt.Errorf("--selector is required")
	}

	urlStr := fs.Arg(0)
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		urlStr = "https://" + urlStr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	browser := varsnap.NewChromeBrowser(nil)
	defer browser.Close()

	crawler := varsnap.NewCrawler(browser, varsnap.NewSitemapClient(nil))

	opts := varsnap.NewDefaultCrawlOptions()
	opts.MaxURLs = flags.maxURLs
	opts.MaxDepth = flags.maxDepth
	opts.FollowLinks = flags.followLinks
	opts.ManualURLs = splitList(flags.manualURLs)
	opts.IncludePatterns = splitList(flags.includePatterns)
	opts.ExcludePatterns = splitList(flags.excludePatterns)
	opts.DelayBetweenPages = time.Duration(flags.delayMs) * time.Millisecond
	opts.ContinueOnError = !flags.stopOnError
	opts.ScreenshotDir = flags.screenshotDir
	opts.DisableScreenshots = flags.noScreenshots

	if !flags.quiet {
		fmt.Printf("Crawling %s for %q (max %d pages)...\n", urlStr, flags.selector, opts.MaxURLs)
	}

	started := time.Now()
	result, err := crawler.Crawl(ctx, []string{urlStr}, flags.selector, flags.classPrefix, opts)
	if err != nil {
		return fmt.Errorf("crawl failed: %v", err)
	}

	if flags.jsonOutput {
		return printJSON(os.Stdout, result)
	}

	reportPath, err := writeReport(result, urlStr, flags.selector, flags.classPrefix, flags.reportDir)
	if err != nil {
		return err
	}
	saveRun(urlStr, flags.selector, flags.classPrefix, []string{urlStr}, result, time.Since(started), reportPath, flags.quiet)

	if !flags.quiet {
		fmt.Printf("\nCrawl completed!\n")
		fmt.Printf("  Pages: %d/%d successful\n", result.Stats.SuccessfulPages, result.Stats.TotalPages)
		fmt.Printf("  Variations: %d\n", result.Stats.TotalVariations)
		if len(result.FailedURLs) > 0 {
			fmt.Printf("  Failed pages: %d\n", len(result.FailedURLs))
			for _, f := range result.FailedURLs {
				fmt.Printf("    %s: %s\n", f.URL, f.Error)
			}
		}
		fmt.Printf("Report: %s\n", reportPath)
	}
	return nil
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
