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

// scanFlags holds all the flags for the scan command
type scanFlags struct {
	selector      string
	classPrefix   string
	screenshotDir string
	noScreenshots bool
	reportDir     string
	jsonOutput    bool
	quiet         bool
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)

	var flags scanFlags
	fs.StringVar(&flags.selector, "selector", "", "CSS selector to scan for (required)")
	fs.StringVar(&flags.selector, "s", "", "CSS selector to scan for (shorthand)")
	fs.StringVar(&flags.classPrefix, "class-prefix", "", "Only keep elements with a class starting with this prefix")
	fs.StringVar(&flags.screenshotDir, "screenshot-dir", "screenshots", "Directory for per-variation screenshots")
	fs.BoolVar(&flags.noScreenshots, "no-screenshots", false, "Skip screenshot capture")
	fs.StringVar(&flags.reportDir, "report-dir", "report", "Directory for the HTML report")
	fs.BoolVar(&flags.jsonOutput, "json", false, "Print variations as JSON instead of a report")
	fs.BoolVar(&flags.quiet, "quiet", false, "Suppress progress output")
	fs.BoolVar(&flags.quiet, "q", false, "Suppress progress output (shorthand)")

	fs.Usage = func() {
		fmt.Println(`Usage: varsnap scan <url> --selector <css> [flags]

Scan a single rendered page for deduplicated variations of a selector.

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  # Scan for WordPress block variations
  varsnap scan https://example.com --selector ".wp-block-group" --class-prefix wp-block

  # Scan without screenshots, print JSON
  varsnap scan https://example.com -s ".card" --no-screenshots --json`)
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
	opts.ScreenshotDir = flags.screenshotDir
	opts.DisableScreenshots = flags.noScreenshots

	if !flags.quiet {
		fmt.Printf("Scanning %s for %q...\n", urlStr, flags.selector)
	}

	started := time.Now()
	variations, err := crawler.ScanURL(ctx, urlStr, flags.selector, flags.classPrefix, opts)
	if err != nil {
		return fmt.Errorf("scan failed: %v", err)
	}

	result := &varsnap.CrawlResult{
		Variations: variations,
		Stats: varsnap.CrawlStats{
			TotalPages:      1,
			SuccessfulPages: 1,
			TotalVariations: len(variations),
		},
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
		fmt.Printf("\nFound %d variations.\n", len(variations))
		fmt.Printf("Report: %s\n", reportPath)
	}
	return nil
}
