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

// varsnap CLI
//
// Command-line interface for the varsnap variation discovery engine.
// Scans rendered pages for deduplicated variants of a CSS selector,
// screenshots each one, and aggregates results across a site crawl.
//
// Usage:
//
//	varsnap <command> [flags]
//
// Commands:
//
//	scan      Scan a single page for selector variations
//	crawl     Crawl a site and collect variations across pages
//	list      List recorded runs or inspect one run
//	mcp       Run the MCP server (stdio or HTTP)
//	version   Show version information
package main

import (
	"fmt"
	"os"

	"github.com/varsnap/varsnap/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "scan":
		if err := runScan(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "crawl":
		if err := runCrawl(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "list":
		if err := runList(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "-v", "--version":
		fmt.Printf("varsnap %s\n", version.CurrentVersion)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`varsnap - Variation discovery for rendered pages

Usage:
  varsnap <command> [flags]

Commands:
  scan      Scan a single page for selector variations
  crawl     Crawl a site and collect variations across pages
  list      List recorded runs or inspect one run
  mcp       Run the MCP server (stdio or HTTP)
  version   Show version information
  help      Show this help message

Examples:
  # Scan one page for WordPress block variations
  varsnap scan https://example.com --selector ".wp-block-group" --class-prefix wp-block

  # Crawl a site, following links up to 10 pages
  varsnap crawl https://example.com --selector ".card" --follow-links --max-urls 10

  # Crawl an explicit list of pages
  varsnap crawl https://example.com --selector ".card" --manual-urls https://example.com/a,https://example.com/b

  # List recorded runs
  varsnap list runs

  # Inspect one run
  varsnap list run --run-id 3

Use "varsnap <command> --help" for more information about a command.`)
}
