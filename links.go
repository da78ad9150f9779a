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
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gobwas/glob"
)

// maxDiscoveredURLLength drops absurdly long URLs during discovery; such
// URLs are almost always malformed or tracking junk.
const maxDiscoveredURLLength = 2083

// DiscoverLinks extracts same-domain, deduplicated, pattern-filtered
// outbound links from the rendered page.
//
// Hrefs resolve against the current page URL; fragment-only, mailto:, tel:
// and javascript: hrefs are discarded. Only links whose hostname equals
// baseDomain exactly survive. Resolved URLs are normalized by stripping
// fragment and query string, deduplicated within this call, and reduced by
// the visited set. Include patterns run before exclude patterns; empty
// pattern lists are no-ops. A plain pattern matches as a substring; a
// pattern containing glob metacharacters is compiled with gobwas/glob.
//
// Discovery is best effort: any internal failure yields an empty result
// rather than an error, so a bad page can never abort a crawl.
func DiscoverLinks(ctx context.Context, page Page, baseDomain string, visited map[string]bool, includePatterns, excludePatterns []string) []string {
	html, err := page.HTML(ctx)
	if err != nil {
		log.Printf("varsnap: link discovery failed on %s: %v", page.URL(), err)
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Printf("varsnap: link discovery failed on %s: %v", page.URL(), err)
		return nil
	}

	pageURL := page.URL()
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		normalized, ok := resolveHref(pageURL, href)
		if !ok {
			return
		}
		if seen[normalized] || visited[normalized] {
			return
		}
		seen[normalized] = true

		if hostnameOf(normalized) != baseDomain {
			return
		}
		if len(normalized) > maxDiscoveredURLLength {
			return
		}
		if !matchesAnyPattern(normalized, includePatterns, true) {
			return
		}
		if matchesAnyPattern(normalized, excludePatterns, false) {
			return
		}
		links = append(links, normalized)
	})

	return links
}

// resolveHref resolves an href against the current page URL and normalizes
// it by stripping fragment and query string. Returns ok=false for hrefs
// that are not crawlable page links.
func resolveHref(pageURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	// ParseRef handles absolute, root-relative and path-relative forms.
	resolved, err := urlParser.ParseRef(pageURL, href)
	if err != nil {
		return "", false
	}
	scheme := resolved.Scheme()
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return scheme + "://" + resolved.Host() + resolved.Pathname(), true
}

// hostnameOf returns the lowercase hostname of a URL, or "" when unparsable.
func hostnameOf(u string) string {
	parsed, err := urlParser.Parse(u)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// matchesAnyPattern reports whether the URL matches at least one pattern.
// emptyResult is returned for an empty pattern list (include lists keep
// everything by default, exclude lists drop nothing).
func matchesAnyPattern(u string, patterns []string, emptyResult bool) bool {
	if len(patterns) == 0 {
		return emptyResult
	}
	for _, p := range patterns {
		if matchesPattern(u, p) {
			return true
		}
	}
	return false
}

// matchesPattern matches a single pattern against a URL. Patterns carrying
// glob metacharacters compile with gobwas/glob; everything else is a plain
// substring test.
func matchesPattern(u, pattern string) bool {
	if strings.ContainsAny(pattern, "*?[{") {
		if g, err := glob.Compile(pattern); err == nil {
			return g.Match(u)
		}
	}
	return strings.Contains(u, pattern)
}
