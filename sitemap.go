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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xmlquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

const (
	// maxSitemapIndexDepth bounds recursion through nested sitemap indexes.
	maxSitemapIndexDepth = 3
	// maxSitemapURLs caps the URLs taken from one site's sitemaps.
	maxSitemapURLs = 500
)

// SitemapClient fetches seed URLs from a site's sitemaps. It tries the
// common default locations, follows sitemap indexes recursively, and falls
// back to scraping anchor links from an HTML sitemap page when the document
// turns out not to be XML.
type SitemapClient struct {
	client *http.Client
}

// NewSitemapClient creates a sitemap client. A nil httpClient gets a
// default with a 20s timeout.
func NewSitemapClient(httpClient *http.Client) *SitemapClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &SitemapClient{client: httpClient}
}

// FetchURLs implements SitemapFetcher. It tries <base>/sitemap.xml then
// <base>/sitemap_index.xml and returns the first non-empty URL list, capped
// at maxSitemapURLs. A site without sitemaps yields (nil, nil); callers
// fall back to their literal start URLs.
func (s *SitemapClient) FetchURLs(ctx context.Context, baseURL string) ([]string, error) {
	base, err := siteRoot(baseURL)
	if err != nil {
		return nil, err
	}
	for _, location := range []string{base + "/sitemap.xml", base + "/sitemap_index.xml"} {
		urls, err := s.fetchSitemap(ctx, location, 0)
		if err != nil {
			continue
		}
		if len(urls) > maxSitemapURLs {
			urls = urls[:maxSitemapURLs]
		}
		if len(urls) > 0 {
			return urls, nil
		}
	}
	return nil, nil
}

// fetchSitemap fetches and parses one sitemap document, recursing into
// sitemap indexes up to maxSitemapIndexDepth.
func (s *SitemapClient) fetchSitemap(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	if depth > maxSitemapIndexDepth {
		return nil, fmt.Errorf("sitemap index nesting exceeds %d levels", maxSitemapIndexDepth)
	}

	body, contentType, err := s.get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	body = decodeToUTF8(body, contentType)

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		// Some sites serve an HTML page at the sitemap location.
		return extractHTMLSitemapLinks(body, sitemapURL), nil
	}

	// Sitemap index: recurse into each child sitemap, tolerating partial
	// failures so one broken child cannot hide the rest.
	if xmlquery.FindOne(doc, "//sitemapindex") != nil {
		var all []string
		for _, loc := range xmlquery.Find(doc, "//sitemap/loc") {
			child := strings.TrimSpace(loc.InnerText())
			if child == "" {
				continue
			}
			urls, err := s.fetchSitemap(ctx, child, depth+1)
			if err != nil {
				continue
			}
			all = append(all, urls...)
			if len(all) >= maxSitemapURLs {
				break
			}
		}
		return all, nil
	}

	var urls []string
	for _, loc := range xmlquery.Find(doc, "//url/loc") {
		if u := strings.TrimSpace(loc.InnerText()); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		// Not a urlset either; try it as an HTML sitemap page.
		return extractHTMLSitemapLinks(body, sitemapURL), nil
	}
	return urls, nil
}

func (s *SitemapClient) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// extractHTMLSitemapLinks scrapes same-host anchor links from an HTML
// sitemap page. Returns nil when the body is not parseable HTML.
func extractHTMLSitemapLinks(body []byte, pageURL string) []string {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	host := hostnameOf(pageURL)
	seen := make(map[string]bool)
	var urls []string
	for _, a := range htmlquery.Find(doc, "//a[@href]") {
		href := htmlquery.SelectAttr(a, "href")
		resolved, ok := resolveHref(pageURL, href)
		if !ok || seen[resolved] {
			continue
		}
		seen[resolved] = true
		if hostnameOf(resolved) != host {
			continue
		}
		urls = append(urls, resolved)
	}
	return urls
}

// decodeToUTF8 converts a response body to UTF-8. A declared charset wins;
// otherwise the encoding is detected with chardet. Bodies that are already
// valid UTF-8 pass through untouched.
func decodeToUTF8(body []byte, contentType string) []byte {
	if utf8.Valid(body) {
		return body
	}
	if strings.Contains(strings.ToLower(contentType), "charset=") {
		if r, err := charset.NewReader(bytes.NewReader(body), contentType); err == nil {
			if decoded, err := io.ReadAll(r); err == nil {
				return decoded
			}
		}
	}
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(body)
	if err != nil {
		return body
	}
	r, err := charset.NewReaderLabel(result.Charset, bytes.NewReader(body))
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return decoded
}

// siteRoot reduces a URL to scheme://host with no trailing slash.
func siteRoot(u string) (string, error) {
	parsed, err := urlParser.Parse(u)
	if err != nil {
		return "", fmt.Errorf("parsing base URL %q: %w", u, err)
	}
	return parsed.Scheme() + "://" + parsed.Host(), nil
}
