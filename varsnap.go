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

// Package varsnap discovers repeated structural variants of a targeted HTML
// element across a website, deduplicates them, captures a screenshot of each
// variant, and aggregates the results for reporting.
//
// The package is organized around a small set of collaborating pieces:
//
//   - Fingerprint derives a stable identity key and a Variation shell from a
//     raw DOM element snapshot.
//   - AcceptVariation applies class-prefix include/exclude policy.
//   - ScanPage enumerates, fingerprints, deduplicates and filters all
//     elements matching a selector on one rendered page.
//   - DiscoverLinks extracts same-domain outbound links for crawling.
//   - Crawler drives a breadth-first crawl over a bounded set of pages,
//     invoking the scanner and the screenshot capture chain per page.
//
// Browser automation is consumed through the Page capability interface; the
// chromedp-backed implementation lives in chromedp_page.go.
package varsnap

import (
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

// urlParser is the shared WHATWG-compliant URL parser used for all URL
// resolution and normalization in this package.
var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// Rect is a bounding rectangle in page coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ImageInfo describes one descendant <img> of a candidate element.
type ImageInfo struct {
	// Alt is the image's alt attribute, possibly empty.
	Alt string `json:"alt"`
	// Src is the image's src attribute, possibly empty.
	Src string `json:"src"`
}

// RawElementSnapshot is the ephemeral per-element extract produced by the
// DOM collaborator. It carries everything the fingerprinter needs; it is
// never retained past a single scan.
type RawElementSnapshot struct {
	// TagName is the element's tag name (any case; normalized downstream).
	TagName string `json:"tagName"`
	// ClassAttr is the raw, unsplit class attribute string.
	ClassAttr string `json:"classAttr"`
	// Text is the element's full visible text content.
	Text string `json:"text"`
	// Selector is the selector text the element was enumerated with.
	Selector string `json:"selector"`
	// SiblingPosition is the element's 1-based position among ALL children
	// of its immediate parent, not just selector-matching siblings.
	SiblingPosition int `json:"siblingPosition"`
	// Box is the element's bounding geometry, nil when not laid out.
	Box *Rect `json:"box"`
	// Images lists descendant images in document order.
	Images []ImageInfo `json:"images"`
	// OwnID is the element's own id attribute, possibly empty.
	OwnID string `json:"ownId"`
	// HeadingIDs lists ids of descendant h1-h6 elements in document order.
	HeadingIDs []string `json:"headingIds"`
	// OtherIDs lists ids of non-heading descendants in document order.
	OtherIDs []string `json:"otherIds"`
	// AnchorLinks lists fragment hrefs ("#...") of descendant anchors.
	AnchorLinks []string `json:"anchorLinks"`
}

// AnchorInfo records the id/fragment information used to resolve a "view
// source" link for a variation in the report.
type AnchorInfo struct {
	// ElementID is the element's own id, empty when absent.
	ElementID string `json:"elementId,omitempty"`
	// HeadingIDs are ids of descendant headings, in document order.
	HeadingIDs []string `json:"headingIds,omitempty"`
	// OtherIDs are ids of non-heading descendants, excluding HeadingIDs.
	OtherIDs []string `json:"otherIds,omitempty"`
	// AnchorLinks are in-element anchor fragments ("#section").
	AnchorLinks []string `json:"anchorLinks,omitempty"`
}

// BestFragment returns the preferred URL fragment for linking back to the
// variation's location on its page: own id first, then the first heading id,
// then the first other id. Returns "" when nothing usable was recorded.
func (a AnchorInfo) BestFragment() string {
	if a.ElementID != "" {
		return a.ElementID
	}
	if len(a.HeadingIDs) > 0 {
		return a.HeadingIDs[0]
	}
	if len(a.OtherIDs) > 0 {
		return a.OtherIDs[0]
	}
	return ""
}

// Variation is one accepted, deduplicated, filtered instance of the targeted
// selector on a page.
type Variation struct {
	// Index is the variation's position within its page's accepted output
	// (not globally unique across pages).
	Index int `json:"index"`
	// Selector is a positional locator suitable for re-querying the element,
	// with a literal "*" tag wildcard replaced by the concrete tag name.
	Selector string `json:"selector"`
	// ActualSelector preserves the original selector text, parameterized by
	// the same 1-based :nth-child position.
	ActualSelector string `json:"actualSelector"`
	// Digest is a short hex digest of the fingerprint key, used to name the
	// variation's screenshot file.
	Digest string `json:"digest,omitempty"`
	// TagName is the lowercase element tag.
	TagName string `json:"tagName"`
	// ClassNames are the non-empty class tokens in source order. Duplicates
	// are intentionally not removed at this stage.
	ClassNames []string `json:"classNames"`
	// TextContent is a human-readable summary, at most 150 characters.
	TextContent string `json:"textContent"`
	// BoundingBox is the element's geometry, nil when unavailable.
	BoundingBox *Rect `json:"boundingBox"`
	// ScreenshotPath is set once a capture succeeds, empty otherwise.
	ScreenshotPath string `json:"screenshotPath,omitempty"`
	// AnchorInfo carries source-link resolution data.
	AnchorInfo AnchorInfo `json:"anchorInfo"`

	// PageURL, PageIndex and GlobalIndex are set only in multi-page crawl
	// mode, by the crawl controller.
	PageURL     string `json:"pageUrl,omitempty"`
	PageIndex   int    `json:"pageIndex,omitempty"`
	GlobalIndex int    `json:"globalIndex,omitempty"`
}

// ClassSignature returns the space-joined class token list. The report
// generator groups variations by this value.
func (v *Variation) ClassSignature() string {
	return strings.Join(v.ClassNames, " ")
}
