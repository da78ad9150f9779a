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

import "context"

// Element is a handle to one enumerated DOM element. Snapshot extraction is
// per-element so that a single broken element cannot abort a whole scan.
type Element interface {
	// Snapshot extracts the raw element data used for fingerprinting.
	Snapshot(ctx context.Context) (*RawElementSnapshot, error)
}

// Page is the rendered-page capability consumed by the scanner, the link
// discoverer and the screenshot capture chain. Implementations own exactly
// one browser tab; a Page is never shared across crawl sessions.
type Page interface {
	// Navigate loads the given URL and waits for the page to settle.
	// Content-stabilization waits (network idle) are best effort and are
	// allowed to time out without failing the navigation.
	Navigate(ctx context.Context, url string) error

	// URL returns the page's current URL (after any redirects).
	URL() string

	// Query enumerates all elements matching the selector in document order.
	Query(ctx context.Context, selector string) ([]Element, error)

	// HTML returns the rendered page markup.
	HTML(ctx context.Context) (string, error)

	// Viewport returns the current viewport rectangle (origin at the
	// current scroll offset).
	Viewport(ctx context.Context) (Rect, error)

	// IsVisible reports whether the first element matching the selector is
	// visible (laid out, non-zero area, not display:none).
	IsVisible(ctx context.Context, selector string) (bool, error)

	// Box returns the bounding box of the first element matching the
	// selector, in page coordinates. Returns nil when the element has no
	// layout box.
	Box(ctx context.Context, selector string) (*Rect, error)

	// ContentBounds returns the union bounding box of the element's visible
	// descendants that carry meaningful content (text longer than 5
	// characters, an image, or a container holding an image). Returns nil
	// when no such descendant exists.
	ContentBounds(ctx context.Context, selector string) (*Rect, error)

	// ScrollIntoView scrolls the element into the viewport and returns its
	// recomputed bounding box.
	ScrollIntoView(ctx context.Context, selector string) (*Rect, error)

	// HideFixedOverlays transiently hides sticky/fixed headers and other
	// high-z-index fixed overlays so captures are not obscured.
	HideFixedOverlays(ctx context.Context) error

	// CaptureClip takes a full-page screenshot restricted to the clip
	// rectangle and returns the encoded image.
	CaptureClip(ctx context.Context, clip Rect) ([]byte, error)

	// CaptureElement screenshots the first element matching the selector
	// via its own rendering boundary, with no clipping math.
	CaptureElement(ctx context.Context, selector string) ([]byte, error)

	// Close releases the underlying tab. Safe to call exactly once.
	Close() error
}

// Browser acquires rendered-page handles. The crawl controller acquires one
// Page per session and guarantees its release on every exit path.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}
