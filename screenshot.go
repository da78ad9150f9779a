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
)

// Capture geometry constants. The padded clip adds breathing room around the
// element; the later tiers cap oversized regions so one giant section cannot
// produce an unusable image.
const (
	clipPadding         = 10.0
	clipMinHeight       = 200.0
	clipHeightSlack     = 40.0
	tallElementHeight   = 1000.0
	conservativeMaxH    = 800.0
	contentBoundsMaxH   = 1000.0
	fallbackBoundsMaxW  = 900.0
	fallbackBoundsMaxH  = 800.0
	postScrollMaxWidth  = 900.0
	postScrollMaxHeight = 600.0
)

// errStrategyInapplicable marks a strategy that does not apply to the
// element (as opposed to one that was tried and failed).
var errStrategyInapplicable = errors.New("strategy not applicable")

// captureStrategy is one tier of the fallback chain. Strategies are tried
// in order; any error falls through to the next tier.
type captureStrategy struct {
	name string
	run  func(ctx context.Context, page Page, v *Variation) ([]byte, error)
}

var captureStrategies = []captureStrategy{
	{name: "padded clip", run: capturePaddedClip},
	{name: "conservative clip", run: captureConservativeClip},
	{name: "content-aware clip", run: captureContentAwareClip},
	{name: "raw element", run: captureRawElement},
}

// CaptureVariation produces a screenshot of the variation using an ordered
// chain of capture strategies, each attempted only when the previous one
// errored or did not apply. It returns the encoded image of the first
// successful tier, or an error when every tier fails; callers treat that as
// "skip this variation's screenshot", never as a fatal condition.
func CaptureVariation(ctx context.Context, page Page, v *Variation) ([]byte, error) {
	var lastErr error
	for _, strategy := range captureStrategies {
		img, err := strategy.run(ctx, page, v)
		if err == nil {
			return img, nil
		}
		if !errors.Is(err, errStrategyInapplicable) {
			log.Printf("varsnap: %s capture failed for %s: %v", strategy.name, v.Selector, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all capture strategies failed: %w", lastErr)
}

// capturePaddedClip is the preferred tier: a full-page screenshot clipped to
// the element's box plus fixed padding, clamped to the viewport width and
// with a floor on the clip height.
func capturePaddedClip(ctx context.Context, page Page, v *Variation) ([]byte, error) {
	visible, err := page.IsVisible(ctx, v.Selector)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, fmt.Errorf("element %s is not visible", v.Selector)
	}
	box, err := page.Box(ctx, v.Selector)
	if err != nil {
		return nil, err
	}
	if box == nil {
		return nil, fmt.Errorf("element %s has no layout box", v.Selector)
	}
	viewport, err := page.Viewport(ctx)
	if err != nil {
		return nil, err
	}

	clip := Rect{
		X: maxFloat(0, box.X-clipPadding),
		Y: maxFloat(0, box.Y-clipPadding),
	}
	clip.Width = minFloat(box.Width+2*clipPadding, viewport.Width-clip.X)
	clip.Height = maxFloat(clipMinHeight, box.Height+clipHeightSlack)

	if clip.Width <= 10 || clip.Height <= 10 || clip.X+clip.Width > viewport.Width {
		return nil, fmt.Errorf("clip %+v does not fit viewport width %.0f", clip, viewport.Width)
	}
	return page.CaptureClip(ctx, clip)
}

// captureConservativeClip applies only to very tall elements: clip to the
// element's own bounds with the height capped, avoiding the padded math
// that tends to overflow on oversized sections.
func captureConservativeClip(ctx context.Context, page Page, v *Variation) ([]byte, error) {
	box, err := page.Box(ctx, v.Selector)
	if err != nil {
		return nil, err
	}
	if box == nil || box.Height <= tallElementHeight {
		return nil, errStrategyInapplicable
	}
	return page.CaptureClip(ctx, Rect{
		X:      box.X,
		Y:      box.Y,
		Width:  box.Width,
		Height: minFloat(box.Height, conservativeMaxH),
	})
}

// captureContentAwareClip scans the element's descendants for visible nodes
// with meaningful content and clips to their union. When no qualifying
// descendant exists, the element's own bounds are used with tighter caps.
// The region is re-scrolled into view and recomputed before capture; when
// the recomputed top lands outside the viewport's vertical bounds, the tier
// falls through.
func captureContentAwareClip(ctx context.Context, page Page, v *Variation) ([]byte, error) {
	bounds, err := page.ContentBounds(ctx, v.Selector)
	if err != nil {
		return nil, err
	}
	if bounds != nil {
		bounds.Height = minFloat(bounds.Height, contentBoundsMaxH)
	} else {
		box, err := page.Box(ctx, v.Selector)
		if err != nil {
			return nil, err
		}
		if box == nil {
			return nil, fmt.Errorf("element %s has no layout box", v.Selector)
		}
		bounds = &Rect{
			X:      box.X,
			Y:      box.Y,
			Width:  minFloat(box.Width, fallbackBoundsMaxW),
			Height: minFloat(box.Height, fallbackBoundsMaxH),
		}
	}

	recomputed, err := page.ScrollIntoView(ctx, v.Selector)
	if err != nil {
		return nil, err
	}
	if recomputed == nil {
		recomputed = bounds
	}
	clip := Rect{
		X:      recomputed.X,
		Y:      recomputed.Y,
		Width:  minFloat(recomputed.Width, postScrollMaxWidth),
		Height: minFloat(recomputed.Height, postScrollMaxHeight),
	}

	viewport, err := page.Viewport(ctx)
	if err != nil {
		return nil, err
	}
	if clip.Y < viewport.Y || clip.Y > viewport.Y+viewport.Height {
		return nil, fmt.Errorf("recomputed top %.0f outside viewport [%.0f, %.0f]",
			clip.Y, viewport.Y, viewport.Y+viewport.Height)
	}
	return page.CaptureClip(ctx, clip)
}

// captureRawElement is the final tier: the element's own rendering
// boundary, no clipping math.
func captureRawElement(ctx context.Context, page Page, v *Variation) ([]byte, error) {
	return page.CaptureElement(ctx, v.Selector)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
