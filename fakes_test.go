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

// fakeElement returns a scripted snapshot.
type fakeElement struct {
	snap *RawElementSnapshot
	err  error
}

func (e *fakeElement) Snapshot(ctx context.Context) (*RawElementSnapshot, error) {
	return e.snap, e.err
}

// fakePage is a scriptable Page. Per-URL content comes from the snapshots
// and htmlBody hooks; geometry and capture behavior come from the maps and
// error fields. Zero values give an empty but functional page.
type fakePage struct {
	url      string
	navErr   map[string]error
	queryErr error

	snapshots func(url, selector string) []Element
	htmlBody  func(url string) string

	viewport      Rect
	invisible     map[string]bool
	boxes         map[string]*Rect
	contentRects  map[string]*Rect
	scrollRects   map[string]*Rect
	scrollErr     error
	clipErr       error
	elementShot   []byte
	elementErr    error
	hideErr       error

	navigations []string
	clips       []Rect
	closeCount  int
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navigations = append(p.navigations, url)
	if err := p.navErr[url]; err != nil {
		return err
	}
	p.url = url
	return nil
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Query(ctx context.Context, selector string) ([]Element, error) {
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if p.snapshots == nil {
		return nil, nil
	}
	return p.snapshots(p.url, selector), nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	if p.htmlBody == nil {
		return "", nil
	}
	return p.htmlBody(p.url), nil
}

func (p *fakePage) Viewport(ctx context.Context) (Rect, error) {
	if p.viewport == (Rect{}) {
		return Rect{Width: 1280, Height: 800}, nil
	}
	return p.viewport, nil
}

func (p *fakePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	return !p.invisible[selector], nil
}

func (p *fakePage) Box(ctx context.Context, selector string) (*Rect, error) {
	return p.boxes[selector], nil
}

func (p *fakePage) ContentBounds(ctx context.Context, selector string) (*Rect, error) {
	return p.contentRects[selector], nil
}

func (p *fakePage) ScrollIntoView(ctx context.Context, selector string) (*Rect, error) {
	if p.scrollErr != nil {
		return nil, p.scrollErr
	}
	if r := p.scrollRects[selector]; r != nil {
		return r, nil
	}
	return p.boxes[selector], nil
}

func (p *fakePage) HideFixedOverlays(ctx context.Context) error { return p.hideErr }

func (p *fakePage) CaptureClip(ctx context.Context, clip Rect) ([]byte, error) {
	p.clips = append(p.clips, clip)
	if p.clipErr != nil {
		return nil, p.clipErr
	}
	return []byte("clip-image"), nil
}

func (p *fakePage) CaptureElement(ctx context.Context, selector string) ([]byte, error) {
	if p.elementErr != nil {
		return nil, p.elementErr
	}
	if p.elementShot != nil {
		return p.elementShot, nil
	}
	return []byte("element-image"), nil
}

func (p *fakePage) Close() error {
	p.closeCount++
	return nil
}

// fakeBrowser hands out a single shared fakePage.
type fakeBrowser struct {
	page         *fakePage
	newPageErr   error
	newPageCount int
	closed       bool
}

func (b *fakeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.newPageCount++
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

// fakeSitemap returns scripted URL lists per base URL.
type fakeSitemap struct {
	urls map[string][]string
	err  error
}

func (f *fakeSitemap) FetchURLs(ctx context.Context, baseURL string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.urls[baseURL], nil
}

// snapshotsFor adapts a per-URL snapshot table into the fakePage hook.
func snapshotsFor(table map[string][]*RawElementSnapshot) func(url, selector string) []Element {
	return func(url, selector string) []Element {
		snaps := table[url]
		elements := make([]Element, 0, len(snaps))
		for _, s := range snaps {
			elements = append(elements, &fakeElement{snap: s})
		}
		return elements
	}
}
