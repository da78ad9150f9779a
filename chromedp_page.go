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
	"encoding/json"
	"fmt"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// RenderOptions controls page settling behavior after navigation.
type RenderOptions struct {
	// InitialWaitMs is the fixed wait after page load, giving JavaScript
	// frameworks time to hydrate. Default 1500ms.
	InitialWaitMs int
	// StabilizeWaitMs bounds the best-effort content-stabilization wait
	// (fonts/idle). It is allowed to time out without failing the
	// navigation. Default 3000ms.
	StabilizeWaitMs int
	// NavigationTimeoutMs bounds a single navigation. Default 30000ms.
	NavigationTimeoutMs int
}

// NewDefaultRenderOptions returns the default settle configuration.
func NewDefaultRenderOptions() *RenderOptions {
	return &RenderOptions{
		InitialWaitMs:       1500,
		StabilizeWaitMs:     3000,
		NavigationTimeoutMs: 30000,
	}
}

// ChromeBrowser implements Browser on a headless Chrome instance shared by
// all pages it creates.
type ChromeBrowser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	render      *RenderOptions
}

// NewChromeBrowser starts a headless Chrome allocator. Close must be called
// when the browser is no longer needed.
func NewChromeBrowser(render *RenderOptions) *ChromeBrowser {
	if render == nil {
		render = NewDefaultRenderOptions()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromeBrowser{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		render:      render,
	}
}

// NewPage opens a fresh browser tab.
func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.allocCtx)
	// Start the tab eagerly so acquisition errors surface here rather than
	// on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("starting browser tab: %w", err)
	}
	return &chromePage{
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		render:    b.render,
	}, nil
}

// Close tears down the Chrome allocator and every tab created from it.
func (b *ChromeBrowser) Close() error {
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}

// chromePage implements Page on one chromedp tab.
type chromePage struct {
	tabCtx     context.Context
	tabCancel  context.CancelFunc
	render     *RenderOptions
	currentURL string
}

func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := p.tabCtx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	timeout := time.Duration(p.render.NavigationTimeoutMs) * time.Millisecond
	err := p.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(time.Duration(p.render.InitialWaitMs)*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	p.currentURL = url
	if actual, err := p.evalString(ctx, `window.location.href`); err == nil && actual != "" {
		p.currentURL = actual
	}

	// Best-effort stabilization: waiting for fonts settles most late layout
	// shifts. A timeout here never fails the navigation.
	stabilize := time.Duration(p.render.StabilizeWaitMs) * time.Millisecond
	_ = p.run(ctx, stabilize, chromedp.Evaluate(
		`document.fonts ? document.fonts.ready.then(() => true) : true`,
		nil, awaitPromise,
	))
	return nil
}

func (p *chromePage) URL() string {
	return p.currentURL
}

func (p *chromePage) Query(ctx context.Context, selector string) ([]Element, error) {
	var count int
	js := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &count)); err != nil {
		return nil, fmt.Errorf("counting %q: %w", selector, err)
	}
	elements := make([]Element, count)
	for i := range elements {
		elements[i] = &chromeElement{page: p, selector: selector, index: i}
	}
	return elements, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page HTML: %w", err)
	}
	return html, nil
}

func (p *chromePage) Viewport(ctx context.Context) (Rect, error) {
	var vp Rect
	js := `({x: window.scrollX, y: window.scrollY, width: window.innerWidth, height: window.innerHeight})`
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &vp)); err != nil {
		return Rect{}, fmt.Errorf("reading viewport: %w", err)
	}
	return vp, nil
}

func (p *chromePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	})()`, jsString(selector))
	var visible bool
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

func (p *chromePage) Box(ctx context.Context, selector string) (*Rect, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		if (r.width === 0 && r.height === 0) return null;
		return {x: r.x + window.scrollX, y: r.y + window.scrollY, width: r.width, height: r.height};
	})()`, jsString(selector))
	var box *Rect
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &box)); err != nil {
		return nil, err
	}
	return box, nil
}

func (p *chromePage) ContentBounds(ctx context.Context, selector string) (*Rect, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return null;
		const nodes = Array.from(el.querySelectorAll('*')).filter(n => {
			const r = n.getBoundingClientRect();
			if (r.width <= 0 || r.height <= 0) return false;
			const style = window.getComputedStyle(n);
			if (style.display === 'none' || style.visibility === 'hidden') return false;
			const text = (n.innerText || '').trim();
			return text.length > 5 || n.tagName === 'IMG' || n.querySelector('img') !== null;
		});
		if (nodes.length === 0) return null;
		let left = Infinity, top = Infinity, right = -Infinity, bottom = -Infinity;
		for (const n of nodes) {
			const r = n.getBoundingClientRect();
			left = Math.min(left, r.left);
			top = Math.min(top, r.top);
			right = Math.max(right, r.right);
			bottom = Math.max(bottom, r.bottom);
		}
		return {x: left + window.scrollX, y: top + window.scrollY, width: right - left, height: bottom - top};
	})()`, jsString(selector))
	var bounds *Rect
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &bounds)); err != nil {
		return nil, err
	}
	return bounds, nil
}

func (p *chromePage) ScrollIntoView(ctx context.Context, selector string) (*Rect, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return null;
		el.scrollIntoView({block: 'center', inline: 'nearest'});
		const r = el.getBoundingClientRect();
		return {x: r.x + window.scrollX, y: r.y + window.scrollY, width: r.width, height: r.height};
	})()`, jsString(selector))
	var box *Rect
	err := p.run(ctx, 0,
		chromedp.Evaluate(js, &box),
		chromedp.Sleep(250*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}
	return box, nil
}

func (p *chromePage) HideFixedOverlays(ctx context.Context) error {
	js := `(() => {
		let hidden = 0;
		for (const el of document.querySelectorAll('body *')) {
			const style = window.getComputedStyle(el);
			const z = parseInt(style.zIndex, 10) || 0;
			if ((style.position === 'fixed' || style.position === 'sticky') && z >= 100) {
				el.style.setProperty('visibility', 'hidden', 'important');
				hidden++;
			}
		}
		return hidden;
	})()`
	var hidden int
	return p.run(ctx, 0, chromedp.Evaluate(js, &hidden))
}

func (p *chromePage) CaptureClip(ctx context.Context, clip Rect) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = cdppage.CaptureScreenshot().
			WithClip(&cdppage.Viewport{
				X:      clip.X,
				Y:      clip.Y,
				Width:  clip.Width,
				Height: clip.Height,
				Scale:  1,
			}).
			WithCaptureBeyondViewport(true).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("clipped capture: %w", err)
	}
	return buf, nil
}

func (p *chromePage) CaptureElement(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, 0, chromedp.Screenshot(selector, &buf, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("element capture: %w", err)
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	if p.tabCancel != nil {
		p.tabCancel()
		p.tabCancel = nil
	}
	return nil
}

func (p *chromePage) evalString(ctx context.Context, js string) (string, error) {
	var out string
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &out)); err != nil {
		return "", err
	}
	return out, nil
}

// chromeElement addresses one match of a selector by its enumeration index.
type chromeElement struct {
	page     *chromePage
	selector string
	index    int
}

// Snapshot extracts the raw element data in a single in-page evaluation.
func (e *chromeElement) Snapshot(ctx context.Context) (*RawElementSnapshot, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelectorAll(%s)[%d];
		if (!el) return null;
		const r = el.getBoundingClientRect();
		const parent = el.parentElement;
		const pos = parent ? Array.prototype.indexOf.call(parent.children, el) + 1 : 1;
		const images = Array.from(el.querySelectorAll('img')).map(img => ({
			alt: img.getAttribute('alt') || '',
			src: img.getAttribute('src') || ''
		}));
		const headingIds = Array.from(el.querySelectorAll('h1[id],h2[id],h3[id],h4[id],h5[id],h6[id]'))
			.map(h => h.id).filter(id => id !== '');
		const otherIds = Array.from(el.querySelectorAll('[id]'))
			.map(n => n.id).filter(id => id !== '' && !headingIds.includes(id));
		const anchorLinks = Array.from(el.querySelectorAll('a[href^="#"]'))
			.map(a => a.getAttribute('href'));
		return {
			tagName: el.tagName,
			classAttr: el.getAttribute('class') || '',
			text: el.innerText || el.textContent || '',
			selector: %s,
			siblingPosition: pos,
			box: (r.width === 0 && r.height === 0) ? null :
				{x: r.x + window.scrollX, y: r.y + window.scrollY, width: r.width, height: r.height},
			images: images,
			ownId: el.id || '',
			headingIds: headingIds,
			otherIds: otherIds,
			anchorLinks: anchorLinks
		};
	})()`, jsString(e.selector), e.index, jsString(e.selector))

	var snap *RawElementSnapshot
	if err := e.page.run(ctx, 0, chromedp.Evaluate(js, &snap)); err != nil {
		return nil, fmt.Errorf("extracting element %d of %q: %w", e.index, e.selector, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("element %d of %q vanished before extraction", e.index, e.selector)
	}
	return snap, nil
}

// jsString renders a Go string as a safely quoted JavaScript literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
