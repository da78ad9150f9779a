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

// Package report renders crawl results into a self-contained HTML gallery
// plus a machine-readable JSON summary.
package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kennygrant/sanitize"

	"github.com/varsnap/varsnap"
)

// Meta carries run parameters into the report header.
type Meta struct {
	StartURL    string
	Selector    string
	ClassPrefix string
	GeneratedAt time.Time
}

// Group is one class-signature bucket of variations.
type Group struct {
	Signature  string
	Variations []varsnap.Variation
}

type reportData struct {
	Meta   Meta
	Stats  varsnap.CrawlStats
	Groups []Group
	Failed []varsnap.PageFailure
}

// Generate writes report.html and variations.json into outputDir and returns
// the path of the HTML report.
func Generate(result *varsnap.CrawlResult, meta Meta, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}

	data := reportData{
		Meta:   meta,
		Stats:  result.Stats,
		Groups: GroupBySignature(relativeScreenshots(result.Variations, outputDir)),
		Failed: result.FailedURLs,
	}

	jsonPath := filepath.Join(outputDir, "variations.json")
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding variations: %w", err)
	}
	if err := os.WriteFile(jsonPath, encoded, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", jsonPath, err)
	}

	htmlPath := filepath.Join(outputDir, ReportFileName(meta.StartURL))
	f, err := os.Create(htmlPath)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", htmlPath, err)
	}
	defer f.Close()

	if err := reportTemplate.Execute(f, data); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return htmlPath, nil
}

// relativeScreenshots returns a copy of the variations with each screenshot
// path rewritten relative to the report directory, so the rendered <img>
// links resolve from the HTML file's own location rather than the process
// working directory. Paths that cannot be made relative are left as-is.
func relativeScreenshots(variations []varsnap.Variation, outputDir string) []varsnap.Variation {
	out := make([]varsnap.Variation, len(variations))
	copy(out, variations)
	for i := range out {
		if out[i].ScreenshotPath == "" {
			continue
		}
		rel, err := filepath.Rel(outputDir, out[i].ScreenshotPath)
		if err != nil {
			continue
		}
		out[i].ScreenshotPath = filepath.ToSlash(rel)
	}
	return out
}

// GroupBySignature buckets variations by their space-joined class token
// list. Groups are ordered by size (largest first), ties by signature, and
// variations inside a group keep discovery order.
func GroupBySignature(variations []varsnap.Variation) []Group {
	buckets := make(map[string][]varsnap.Variation)
	for _, v := range variations {
		sig := v.ClassSignature()
		buckets[sig] = append(buckets[sig], v)
	}
	groups := make([]Group, 0, len(buckets))
	for sig, vs := range buckets {
		groups = append(groups, Group{Signature: sig, Variations: vs})
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Variations) != len(groups[j].Variations) {
			return len(groups[i].Variations) > len(groups[j].Variations)
		}
		return groups[i].Signature < groups[j].Signature
	})
	return groups
}

// ReportFileName derives a filesystem-safe report name from the start URL's
// host, falling back to "report" when the URL cannot be parsed.
func ReportFileName(startURL string) string {
	host := "report"
	if u, err := url.Parse(startURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	base := sanitize.BaseName(host)
	if base == "" {
		base = "report"
	}
	return base + ".html"
}

// SourceLink returns the best link back to the variation's location on its
// page, appending an id fragment when one was recorded.
func SourceLink(v varsnap.Variation) string {
	if v.PageURL == "" {
		return ""
	}
	if frag := v.AnchorInfo.BestFragment(); frag != "" {
		return v.PageURL + "#" + frag
	}
	return v.PageURL
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"sourceLink": SourceLink,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Variations - {{.Meta.StartURL}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #1a1a2e; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.05rem; margin-top: 2rem; border-bottom: 1px solid #ddd; padding-bottom: .3rem; }
.meta, .stats { color: #555; font-size: .9rem; }
.card { display: inline-block; vertical-align: top; margin: .5rem; padding: .5rem;
        border: 1px solid #e0e0e0; border-radius: 6px; max-width: 460px; }
.card img { max-width: 440px; display: block; border: 1px solid #eee; }
.card .text { font-size: .85rem; margin: .4rem 0; }
.card .where { font-size: .75rem; color: #777; word-break: break-all; }
.failures { color: #a33; font-size: .85rem; }
code { background: #f4f4f6; padding: 0 .25rem; border-radius: 3px; }
</style>
</head>
<body>
<h1>Variation report</h1>
<p class="meta">
Start URL: <code>{{.Meta.StartURL}}</code><br>
Selector: <code>{{.Meta.Selector}}</code>{{if .Meta.ClassPrefix}}<br>
Class prefix: <code>{{.Meta.ClassPrefix}}</code>{{end}}<br>
Generated: {{.Meta.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}
</p>
<p class="stats">
{{.Stats.TotalVariations}} variations across {{.Stats.SuccessfulPages}}/{{.Stats.TotalPages}} pages.
</p>
{{range .Groups}}
<h2><code>{{if .Signature}}{{.Signature}}{{else}}(no class){{end}}</code> &times; {{len .Variations}}</h2>
{{range .Variations}}
<div class="card">
{{if .ScreenshotPath}}<img src="{{.ScreenshotPath}}" alt="{{.TextContent}}">{{end}}
<div class="text">{{.TextContent}}</div>
<div class="where">
<code>{{.Selector}}</code>
{{with sourceLink .}}<br><a href="{{.}}">view on page</a>{{end}}
</div>
</div>
{{end}}
{{end}}
{{if .Failed}}
<h2>Failed pages</h2>
<ul class="failures">
{{range .Failed}}<li><code>{{.URL}}</code>: {{.Error}}</li>{{end}}
</ul>
{{end}}
</body>
</html>
`))
