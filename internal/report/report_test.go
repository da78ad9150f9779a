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

package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/varsnap/varsnap"
)

func TestGroupBySignature(t *testing.T) {
	variations := []varsnap.Variation{
		{GlobalIndex: 0, ClassNames: []string{"card"}},
		{GlobalIndex: 1, ClassNames: []string{"hero"}},
		{GlobalIndex: 2, ClassNames: []string{"card"}},
		{GlobalIndex: 3, ClassNames: []string{"card"}},
	}

	groups := GroupBySignature(variations)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Signature != "card" || len(groups[0].Variations) != 3 {
		t.Errorf("largest group first: %+v", groups[0])
	}
	// Discovery order inside groups.
	if groups[0].Variations[0].GlobalIndex != 0 || groups[0].Variations[2].GlobalIndex != 3 {
		t.Errorf("group order broken: %+v", groups[0].Variations)
	}
}

func TestReportFileName(t *testing.T) {
	cases := []struct {
		url, want string
	}{
		{"https://example.com/path", "example-com.html"},
		{"https://sub.example.com", "sub-example-com.html"},
		{"not a url", "report.html"},
		{"", "report.html"},
	}
	for _, tc := range cases {
		if got := ReportFileName(tc.url); got != tc.want {
			t.Errorf("ReportFileName(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestSourceLink(t *testing.T) {
	v := varsnap.Variation{
		PageURL:    "https://example.com/about",
		AnchorInfo: varsnap.AnchorInfo{ElementID: "team"},
	}
	if got := SourceLink(v); got != "https://example.com/about#team" {
		t.Errorf("SourceLink() = %q", got)
	}

	v.AnchorInfo = varsnap.AnchorInfo{}
	if got := SourceLink(v); got != "https://example.com/about" {
		t.Errorf("SourceLink() without fragment = %q", got)
	}

	if got := SourceLink(varsnap.Variation{}); got != "" {
		t.Errorf("SourceLink() without page URL = %q", got)
	}
}

func TestGenerate(t *testing.T) {
	outDir := t.TempDir()

	result := &varsnap.CrawlResult{
		Variations: []varsnap.Variation{
			{
				PageURL:     "https://example.com/",
				TagName:     "div",
				ClassNames:  []string{"wp-block-group", "alignwide"},
				TextContent: "Group block content",
			},
		},
		FailedURLs: []varsnap.PageFailure{
			{URL: "https://example.com/broken", Error: "timeout"},
		},
		Stats: varsnap.CrawlStats{TotalPages: 2, SuccessfulPages: 1, TotalVariations: 1},
	}

	htmlPath, err := Generate(result, Meta{
		StartURL: "https://example.com",
		Selector: ".wp-block-group",
	}, outDir)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if filepath.Base(htmlPath) != "example-com.html" {
		t.Errorf("report path = %q", htmlPath)
	}

	html, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	for _, fragment := range []string{
		"wp-block-group alignwide",
		"Group block content",
		"https://example.com/broken",
		"1 variations across 1/2 pages",
	} {
		if !strings.Contains(string(html), fragment) {
			t.Errorf("report missing %q", fragment)
		}
	}

	if _, err := os.Stat(filepath.Join(outDir, "variations.json")); err != nil {
		t.Errorf("variations.json not written: %v", err)
	}
}

func TestGenerateScreenshotLinksRelativeToReport(t *testing.T) {
	// Scan output layout: screenshots/ and report/ are siblings under the
	// working directory, so thumbnails must climb out of the report dir.
	t.Chdir(t.TempDir())

	result := &varsnap.CrawlResult{
		Variations: []varsnap.Variation{
			{
				TagName:        "div",
				ClassNames:     []string{"card"},
				ScreenshotPath: filepath.Join("screenshots", "variation-0000-abc.png"),
			},
		},
		Stats: varsnap.CrawlStats{TotalPages: 1, SuccessfulPages: 1, TotalVariations: 1},
	}

	htmlPath, err := Generate(result, Meta{StartURL: "https://example.com"}, "report")
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	html, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if !strings.Contains(string(html), `src="../screenshots/variation-0000-abc.png"`) {
		t.Errorf("img src not rewritten relative to report dir:\n%s", html)
	}

	// The JSON dump keeps the original working-directory-relative path.
	encoded, err := os.ReadFile(filepath.Join("report", "variations.json"))
	if err != nil {
		t.Fatalf("reading variations.json: %v", err)
	}
	if !strings.Contains(string(encoded), filepath.ToSlash(result.Variations[0].ScreenshotPath)) {
		t.Errorf("variations.json path rewritten: %s", encoded)
	}
}
