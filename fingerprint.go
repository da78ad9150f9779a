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
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// maxTextContentLen caps Variation.TextContent.
	maxTextContentLen = 150
	// maxAltLen caps a single image alt descriptor.
	maxAltLen = 50
	// shortTextThreshold is the text length below which image descriptors
	// replace the element text entirely.
	shortTextThreshold = 20
	// textPrefixLen is the leading text kept when images supplement a
	// longer text summary.
	textPrefixLen = 30
)

var nthChildPattern = regexp.MustCompile(`:nth-child\(\d+\)`)

// Fingerprint derives the deduplication key and a populated Variation shell
// from a raw element snapshot. It is a pure transformation: no filtering is
// applied and no state is touched.
//
// The key is a heuristic, not a structural hash: two elements with the same
// tag, raw class string and rounded x/y position are considered the same
// element even when the selector enumerates them twice (overlapping
// ancestor/descendant matches). Missing coordinates count as 0.
func Fingerprint(snap *RawElementSnapshot) (string, *Variation) {
	tag := strings.ToLower(strings.TrimSpace(snap.TagName))

	var x, y float64
	if snap.Box != nil {
		x, y = snap.Box.X, snap.Box.Y
	}
	key := tag + "|" + snap.ClassAttr + "|" +
		strconv.Itoa(int(math.Round(x))) + "," + strconv.Itoa(int(math.Round(y)))

	position := snap.SiblingPosition
	if position < 1 {
		position = 1
	}
	base := stripNthChild(snap.Selector)
	nth := fmt.Sprintf(":nth-child(%d)", position)

	v := &Variation{
		Selector:       replaceTagWildcard(base, tag) + nth,
		ActualSelector: base + nth,
		Digest:         KeyDigest(key),
		TagName:        tag,
		ClassNames:     splitClassAttr(snap.ClassAttr),
		TextContent:    truncate(summarizeText(snap.Text, snap.Images), maxTextContentLen),
		BoundingBox:    snap.Box,
		AnchorInfo:     buildAnchorInfo(snap),
	}
	return key, v
}

// KeyDigest returns a short stable hex digest of a fingerprint key, used for
// screenshot file naming.
func KeyDigest(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

// stripNthChild removes any pre-existing :nth-child clause from a selector
// so a fresh positional clause can be appended.
func stripNthChild(selector string) string {
	return nthChildPattern.ReplaceAllString(selector, "")
}

// replaceTagWildcard substitutes the concrete tag for each universal selector
// in tag position. A * inside an attribute block or a quoted string, such as
// the substring operator in a[href*="buy"], is left untouched.
func replaceTagWildcard(selector, tag string) string {
	var b strings.Builder
	depth := 0
	var quote byte
	for i := 0; i < len(selector); i++ {
		ch := selector[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '[':
			depth++
		case ch == ']':
			if depth > 0 {
				depth--
			}
		case ch == '*' && depth == 0 && atTagPosition(selector, i):
			b.WriteString(tag)
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// atTagPosition reports whether a * at index i starts a compound selector,
// meaning it follows nothing but a combinator or whitespace.
func atTagPosition(selector string, i int) bool {
	if i == 0 {
		return true
	}
	switch selector[i-1] {
	case ' ', '\t', '>', '+', '~', ',', '(':
		return true
	}
	return false
}

// splitClassAttr splits a raw class attribute into its non-empty tokens,
// preserving source order and duplicates.
func splitClassAttr(classAttr string) []string {
	return strings.Fields(classAttr)
}

// summarizeText produces the human-readable text summary for an element.
// Elements containing images substitute "[Image: <alt-or-filename>]" tokens
// when their own text is brief or absent, and append the descriptors in
// parentheses otherwise.
func summarizeText(text string, images []ImageInfo) string {
	trimmed := strings.TrimSpace(text)
	if len(images) == 0 {
		return trimmed
	}

	descriptors := make([]string, 0, len(images))
	for _, img := range images {
		descriptors = append(descriptors, imageDescriptor(img))
	}
	joined := strings.Join(descriptors, ", ")

	if len([]rune(trimmed)) < shortTextThreshold {
		return joined
	}
	return truncateRunes(trimmed, textPrefixLen) + "... (" + joined + ")"
}

// imageDescriptor renders one image as "[Image: <alt-or-filename>]", falling
// back to the literal "[Image]" when neither is available.
func imageDescriptor(img ImageInfo) string {
	if alt := strings.TrimSpace(img.Alt); alt != "" {
		if len([]rune(alt)) > maxAltLen {
			alt = truncateRunes(alt, maxAltLen) + "..."
		}
		return "[Image: " + alt + "]"
	}
	if name := imageFilename(img.Src); name != "" {
		return "[Image: " + name + "]"
	}
	return "[Image]"
}

// imageFilename derives a display name from an image source's final path
// segment, with any query string removed.
func imageFilename(src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	src = strings.TrimRight(src, "/")
	if i := strings.LastIndex(src, "/"); i >= 0 {
		src = src[i+1:]
	}
	return src
}

// buildAnchorInfo copies id and fragment data from the snapshot, keeping
// heading ids out of the other-id list.
func buildAnchorInfo(snap *RawElementSnapshot) AnchorInfo {
	headings := make(map[string]bool, len(snap.HeadingIDs))
	for _, id := range snap.HeadingIDs {
		headings[id] = true
	}
	var others []string
	for _, id := range snap.OtherIDs {
		if id != "" && !headings[id] {
			others = append(others, id)
		}
	}
	return AnchorInfo{
		ElementID:   snap.OwnID,
		HeadingIDs:  snap.HeadingIDs,
		OtherIDs:    others,
		AnchorLinks: snap.AnchorLinks,
	}
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return truncateRunes(s, n)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
