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
	"fmt"
	"log"
)

// ScanPage enumerates all elements matching selector on the rendered page,
// fingerprints and filters them, and returns the accepted variations in
// enumeration (document) order.
//
// Per-element extraction fails open: a snapshot error logs and skips that
// single element, never aborting the scan. Within one scan no two returned
// variations share a fingerprint key; a candidate whose key was already
// accepted is skipped silently (this is how overlapping selector matches of
// the same element are collapsed). The class-prefix filter runs after the
// dedup-key check, and keys are marked seen only for accepted candidates.
func ScanPage(ctx context.Context, page Page, selector, variationClassPrefix string) ([]Variation, error) {
	elements, err := page.Query(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", selector, err)
	}

	processedElements := make(map[string]bool, len(elements))
	variations := make([]Variation, 0, len(elements))

	for i, element := range elements {
		snap, err := element.Snapshot(ctx)
		if err != nil {
			log.Printf("varsnap: skipping element %d of %q: %v", i, selector, err)
			continue
		}

		key, v := Fingerprint(snap)
		if processedElements[key] {
			continue
		}
		if !AcceptVariation(v, variationClassPrefix) {
			continue
		}

		processedElements[key] = true
		v.Index = len(variations)
		variations = append(variations, *v)
	}

	return variations, nil
}
