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

import "strings"

// AcceptVariation decides whether a fingerprinted candidate qualifies as a
// tracked variation under the given class prefix.
//
// An empty prefix accepts everything. Otherwise the candidate must carry at
// least one class token containing the prefix, and no prefix-matching token
// may contain the "__" sub-element marker: the prefix identifies a component
// family (e.g. "wp-block-") and the double-underscore convention marks
// internal sub-parts that would flood the report if surfaced as top-level
// variations. A single "__" class anywhere in the set blocks acceptance
// even when a clean family class is also present.
//
// AcceptVariation must run strictly after the fingerprint dedup check; see
// ScanPage for the ordering.
func AcceptVariation(v *Variation, variationClassPrefix string) bool {
	if variationClassPrefix == "" {
		return true
	}

	hasTargetClass := false
	hasSubBlockClass := false
	for _, class := range v.ClassNames {
		if !strings.Contains(class, variationClassPrefix) {
			continue
		}
		hasTargetClass = true
		if strings.Contains(class, "__") {
			hasSubBlockClass = true
		}
	}
	return hasTargetClass && !hasSubBlockClass
}
