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

import "testing"

func TestAcceptVariation(t *testing.T) {
	cases := []struct {
		name    string
		classes []string
		prefix  string
		want    bool
	}{
		{"EmptyPrefixAcceptsAll", nil, "", true},
		{"EmptyPrefixAcceptsAnyClasses", []string{"whatever__part"}, "", true},
		{"FamilyClassAccepted", []string{"wp-block-button"}, "wp-block", true},
		{"SubBlockRejected", []string{"wp-block-button__link"}, "wp-block", false},
		{"SubBlockPoisonsCleanSibling", []string{"wp-block-button", "wp-block-button__link"}, "wp-block", false},
		{"NoFamilyClassRejected", []string{"btn", "btn-primary"}, "wp-block", false},
		{"FamilyClassAmongOthers", []string{"alignwide", "wp-block-group"}, "wp-block", true},
		{"ForeignDoubleUnderscoreIgnored", []string{"wp-block-group", "theme__decoration"}, "wp-block", true},
		{"PrefixMatchesAnywhereInToken", []string{"my-wp-block-card"}, "wp-block", true},
		{"NoClassesRejected", nil, "wp-block", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &Variation{ClassNames: tc.classes}
			if got := AcceptVariation(v, tc.prefix); got != tc.want {
				t.Errorf("AcceptVariation(%v, %q) = %v, want %v", tc.classes, tc.prefix, got, tc.want)
			}
		})
	}
}
