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

package store

import "encoding/json"

// Run state constants
const (
	RunStateInProgress = "in_progress"
	RunStateCompleted  = "completed"
	RunStateFailed     = "failed"
)

// Run represents one scan or crawl invocation against a site.
type Run struct {
	ID              uint   `gorm:"primaryKey"`
	StartURL        string `gorm:"not null"`
	Selector        string `gorm:"not null"`
	ClassPrefix     string `gorm:"type:text"`
	State           string `gorm:"not null;default:'completed'"`
	StartURLs       string `gorm:"type:text"` // JSON array of seed URLs
	TotalPages      int    `gorm:"not null;default:0"`
	SuccessfulPages int    `gorm:"not null;default:0"`
	TotalVariations int    `gorm:"not null;default:0"`
	DurationMs      int64  `gorm:"not null;default:0"`
	ReportPath      string `gorm:"type:text"`

	Variations []VariationRecord   `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	Failures   []PageFailureRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	CreatedAt  int64               `gorm:"autoCreateTime"`
	UpdatedAt  int64               `gorm:"autoUpdateTime"`
}

// GetStartURLsArray deserializes the StartURLs JSON to []string
func (r *Run) GetStartURLsArray() []string {
	if r.StartURLs == "" || r.StartURLs == "null" {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(r.StartURLs), &urls); err != nil {
		return nil
	}
	return urls
}

// SetStartURLsArray serializes []string to JSON for StartURLs
func (r *Run) SetStartURLsArray(urls []string) error {
	if len(urls) == 0 {
		r.StartURLs = ""
		return nil
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	r.StartURLs = string(data)
	return nil
}

// VariationRecord represents one deduplicated variation found during a run.
type VariationRecord struct {
	ID             uint   `gorm:"primaryKey"`
	RunID          uint   `gorm:"not null;index"`
	GlobalIndex    int    `gorm:"not null;default:0"`
	PageIndex      int    `gorm:"not null;default:0"`
	PageURL        string `gorm:"type:text"`
	Selector       string `gorm:"type:text"`
	ActualSelector string `gorm:"type:text"`
	TagName        string `gorm:"not null"`
	ClassSignature string `gorm:"type:text;index"`
	TextContent    string `gorm:"type:text"`
	ScreenshotPath string `gorm:"type:text"`
	BoundingBox    string `gorm:"type:text"` // JSON rect, empty when unavailable
	AnchorInfo     string `gorm:"type:text"` // JSON anchor data
	CreatedAt      int64  `gorm:"autoCreateTime"`
}

// PageFailureRecord represents a page that could not be scanned during a run.
type PageFailureRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     uint   `gorm:"not null;index"`
	URL       string `gorm:"not null"`
	Error     string `gorm:"type:text"`
	CreatedAt int64  `gorm:"autoCreateTime"`
}
