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

import (
	"encoding/json"
	"fmt"

	"github.com/varsnap/varsnap"
)

// SaveVariations persists the run's variations in a single batch.
func (s *Store) SaveVariations(runID uint, variations []varsnap.Variation) error {
	if len(variations) == 0 {
		return nil
	}
	records := make([]VariationRecord, 0, len(variations))
	for i := range variations {
		v := &variations[i]
		rec := VariationRecord{
			RunID:          runID,
			GlobalIndex:    v.GlobalIndex,
			PageIndex:      v.PageIndex,
			PageURL:        v.PageURL,
			Selector:       v.Selector,
			ActualSelector: v.ActualSelector,
			TagName:        v.TagName,
			ClassSignature: v.ClassSignature(),
			TextContent:    v.TextContent,
			ScreenshotPath: v.ScreenshotPath,
		}
		if v.BoundingBox != nil {
			if data, err := json.Marshal(v.BoundingBox); err == nil {
				rec.BoundingBox = string(data)
			}
		}
		if data, err := json.Marshal(v.AnchorInfo); err == nil {
			rec.AnchorInfo = string(data)
		}
		records = append(records, rec)
	}
	if err := s.db.Create(&records).Error; err != nil {
		return fmt.Errorf("failed to save variations: %v", err)
	}
	return nil
}

// SaveFailures persists the run's page failures.
func (s *Store) SaveFailures(runID uint, failures []varsnap.PageFailure) error {
	if len(failures) == 0 {
		return nil
	}
	records := make([]PageFailureRecord, 0, len(failures))
	for _, f := range failures {
		records = append(records, PageFailureRecord{
			RunID: runID,
			URL:   f.URL,
			Error: f.Error,
		})
	}
	if err := s.db.Create(&records).Error; err != nil {
		return fmt.Errorf("failed to save page failures: %v", err)
	}
	return nil
}

// GetRunVariations gets all variations for a run in discovery order.
func (s *Store) GetRunVariations(runID uint) ([]VariationRecord, error) {
	var records []VariationRecord
	result := s.db.Where("run_id = ?", runID).Order("global_index ASC").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get run variations: %v", result.Error)
	}
	return records, nil
}

// SearchVariations filters a run's variations by class signature or text.
func (s *Store) SearchVariations(runID uint, query string) ([]VariationRecord, error) {
	db := s.db.Where("run_id = ?", runID)
	if query != "" {
		pattern := "%" + query + "%"
		db = db.Where("(class_signature LIKE ? OR text_content LIKE ? OR page_url LIKE ?)",
			pattern, pattern, pattern)
	}
	var records []VariationRecord
	result := db.Order("global_index ASC").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to search variations: %v", result.Error)
	}
	return records, nil
}
