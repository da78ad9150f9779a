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
	"fmt"

	"gorm.io/gorm"
)

// CreateRun creates a new in-progress run record.
func (s *Store) CreateRun(startURL, selector, classPrefix string, startURLs []string) (*Run, error) {
	run := Run{
		StartURL:    startURL,
		Selector:    selector,
		ClassPrefix: classPrefix,
		State:       RunStateInProgress,
	}
	if err := run.SetStartURLsArray(startURLs); err != nil {
		return nil, fmt.Errorf("failed to serialize start URLs: %v", err)
	}

	if err := s.db.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to create run: %v", err)
	}
	return &run, nil
}

// FinishRun marks a run terminal and records its final statistics.
func (s *Store) FinishRun(runID uint, state string, totalPages, successfulPages, totalVariations int, durationMs int64, reportPath string) error {
	return s.db.Model(&Run{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"state":            state,
		"total_pages":      totalPages,
		"successful_pages": successfulPages,
		"total_variations": totalVariations,
		"duration_ms":      durationMs,
		"report_path":      reportPath,
	}).Error
}

// GetRunByID gets a run by ID with its variations and failures preloaded.
func (s *Store) GetRunByID(id uint) (*Run, error) {
	var run Run
	result := s.db.Preload("Variations").Preload("Failures").First(&run, id)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get run: %v", result.Error)
	}
	return &run, nil
}

// ListRuns returns all runs ordered by creation time, newest first.
func (s *Store) ListRuns() ([]Run, error) {
	var runs []Run
	result := s.db.Order("created_at DESC").Find(&runs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list runs: %v", result.Error)
	}
	return runs, nil
}

// GetLatestRun gets the most recent run, or nil when none exist.
func (s *Store) GetLatestRun() (*Run, error) {
	var run Run
	result := s.db.Order("created_at DESC").First(&run)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest run: %v", result.Error)
	}
	return &run, nil
}

// DeleteRun deletes a run and all its variations and failures (cascade)
func (s *Store) DeleteRun(runID uint) error {
	return s.db.Delete(&Run{}, runID).Error
}
