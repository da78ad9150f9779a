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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/varsnap/varsnap"
	"github.com/varsnap/varsnap/internal/report"
	"github.com/varsnap/varsnap/internal/store"
)

// printJSON writes the crawl result as indented JSON.
func printJSON(w io.Writer, result *varsnap.CrawlResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// writeReport renders the HTML report and JSON summary into reportDir.
func writeReport(result *varsnap.CrawlResult, startURL, selector, classPrefix, reportDir string) (string, error) {
	reportPath, err := report.Generate(result, report.Meta{
		StartURL:    startURL,
		Selector:    selector,
		ClassPrefix: classPrefix,
	}, reportDir)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %v", err)
	}
	return reportPath, nil
}

// saveRun records the run in the local history database. Persistence
// problems are reported as warnings; the scan output already exists on disk.
func saveRun(startURL, selector, classPrefix string, startURLs []string, result *varsnap.CrawlResult, duration time.Duration, reportPath string, quiet bool) {
	st, err := store.NewStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to open run history: %v\n", err)
		return
	}

	run, err := st.CreateRun(startURL, selector, classPrefix, startURLs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record run: %v\n", err)
		return
	}
	if err := st.SaveVariations(run.ID, result.Variations); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record variations: %v\n", err)
	}
	if err := st.SaveFailures(run.ID, result.FailedURLs); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record failures: %v\n", err)
	}
	if err := st.FinishRun(run.ID, store.RunStateCompleted,
		result.Stats.TotalPages, result.Stats.SuccessfulPages, result.Stats.TotalVariations,
		duration.Milliseconds(), reportPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to finalize run: %v\n", err)
	}

	if !quiet {
		fmt.Printf("Run ID: %d\n", run.ID)
	}
}
