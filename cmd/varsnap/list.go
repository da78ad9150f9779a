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
	"flag"
	"fmt"
	"time"

	"github.com/varsnap/varsnap/internal/store"
)

func runList(args []string) error {
	if len(args) < 1 {
		printListUsage()
		return fmt.Errorf("list requires a subcommand: runs or run")
	}

	switch args[0] {
	case "runs":
		return listRuns(args[1:])
	case "run":
		return showRun(args[1:])
	default:
		printListUsage()
		return fmt.Errorf("unknown list subcommand: %s", args[0])
	}
}

func printListUsage() {
	fmt.Println(`Usage: varsnap list <subcommand> [flags]

Subcommands:
  runs              List all recorded runs
  run --run-id N    Show one run with its variations and failures`)
}

func listRuns(args []string) error {
	fs := flag.NewFlagSet("list runs", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := store.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	runs, err := st.ListRuns()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	fmt.Printf("%-5s %-20s %-40s %-30s %-10s %s\n", "ID", "Date", "Start URL", "Selector", "Pages", "Variations")
	for _, r := range runs {
		date := time.Unix(r.CreatedAt, 0).Format("2006-01-02 15:04:05")
		fmt.Printf("%-5d %-20s %-40s %-30s %3d/%-6d %d\n",
			r.ID, date, truncateCol(r.StartURL, 40), truncateCol(r.Selector, 30),
			r.SuccessfulPages, r.TotalPages, r.TotalVariations)
	}
	return nil
}

func showRun(args []string) error {
	fs := flag.NewFlagSet("list run", flag.ExitOnError)
	runID := fs.Uint("run-id", 0, "Run ID to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == 0 {
		return fmt.Errorf("--run-id is required")
	}

	st, err := store.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	run, err := st.GetRunByID(uint(*runID))
	if err != nil {
		return err
	}

	fmt.Printf("Run %d (%s)\n", run.ID, run.State)
	fmt.Printf("  Start URL:  %s\n", run.StartURL)
	fmt.Printf("  Selector:   %s\n", run.Selector)
	if run.ClassPrefix != "" {
		fmt.Printf("  Prefix:     %s\n", run.ClassPrefix)
	}
	fmt.Printf("  Pages:      %d/%d successful\n", run.SuccessfulPages, run.TotalPages)
	fmt.Printf("  Variations: %d\n", run.TotalVariations)
	fmt.Printf("  Duration:   %s\n", time.Duration(run.DurationMs)*time.Millisecond)
	if run.ReportPath != "" {
		fmt.Printf("  Report:     %s\n", run.ReportPath)
	}

	if len(run.Variations) > 0 {
		fmt.Println("\nVariations:")
		for _, v := range run.Variations {
			fmt.Printf("  [%d] <%s> %s\n", v.GlobalIndex, v.TagName, truncateCol(v.ClassSignature, 60))
			fmt.Printf("      %s\n", truncateCol(v.TextContent, 76))
			if v.ScreenshotPath != "" {
				fmt.Printf("      %s\n", v.ScreenshotPath)
			}
		}
	}

	if len(run.Failures) > 0 {
		fmt.Println("\nFailed pages:")
		for _, f := range run.Failures {
			fmt.Printf("  %s: %s\n", f.URL, f.Error)
		}
	}
	return nil
}

func truncateCol(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
