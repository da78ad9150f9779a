package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/varsnap/varsnap"
	"github.com/varsnap/varsnap/internal/report"
	"github.com/varsnap/varsnap/internal/store"
)

// registerTools registers all MCP tools with the server
func (s *MCPServer) registerTools() {
	s.logger.Printf("Registering MCP tools...")

	// Scanning tools
	s.registerScanPageTool()
	s.registerCrawlSiteTool()

	// Run history tools
	s.registerListRunsTool()
	s.registerGetRunTool()
	s.registerSearchVariationsTool()
	s.registerDeleteRunTool()

	s.logger.Printf("All MCP tools registered successfully")
}

// ScanPageArgs defines the input schema for scan_page tool
type ScanPageArgs struct {
	URL                string `json:"url"`
	Selector           string `json:"selector"`
	ClassPrefix        string `json:"classPrefix,omitempty"`
	ScreenshotDir      string `json:"screenshotDir,omitempty"`
	DisableScreenshots bool   `json:"disableScreenshots,omitempty"`
}

// ScanPageResult defines the output schema for scan_page tool
type ScanPageResult struct {
	Success    bool                `json:"success"`
	RunID      uint                `json:"runId,omitempty"`
	Variations []varsnap.Variation `json:"variations,omitempty"`
	Message    string              `json:"message"`
}

// registerScanPageTool registers the scan_page tool
func (s *MCPServer) registerScanPageTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "scan_page",
		Description: "Scans a single page for deduplicated variations of the given CSS selector and captures a screenshot of each",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ScanPageArgs) (*mcp.CallToolResult, any, error) {
		s.logger.Printf("Tool called: scan_page for URL: %s selector: %s", args.URL, args.Selector)

		opts := varsnap.NewDefaultCrawlOptions()
		if args.ScreenshotDir != "" {
			opts.ScreenshotDir = args.ScreenshotDir
		}
		opts.DisableScreenshots = args.DisableScreenshots

		started := time.Now()
		variations, err := s.crawler.ScanURL(ctx, args.URL, args.Selector, args.ClassPrefix, opts)
		if err != nil {
			return nil, ScanPageResult{
				Success: false,
				Message: fmt.Sprintf("Scan failed: %v", err),
			}, nil
		}

		runID := s.persistRun(args.URL, args.Selector, args.ClassPrefix, []string{args.URL}, &varsnap.CrawlResult{
			Variations: variations,
			Stats: varsnap.CrawlStats{
				TotalPages:      1,
				SuccessfulPages: 1,
				TotalVariations: len(variations),
			},
		}, time.Since(started), "")

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: fmt.Sprintf("Found %d variations on %s (Run ID: %d)", len(variations), args.URL, runID),
				},
			},
		}, ScanPageResult{
			Success:    true,
			RunID:      runID,
			Variations: variations,
			Message:    fmt.Sprintf("Found %d variations", len(variations)),
		}, nil
	})
}

// CrawlSiteArgs defines the input schema for crawl_site tool
type CrawlSiteArgs struct {
	URL                string   `json:"url"`
	Selector           string   `json:"selector"`
	ClassPrefix        string   `json:"classPrefix,omitempty"`
	MaxURLs            int      `json:"maxUrls,omitempty"`
	MaxDepth           int      `json:"maxDepth,omitempty"`
	FollowLinks        bool     `json:"followLinks,omitempty"`
	ManualURLs         []string `json:"manualUrls,omitempty"`
	IncludePatterns    []string `json:"includePatterns,omitempty"`
	ExcludePatterns    []string `json:"excludePatterns,omitempty"`
	DelayMs            int      `json:"delayMs,omitempty"`
	ContinueOnError    *bool    `json:"continueOnError,omitempty"`
	ScreenshotDir      string   `json:"screenshotDir,omitempty"`
	DisableScreenshots bool     `json:"disableScreenshots,omitempty"`
	ReportDir          string   `json:"reportDir,omitempty"`
}

// CrawlSiteResult defines the output schema for crawl_site tool
type CrawlSiteResult struct {
	Success    bool               `json:"success"`
	RunID      uint               `json:"runId,omitempty"`
	Stats      varsnap.CrawlStats `json:"stats"`
	ReportPath string             `json:"reportPath,omitempty"`
	Message    string             `json:"message"`
}

// registerCrawlSiteTool registers the crawl_site tool
func (s *MCPServer) registerCrawlSiteTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "crawl_site",
		Description: "Crawls a site breadth-first from the given URL, collecting deduplicated selector variations across pages, and generates an HTML report",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args CrawlSiteArgs) (*mcp.CallToolResult, any, error) {
		s.logger.Printf("Tool called: crawl_site for URL: %s selector: %s", args.URL, args.Selector)

		opts := varsnap.NewDefaultCrawlOptions()
		if args.MaxURLs > 0 {
			opts.MaxURLs = args.MaxURLs
		}
		if args.MaxDepth > 0 {
			opts.MaxDepth = args.MaxDepth
		}
		opts.FollowLinks = args.FollowLinks
		opts.ManualURLs = args.ManualURLs
		opts.IncludePatterns = args.IncludePatterns
		opts.ExcludePatterns = args.ExcludePatterns
		if args.DelayMs > 0 {
			opts.DelayBetweenPages = time.Duration(args.DelayMs) * time.Millisecond
		}
		if args.ContinueOnError != nil {
			opts.ContinueOnError = *args.ContinueOnError
		}
		if args.ScreenshotDir != "" {
			opts.ScreenshotDir = args.ScreenshotDir
		}
		opts.DisableScreenshots = args.DisableScreenshots

		started := time.Now()
		result, err := s.crawler.Crawl(ctx, []string{args.URL}, args.Selector, args.ClassPrefix, opts)
		if err != nil {
			return nil, CrawlSiteResult{
				Success: false,
				Message: fmt.Sprintf("Crawl failed: %v", err),
			}, nil
		}

		reportPath := ""
		reportDir := args.ReportDir
		if reportDir == "" {
			reportDir = "report"
		}
		reportPath, err = report.Generate(result, report.Meta{
			StartURL:    args.URL,
			Selector:    args.Selector,
			ClassPrefix: args.ClassPrefix,
		}, reportDir)
		if err != nil {
			s.logger.Printf("Report generation failed: %v", err)
			reportPath = ""
		}

		runID := s.persistRun(args.URL, args.Selector, args.ClassPrefix, []string{args.URL}, result, time.Since(started), reportPath)

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: fmt.Sprintf("Crawl finished: %d variations across %d/%d pages (Run ID: %d)",
						result.Stats.TotalVariations, result.Stats.SuccessfulPages, result.Stats.TotalPages, runID),
				},
			},
		}, CrawlSiteResult{
			Success:    true,
			RunID:      runID,
			Stats:      result.Stats,
			ReportPath: reportPath,
			Message:    "Crawl finished",
		}, nil
	})
}

// persistRun saves a finished crawl result; persistence failures are logged
// rather than surfaced because the scan itself succeeded.
func (s *MCPServer) persistRun(startURL, selector, classPrefix string, startURLs []string, result *varsnap.CrawlResult, duration time.Duration, reportPath string) uint {
	run, err := s.store.CreateRun(startURL, selector, classPrefix, startURLs)
	if err != nil {
		s.logger.Printf("Failed to persist run: %v", err)
		return 0
	}
	if err := s.store.SaveVariations(run.ID, result.Variations); err != nil {
		s.logger.Printf("Failed to persist variations: %v", err)
	}
	if err := s.store.SaveFailures(run.ID, result.FailedURLs); err != nil {
		s.logger.Printf("Failed to persist failures: %v", err)
	}
	if err := s.store.FinishRun(run.ID, store.RunStateCompleted,
		result.Stats.TotalPages, result.Stats.SuccessfulPages, result.Stats.TotalVariations,
		duration.Milliseconds(), reportPath); err != nil {
		s.logger.Printf("Failed to finalize run: %v", err)
	}
	return run.ID
}

// ListRunsResult defines the output schema for list_runs tool
type ListRunsResult struct {
	Success bool        `json:"success"`
	Runs    []store.Run `json:"runs,omitempty"`
	Message string      `json:"message"`
}

// registerListRunsTool registers the list_runs tool
func (s *MCPServer) registerListRunsTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_runs",
		Description: "Lists all recorded scan and crawl runs, newest first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
		s.logger.Printf("Tool called: list_runs")

		runs, err := s.store.ListRuns()
		if err != nil {
			return nil, ListRunsResult{
				Success: false,
				Message: fmt.Sprintf("Failed to list runs: %v", err),
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Found %d runs", len(runs))},
			},
		}, ListRunsResult{
			Success: true,
			Runs:    runs,
			Message: fmt.Sprintf("Found %d runs", len(runs)),
		}, nil
	})
}

// GetRunArgs defines the input schema for get_run tool
type GetRunArgs struct {
	RunID uint `json:"runId"`
}

// GetRunResult defines the output schema for get_run tool
type GetRunResult struct {
	Success bool       `json:"success"`
	Run     *store.Run `json:"run,omitempty"`
	Message string     `json:"message"`
}

// registerGetRunTool registers the get_run tool
func (s *MCPServer) registerGetRunTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_run",
		Description: "Gets one run with all its variations and page failures",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetRunArgs) (*mcp.CallToolResult, any, error) {
		s.logger.Printf("Tool called: get_run for run ID: %d", args.RunID)

		run, err := s.store.GetRunByID(args.RunID)
		if err != nil {
			return nil, GetRunResult{
				Success: false,
				Message: fmt.Sprintf("Failed to get run: %v", err),
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: fmt.Sprintf("Run %d: %d variations, %d failures", run.ID, len(run.Variations), len(run.Failures)),
				},
			},
		}, GetRunResult{
			Success: true,
			Run:     run,
			Message: "Run retrieved",
		}, nil
	})
}

// SearchVariationsArgs defines the input schema for search_variations tool
type SearchVariationsArgs struct {
	RunID uint   `json:"runId"`
	Query string `json:"query,omitempty"`
}

// SearchVariationsResult defines the output schema for search_variations tool
type SearchVariationsResult struct {
	Success    bool                    `json:"success"`
	Variations []store.VariationRecord `json:"variations,omitempty"`
	Message    string                  `json:"message"`
}

// registerSearchVariationsTool registers the search_variations tool
func (s *MCPServer) registerSearchVariationsTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_variations",
		Description: "Searches a run's variations by class signature, text content or page URL",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SearchVariationsArgs) (*mcp.CallToolResult, any, error) {
		s.logger.Printf("Tool called: search_variations for run ID: %d query: %q", args.RunID, args.Query)

		records, err := s.store.SearchVariations(args.RunID, args.Query)
		if err != nil {
			return nil, SearchVariationsResult{
				Success: false,
				Message: fmt.Sprintf("Failed to search variations: %v", err),
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Found %d variations", len(records))},
			},
		}, SearchVariationsResult{
			Success:    true,
			Variations: records,
			Message:    fmt.Sprintf("Found %d variations", len(records)),
		}, nil
	})
}

// DeleteRunArgs defines the input schema for delete_run tool
type DeleteRunArgs struct {
	RunID uint `json:"runId"`
}

// DeleteRunResult defines the output schema for delete_run tool
type DeleteRunResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// registerDeleteRunTool registers the delete_run tool
func (s *MCPServer) registerDeleteRunTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_run",
		Description: "Deletes a run and all its stored variations and failures",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args DeleteRunArgs) (*mcp.CallToolResult, any, error) {
		s.logger.Printf("Tool called: delete_run for run ID: %d", args.RunID)

		if err := s.store.DeleteRun(args.RunID); err != nil {
			return nil, DeleteRunResult{
				Success: false,
				Message: fmt.Sprintf("Failed to delete run: %v", err),
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Run %d deleted", args.RunID)},
			},
		}, DeleteRunResult{
			Success: true,
			Message: "Run deleted",
		}, nil
	})
}
