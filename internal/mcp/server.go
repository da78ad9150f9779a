package mcp

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/varsnap/varsnap"
	"github.com/varsnap/varsnap/internal/store"
)

const (
	ServerName    = "varsnap"
	ServerVersion = "1.0.0"
)

// MCPServer exposes variation scanning and run history via the MCP protocol
type MCPServer struct {
	server  *mcp.Server
	browser varsnap.Browser
	crawler *varsnap.Crawler
	store   *store.Store
	ctx     context.Context
	logger  *log.Logger
}

// NewMCPServer creates a new MCP server instance backed by a headless
// browser and the default run store
func NewMCPServer(ctx context.Context) (*MCPServer, error) {
	logger := log.New(os.Stderr, "[varsnap MCP] ", log.LstdFlags)

	logger.Printf("Initializing database...")
	st, err := store.NewStore()
	if err != nil {
		return nil, err
	}

	browser := varsnap.NewChromeBrowser(nil)
	crawler := varsnap.NewCrawler(browser, varsnap.NewSitemapClient(nil))
	crawler.SetLogger(logger)

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)

	s := &MCPServer{
		server:  mcpServer,
		browser: browser,
		crawler: crawler,
		store:   st,
		ctx:     ctx,
		logger:  logger,
	}

	s.registerTools()

	logger.Printf("MCP server initialized successfully")
	return s, nil
}

// GetServer returns the internal MCP server instance
func (s *MCPServer) GetServer() *mcp.Server {
	return s.server
}

// RunHTTP starts the MCP server with HTTP transport using StreamableHTTPHandler
func (s *MCPServer) RunHTTP(addr string) (*http.Server, error) {
	s.logger.Printf("Starting MCP HTTP server on %s...", addr)

	handler := mcp.NewStreamableHTTPHandler(
		func(req *http.Request) *mcp.Server {
			return s.server
		},
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("HTTP server error: %v", err)
		}
	}()

	s.logger.Printf("MCP HTTP server started successfully on %s", addr)
	return httpServer, nil
}

// Close shuts down the shared browser instance
func (s *MCPServer) Close() error {
	s.logger.Printf("Shutting down MCP server...")
	return s.browser.Close()
}
