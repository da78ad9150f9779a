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
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/varsnap/varsnap/internal/mcp"
)

func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	httpAddr := fs.String("http", "", "Serve MCP over HTTP on this address (e.g. :8931); default is stdio")

	fs.Usage = func() {
		fmt.Println(`Usage: varsnap mcp [flags]

Run the varsnap MCP server, exposing scan and crawl tools plus run history.
By default the server speaks over stdio for editor/assistant integration.

Flags:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := mcp.NewMCPServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize MCP server: %v", err)
	}
	defer server.Close()

	if *httpAddr != "" {
		httpServer, err := server.RunHTTP(*httpAddr)
		if err != nil {
			return err
		}
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: HTTP shutdown: %v\n", err)
		}
		return nil
	}

	return server.GetServer().Run(ctx, &sdk.StdioTransport{})
}
