// Package main provides the entry point for the Cosmos DB MCP server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/JamesPrial/cosmosdb-mcp/internal/config"
	"github.com/JamesPrial/cosmosdb-mcp/internal/cosmos"
	"github.com/JamesPrial/cosmosdb-mcp/internal/mcpserver"
)

// connectTimeout bounds the startup probe of the database and container.
const connectTimeout = 30 * time.Second

func run() int {
	httpAddr := flag.String("http", "", "serve MCP over streamable HTTP on this address (e.g. :8080) instead of stdio")
	flag.Parse()

	errLogger := log.New(os.Stderr, "[mcp-server] ", log.LstdFlags)

	// Optional .env for local development; the real environment wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		errLogger.Printf("Configuration error: %v", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	store, err := cosmos.NewClient(ctx, cfg, errLogger)
	if err != nil {
		errLogger.Printf("Failed to connect to Cosmos DB: %v", err)
		return 1
	}

	s := mcpserver.NewServer(store)

	if *httpAddr != "" {
		errLogger.Printf("serving MCP over HTTP on %s", *httpAddr)
		if err := server.NewStreamableHTTPServer(s).Start(*httpAddr); err != nil {
			errLogger.Printf("Server error: %v", err)
			return 1
		}
		return 0
	}

	if err := server.ServeStdio(s, server.WithErrorLogger(errLogger)); err != nil {
		errLogger.Printf("Server error: %v", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
