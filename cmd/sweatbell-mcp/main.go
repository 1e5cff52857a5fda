package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/sweatbell/internal/config"
	"github.com/claude/sweatbell/internal/generator"
	"github.com/claude/sweatbell/internal/mcp"
	"github.com/claude/sweatbell/internal/storage"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "SweatBell server URL; query over REST instead of the database")
	configPath := flag.String("config", "", "path to config file; connect straight to PostgreSQL")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("sweatbell-mcp", Version)
		return
	}

	// stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	switch {
	case *serverURL != "":
		ds = mcp.NewHTTPClient(*serverURL)
		log.Info("using remote SweatBell server", "url", *serverURL)
	case *configPath != "":
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ds = db
		log.Info("using direct database connection")
	default:
		fmt.Fprintf(os.Stderr, "Usage: sweatbell-mcp -server <URL> | -config config.yaml\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	s := mcp.New(ds, &generator.Generator{}, Version, log)

	log.Info("MCP server listening on stdio")
	if err := server.ServeStdio(s); err != nil {
		log.Error("MCP server exited", "error", err)
		os.Exit(1)
	}
}
