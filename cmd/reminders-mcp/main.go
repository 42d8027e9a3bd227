// Command reminders-mcp serves the reminder store as MCP tools over stdio.
//
// Usage:
//
//	./reminders-mcp [-config path]
//
// It reads the same configuration as the HTTP server; only database.url
// and log.level are used. Logs go to stderr since stdout carries the
// protocol.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmhodges/clock"
	"github.com/mark3labs/mcp-go/server"

	"reminders/internal/config"
	"reminders/internal/db"
	httpx "reminders/internal/http"
	"reminders/internal/jobs"
	"reminders/internal/mcpserver"
	"reminders/internal/reminder"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))

	gdb, err := db.Connect(cfg.Database.URL, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to migrate database: %v\n", err)
		os.Exit(1)
	}

	clk := clock.New()
	s := mcpserver.NewServer(reminder.NewStore(gdb, clk), jobs.NewRepo(gdb, clk), clk, httpx.Version)

	if err := server.ServeStdio(s.MCPServer()); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
