// Command chateval-mcp exposes the chat scraper as an MCP tool over stdio,
// so MCP-capable agents can ask the hosted chat application a question and
// get the scraped answer record back.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/chateval/config"
	"github.com/use-agent/chateval/scraper"
)

func main() {
	cfg := config.Load()

	// The MCP server only scrapes; grading and tracking credentials are
	// not needed here.
	if err := cfg.ValidateScraper(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// MCP talks JSON-RPC on stdout; logs must go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to launch browser: %v\n", err)
		os.Exit(1)
	}
	defer sc.Close()

	s := server.NewMCPServer(
		"chateval",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	askChatTool := mcp.NewTool("ask_chat",
		mcp.WithDescription("Submit a prompt to the hosted chat application through a headless browser and return the scraped answer as JSON (text, source, message count, metadata)."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The question to ask the chat application"),
		),
	)
	s.AddTool(askChatTool, handleAskChat(sc))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleAskChat(sc *scraper.Scraper) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := request.RequireString("prompt")
		if err != nil {
			return mcp.NewToolResultError("prompt is required"), nil
		}

		resp, err := sc.Ask(ctx, prompt)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scrape failed: %v", err)), nil
		}

		// Drop the raw HTML: tool consumers want the answer, not the DOM.
		resp.RawHTML = ""
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}
