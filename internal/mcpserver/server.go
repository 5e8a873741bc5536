// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes journal tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/daybook/internal/journalservice"
	"github.com/starford/daybook/internal/markup"
)

// Server wraps the MCP server with journal tools.
type Server struct {
	mcp *server.MCPServer
	svc *journalservice.Service
}

// New creates a new MCP server with all journal tools registered.
func New(svc *journalservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Daybook",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List all journal entries, newest first, with a one-line preview each."),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("read_entry",
		mcp.WithDescription("Read the full raw content of a journal entry, inline image markers included."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Entry date (YYYY-MM-DD; loose forms like 2024-3-5 are accepted)")),
	), s.readEntry)

	s.mcp.AddTool(mcp.NewTool("append_entry",
		mcp.WithDescription("Create a new journal entry for a date. Fails if an entry for that "+
			"date already exists. Content MUST follow the canonical entry format; read the "+
			"contract first via the get_entry_format tool or the daybook://entry-format resource."),
		mcp.WithString("date", mcp.Description("Entry date (YYYY-MM-DD; empty means today)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Entry text following the Daybook entry format contract")),
	), s.appendEntry)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Full-text search across journal entry content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("render_entry",
		mcp.WithDescription("Render an entry into its display plan: text runs and resolved "+
			"image runs with display dimensions. Markers whose asset is missing are omitted."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Entry date")),
	), s.renderEntry)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Upload an image into the asset store from an http(s) URL or a "+
			"base64 data URI. Returns the stored asset name and a ready-to-paste marker."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data> URI")),
		mcp.WithString("filename", mcp.Description("Optional original filename (extension decides the stored format)")),
	), s.uploadAsset)

	s.mcp.AddTool(mcp.NewTool("get_entry_format",
		mcp.WithDescription("Returns the canonical Daybook entry format contract. "+
			"Call this before creating entries to ensure correct structure."),
	), s.getEntryFormat)

	// Resource: entry format contract.
	s.mcp.AddResource(
		mcp.NewResource("daybook://entry-format", "Entry Format Contract",
			mcp.WithResourceDescription("Canonical journal entry format that all entries must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntryFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListEntries(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("journal is empty"), nil
	}
	var b strings.Builder
	for _, item := range items {
		if item.Preview != "" {
			fmt.Fprintf(&b, "%s: %s\n", item.Date, item.Preview)
		} else {
			fmt.Fprintf(&b, "%s\n", item.Date)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) readEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.GetEntry(ctx, date)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", date)), nil
	}
	return mcp.NewToolResultText(entry.Content), nil
}

func (s *Server) appendEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date := ""
	if d, dErr := req.RequireString("date"); dErr == nil {
		date = d
	}
	entry, err := s.svc.CreateEntry(ctx, date, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", entry.Date)), nil
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) renderEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	plan, entry, err := s.svc.RenderEntry(ctx, date)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", date)), nil
	}

	type runOut struct {
		Type   string `json:"type"`
		Text   string `json:"text,omitempty"`
		Asset  string `json:"asset,omitempty"`
		Width  int    `json:"width,omitempty"`
		Height int    `json:"height,omitempty"`
	}
	out := struct {
		Date string   `json:"date"`
		Runs []runOut `json:"runs"`
	}{Date: entry.Date}
	for _, run := range plan.Visible() {
		switch v := run.(type) {
		case markup.TextRun:
			out.Runs = append(out.Runs, runOut{Type: "text", Text: v.Text})
		case markup.ImageRun:
			out.Runs = append(out.Runs, runOut{
				Type: "image", Asset: v.AssetName, Width: v.Width, Height: v.Height,
			})
		}
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getEntryFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntryFormatContract), nil
}

func (s *Server) readEntryFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "daybook://entry-format",
			MIMEType: "text/markdown",
			Text:     EntryFormatContract,
		},
	}, nil
}
