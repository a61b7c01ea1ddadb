// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the journal to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dia/internal/journal"
	"github.com/starford/dia/internal/models"
)

const (
	sigilSyntaxURI     = "dia://sigil-syntax"
	defaultSearchLimit = 20
	defaultShowLimit   = 50
)

// Server wraps the MCP server with journal tools.
type Server struct {
	mcp *server.MCPServer
	svc *journal.Service
}

// New creates a new MCP server with all journal tools registered.
func New(svc *journal.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"dia",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("log_entry",
		mcp.WithDescription("Log a new journal entry. Mark people with @name, projects with %name "+
			"and tags with #name; see get_sigil_syntax or the "+sigilSyntaxURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Entry text with inline sigils")),
		mcp.WithString("date", mcp.Description("Entry date YYYY-MM-DD (default today)")),
	), s.logEntry)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Ranked full-text search over entry content. Every word must match; "+
			"word forms are stemmed."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search words")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("show_entries",
		mcp.WithDescription("List entries newest first, narrowed by any combination of date range, "+
			"text, person, project and tag."),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD or YYYY-MM-DD..YYYY-MM-DD")),
		mcp.WithString("text", mcp.Description("Full-text query")),
		mcp.WithString("person", mcp.Description("Person name, with or without @")),
		mcp.WithString("project", mcp.Description("Project name, with or without %")),
		mcp.WithString("tag", mcp.Description("Tag name, with or without #")),
		mcp.WithNumber("limit", mcp.Description("Max entries (default 50)")),
	), s.showEntries)

	s.mcp.AddTool(mcp.NewTool("get_entry",
		mcp.WithDescription("Read one entry with its linked people, projects and tags."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Entry id")),
	), s.getEntry)

	s.mcp.AddTool(mcp.NewTool("list_entities",
		mcp.WithDescription("List known people, projects or tags."),
		mcp.WithString("namespace", mcp.Required(),
			mcp.Enum("people", "projects", "tags"),
			mcp.Description("Which names to list")),
		mcp.WithString("prefix", mcp.Description("Only names starting with this prefix")),
	), s.listEntities)

	s.mcp.AddTool(mcp.NewTool("get_sigil_syntax",
		mcp.WithDescription("Returns the sigil syntax used to mark people, projects and tags. "+
			"Call this before logging entries."),
	), s.getSigilSyntax)

	// Resource: sigil syntax.
	s.mcp.AddResource(
		mcp.NewResource(sigilSyntaxURI, "Sigil Syntax",
			mcp.WithResourceDescription("How to mark people, projects and tags in entry text."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSigilSyntaxResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) logEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.Ingest(ctx, content, req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.Get(ctx, entry.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(detail), nil
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, req.GetInt("limit", defaultSearchLimit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) showEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, to, err := journal.ParseDateRange(req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.svc.FilterDetails(ctx, journal.Filter{
		From:    from,
		To:      to,
		Text:    req.GetString("text", ""),
		Person:  req.GetString("person", ""),
		Project: req.GetString("project", ""),
		Tag:     req.GetString("tag", ""),
		Limit:   req.GetInt("limit", defaultShowLimit),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entries), nil
}

func (s *Server) getEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.Get(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("entry %d: %v", id, err)), nil
	}
	return jsonResult(detail), nil
}

func (s *Server) listEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("namespace")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ns, ok := models.ParseNamespace(raw)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown namespace %q (want people, projects or tags)", raw)), nil
	}

	var names []string
	if prefix := req.GetString("prefix", ""); prefix != "" {
		names, err = s.svc.EntitiesWithPrefix(ctx, ns, strings.TrimPrefix(prefix, ns.Sigil()), 0)
	} else {
		names, err = s.svc.Entities(ctx, ns)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(names) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no %s names found", ns)), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) getSigilSyntax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SigilSyntaxContract), nil
}

func (s *Server) readSigilSyntaxResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      sigilSyntaxURI,
			MIMEType: "text/markdown",
			Text:     SigilSyntaxContract,
		},
	}, nil
}
