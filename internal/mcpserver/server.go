// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Dagaz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/collection"
	"github.com/starford/dagaz/internal/dedupservice"
	"github.com/starford/dagaz/internal/settings"
)

// Server wraps the MCP server with Dagaz tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *dedupservice.Service
	store collection.Store
}

// New creates a new MCP server with all Dagaz tools registered.
func New(svc *dedupservice.Service, store collection.Store) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"Dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("run_dedup",
		mcp.WithDescription("Find duplicate notes matching the filter and tag every "+
			"duplicate beyond the oldest of each group. Omitted arguments fall back "+
			"to the stored settings."),
		mcp.WithString("filter", mcp.Description("Note filter, e.g. 'deck:Spanish tag:verbs'")),
		mcp.WithString("key", mcp.Description("Field name to compare, or 'Combine All Keys'")),
		mcp.WithString("tag", mcp.Description("Tag to apply to duplicates")),
	), s.runDedup)

	s.mcp.AddTool(mcp.NewTool("preview_duplicates",
		mcp.WithDescription("Show the duplicate groups a dedup run would tag, without writing anything."),
		mcp.WithString("filter", mcp.Description("Note filter (falls back to stored settings)")),
		mcp.WithString("key", mcp.Description("Field name to compare, or 'Combine All Keys'")),
	), s.previewDuplicates)

	s.mcp.AddTool(mcp.NewTool("list_fields",
		mcp.WithDescription("List the distinct field names of the notes a filter matches, "+
			"useful for choosing a dedup key."),
		mcp.WithString("filter", mcp.Required(), mcp.Description("Note filter")),
	), s.listFields)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes in the collection, optionally narrowed to a deck or tag."),
		mcp.WithString("deck", mcp.Description("Optional deck name")),
		mcp.WithString("tag", mcp.Description("Optional tag")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_settings",
		mcp.WithDescription("Return the stored dedup settings (filter, dedup key, tag name)."),
	), s.getSettings)

	s.mcp.AddTool(mcp.NewTool("update_settings",
		mcp.WithDescription("Update the stored dedup settings. Only the provided fields change."),
		mcp.WithString("filter", mcp.Description("New default filter")),
		mcp.WithString("key", mcp.Description("New default dedup key")),
		mcp.WithString("tag", mcp.Description("New default tag name")),
	), s.updateSettings)

	s.mcp.AddTool(mcp.NewTool("get_deck_contract",
		mcp.WithDescription("Returns the canonical Dagaz deck file format contract. "+
			"Call this before authoring deck files to ensure correct structure."),
	), s.getDeckContract)

	// Resource: deck format contract.
	s.mcp.AddResource(
		mcp.NewResource("dagaz://deck-format", "Deck Format Contract",
			mcp.WithResourceDescription("Canonical deck file format that all decks must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDeckFormatResource,
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

// optString reads an optional string argument, empty when absent.
func optString(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return v
}

func (s *Server) runDedup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Run(ctx, dedupservice.RunOptions{
		Filter:   optString(req, "filter"),
		DedupKey: optString(req, "key"),
		TagName:  optString(req, "tag"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) previewDuplicates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groups, err := s.svc.Preview(ctx, dedupservice.RunOptions{
		Filter:   optString(req, "filter"),
		DedupKey: optString(req, "key"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(groups) == 0 {
		return mcp.NewToolResultText("no duplicates found"), nil
	}
	out, _ := json.MarshalIndent(groups, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, err := req.RequireString("filter")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	names, err := s.svc.FieldNames(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("no fields found"), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, total, err := s.store.ListNotes(0, 0, optString(req, "deck"), optString(req, "tag"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{"notes": notes, "total": total}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.svc.Settings(ctx), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) updateSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cur := s.svc.Settings(ctx)
	next := settings.Settings{
		Filter:   optString(req, "filter"),
		DedupKey: optString(req, "key"),
		TagName:  optString(req, "tag"),
	}
	if next.Filter == "" {
		next.Filter = cur.Filter
	}
	if next.DedupKey == "" {
		next.DedupKey = cur.DedupKey
	}
	if next.TagName == "" {
		next.TagName = cur.TagName
	}
	// The applied settings are in effect even when the disk write failed,
	// so the error is not surfaced to the caller.
	applied, _ := s.svc.UpdateSettings(ctx, next)
	out, _ := json.MarshalIndent(applied, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getDeckContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DeckFormatContract), nil
}

func (s *Server) readDeckFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "dagaz://deck-format",
			MIMEType: "text/markdown",
			Text:     DeckFormatContract,
		},
	}, nil
}
