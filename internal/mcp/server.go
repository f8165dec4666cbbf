// Package mcp exposes the extraction engine over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tradentry/tradentry/internal/extract"
	"github.com/tradentry/tradentry/internal/store"
	"github.com/tradentry/tradentry/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Server wraps the MCP server around the extraction engine and record store.
type Server struct {
	mcpServer *server.MCPServer
	engine    *extract.Engine
	store     store.RecordStore
}

// NewServer creates an MCP server with extraction tools.
func NewServer(config Config, engine *extract.Engine, s store.RecordStore) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("extraction engine is required")
	}
	if s == nil {
		return nil, fmt.Errorf("record store is required")
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: mcpServer,
		engine:    engine,
		store:     s,
	}

	extractTool := mcp.NewTool("extract_trade_fields",
		mcp.WithDescription("Extract structured trade fields (dates, notionals, rates, legs) from a free-text trade description. Runs the full multi-trial extraction and returns the consensus result as JSON."),
		mcp.WithString("entry_text",
			mcp.Required(),
			mcp.Description("Free-text trade description to extract fields from"),
		),
		mcp.WithString("trade_group",
			mcp.Description("Trade group to file the result under (default: mcp)"),
		),
		mcp.WithNumber("trade_id",
			mcp.Description("Trade id within the group (default: 1)"),
		),
	)
	mcpServer.AddTool(extractTool, srv.extractHandler)

	getOutputTool := mcp.NewTool("get_trade_output",
		mcp.WithDescription("Get the stored consensus extraction output for a trade"),
		mcp.WithString("solution",
			mcp.Required(),
			mcp.Description("Solution name the extraction ran under"),
		),
		mcp.WithString("trade_group",
			mcp.Required(),
			mcp.Description("Trade group the trade belongs to"),
		),
		mcp.WithNumber("trade_id",
			mcp.Required(),
			mcp.Description("Trade id within the group"),
		),
	)
	mcpServer.AddTool(getOutputTool, srv.getOutputHandler)

	return srv, nil
}

// extractHandler handles the extract_trade_fields tool call.
func (s *Server) extractHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entryText, err := req.RequireString("entry_text")
	if err != nil {
		return mcp.NewToolResultError("entry_text parameter is required"), nil
	}
	tradeGroup := req.GetString("trade_group", "mcp")
	tradeID := req.GetInt("trade_id", 1)

	input := models.TradeInput{
		TradeGroup: tradeGroup,
		TradeID:    tradeID,
		EntryText:  entryText,
	}
	out, errs := s.engine.ProcessTrade(ctx, input)
	if len(out.Fields()) == 0 && len(errs) > 0 {
		return mcp.NewToolResultError(fmt.Sprintf("extraction failed: %v", errs)), nil
	}

	if err := s.store.Put(ctx, out); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store output: %v", err)), nil
	}

	result, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal output: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// getOutputHandler handles the get_trade_output tool call.
func (s *Server) getOutputHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	solution, err := req.RequireString("solution")
	if err != nil {
		return mcp.NewToolResultError("solution parameter is required"), nil
	}
	tradeGroup, err := req.RequireString("trade_group")
	if err != nil {
		return mcp.NewToolResultError("trade_group parameter is required"), nil
	}
	tradeID, err := req.RequireInt("trade_id")
	if err != nil {
		return mcp.NewToolResultError("trade_id parameter is required"), nil
	}

	key := models.TradeOutput{Solution: solution, TradeGroup: tradeGroup, TradeID: tradeID}.Key()
	var out models.TradeOutput
	found, err := s.store.Get(ctx, key, &out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get output failed: %v", err)), nil
	}
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("no output for %s/%s/%d", solution, tradeGroup, tradeID)), nil
	}

	result, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal output: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
