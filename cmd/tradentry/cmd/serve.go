package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradentry/tradentry/internal/extract"
	"github.com/tradentry/tradentry/internal/llm"
	"github.com/tradentry/tradentry/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server for trade-field extraction.

The server communicates via stdio and provides two tools:
  - extract_trade_fields: Extract structured fields from a trade description
  - get_trade_output: Get a stored consensus extraction output

Example:
  tradentry serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := GetConfig()

	recordStore, err := newRecordStore(ctx)
	if err != nil {
		return err
	}

	llmClient, err := llm.New(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	engine, err := extract.New(ctx, recordStore, llmClient, extract.Config{
		Solution:           cfg.Extraction.Solution,
		Trials:             cfg.Extraction.Trials,
		MaxRetries:         cfg.Extraction.MaxRetries,
		AgreementThreshold: cfg.Extraction.AgreementThreshold,
		CacheDir:           cfg.Cache.Dir,
		DisableCacheLog:    cfg.Cache.DisableLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create extraction engine: %w", err)
	}

	server, err := mcp.NewServer(mcp.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	}, engine, recordStore)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
