package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tradentry/tradentry/internal/extract"
	"github.com/tradentry/tradentry/internal/llm"
	"github.com/tradentry/tradentry/internal/scoring"
	"github.com/tradentry/tradentry/internal/storage"
	"github.com/tradentry/tradentry/internal/store"
	"github.com/tradentry/tradentry/pkg/models"
)

var (
	extractGroup  string
	extractTrades string
	extractTrials int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the extraction engine over a trade group",
	Long: `Run annotation retrieval over every registered trade in a group.
Each trade is extracted in repeated independent trials; the trials are voted
into one consensus output per trade.

Examples:
  # Extract every trade in group q3
  tradentry extract --group q3

  # Restrict to specific trades and override the trial count
  tradentry extract --group q3 --trades 1-3,5 --trials 5`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractGroup, "group", "", "trade group to extract")
	extractCmd.Flags().StringVar(&extractTrades, "trades", "", "trade id selection, e.g. 1-3,5 (default all)")
	extractCmd.Flags().IntVar(&extractTrials, "trials", 0, "number of trials (default from config)")
	extractCmd.MarkFlagRequired("group")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	ids, err := scoring.ParseTradeIDs(extractTrades)
	if err != nil {
		return err
	}

	recordStore, err := newRecordStore(ctx)
	if err != nil {
		return err
	}

	inputs, err := loadInputs(ctx, recordStore, extractGroup, ids)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no trade inputs found for group %q", extractGroup)
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

	trials := cfg.Extraction.Trials
	if extractTrials > 0 {
		trials = extractTrials
	}

	engine, err := extract.New(ctx, recordStore, llmClient, extract.Config{
		Solution:           cfg.Extraction.Solution,
		Trials:             trials,
		MaxRetries:         cfg.Extraction.MaxRetries,
		AgreementThreshold: cfg.Extraction.AgreementThreshold,
		CacheDir:           cfg.Cache.Dir,
		DisableCacheLog:    cfg.Cache.DisableLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create extraction engine: %w", err)
	}

	fmt.Printf("Extracting %d trades from group %s (%d trials each)\n", len(inputs), extractGroup, trials)
	result, err := engine.ProcessGroup(ctx, inputs)
	if err != nil {
		return err
	}

	fmt.Printf("  Trades: %d, Trials: %d, Duration: %v\n",
		result.TradesProcessed, result.TrialsRun, result.Duration)
	for _, e := range result.Errors {
		fmt.Printf("  Warning: %s\n", e)
	}

	printOutputs(ctx, recordStore, cfg.Extraction.Solution, extractGroup, inputs)

	if cfg.Storage.Enabled && !cfg.Cache.DisableLog {
		uploadCompletionLog(ctx, engine.CompletionLogPath())
	}
	return nil
}

// loadInputs reads registered trade inputs for the group, walking ids
// upwards from 1 until the first gap.
func loadInputs(ctx context.Context, s store.RecordStore, tradeGroup string, ids map[int]bool) ([]models.TradeInput, error) {
	var inputs []models.TradeInput
	for id := 1; ; id++ {
		var input models.TradeInput
		key := models.TradeInput{TradeGroup: tradeGroup, TradeID: id}.Key()
		found, err := s.Get(ctx, key, &input)
		if err != nil {
			return nil, fmt.Errorf("failed to load trade %d: %w", id, err)
		}
		if !found {
			break
		}
		if ids != nil && !ids[id] {
			continue
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

// printOutputs prints the consensus fields for each extracted trade.
func printOutputs(ctx context.Context, s store.RecordStore, solution, tradeGroup string, inputs []models.TradeInput) {
	for _, input := range inputs {
		key := models.TradeOutput{Solution: solution, TradeGroup: tradeGroup, TradeID: input.TradeID}.Key()
		var out models.TradeOutput
		found, err := s.Get(ctx, key, &out)
		if err != nil || !found {
			fmt.Printf("\nTrade %d: no consensus output\n", input.TradeID)
			continue
		}

		fmt.Printf("\nTrade %d:\n", input.TradeID)
		fields := out.Fields()
		for _, name := range models.FieldNames {
			if value, ok := fields[name]; ok {
				fmt.Printf("  %-24s %s\n", name, value)
			}
		}
	}
}

// uploadCompletionLog archives this run's completion side log when present.
func uploadCompletionLog(ctx context.Context, logPath string) {
	cfg := GetConfig()
	if _, err := os.Stat(logPath); err != nil {
		return
	}

	archive, err := storage.New(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
	})
	if err != nil {
		slog.Warn("failed to create archive for completion log", "error", err)
		return
	}
	if err := archive.PutCompletionLog(ctx, logPath); err != nil {
		slog.Warn("failed to upload completion log", "error", err)
		return
	}
	slog.Info("completion log archived", "path", logPath)
}
