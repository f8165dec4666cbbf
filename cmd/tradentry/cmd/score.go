package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tradentry/tradentry/internal/scoring"
	"github.com/tradentry/tradentry/internal/store"
	"github.com/tradentry/tradentry/pkg/models"
)

var (
	scoreGroup    string
	scoreTrades   string
	scoreExpected string
	scoreFormat   string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score extraction outputs against expected results",
	Long: `Compare the stored consensus outputs of a trade group with reference
answers and print matched/total per field and per trade.

Expected results come from a CSV file (header: trade_group,trade_id followed
by field-name columns) or from previously stored expected-result records.

Examples:
  # Score group q3 against a reference file
  tradentry score --group q3 --expected expected/q3.csv

  # JSON output, restricted to some trades
  tradentry score --group q3 --expected expected/q3.csv --trades 1-3 --format json`,
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreGroup, "group", "", "trade group to score")
	scoreCmd.Flags().StringVar(&scoreTrades, "trades", "", "trade id selection, e.g. 1-3,5 (default all)")
	scoreCmd.Flags().StringVar(&scoreExpected, "expected", "", "CSV file with expected results")
	scoreCmd.Flags().StringVar(&scoreFormat, "format", "text", "output format: text or json")
	scoreCmd.MarkFlagRequired("group")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	ids, err := scoring.ParseTradeIDs(scoreTrades)
	if err != nil {
		return err
	}

	recordStore, err := newRecordStore(ctx)
	if err != nil {
		return err
	}

	expected, err := loadExpected(ctx, recordStore, scoreGroup)
	if err != nil {
		return err
	}
	if len(expected) == 0 {
		return fmt.Errorf("no expected results for group %q", scoreGroup)
	}

	outputs, err := loadOutputs(ctx, recordStore, cfg.Extraction.Solution, scoreGroup, expected)
	if err != nil {
		return err
	}

	summary, trades, err := scoring.Score(cfg.Extraction.Solution, scoreGroup, outputs, expected, ids)
	if err != nil {
		return err
	}

	if err := recordStore.Put(ctx, *summary); err != nil {
		return fmt.Errorf("failed to store score summary: %w", err)
	}

	if scoreFormat == "json" {
		out, err := json.MarshalIndent(struct {
			Summary *models.ScoreSummary `json:"summary"`
			Trades  []scoring.TradeScore `json:"trades"`
		}{summary, trades}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Group %s, solution %s: %d/%d fields matched (%.1f%%) over %d trades\n",
		summary.TradeGroup, summary.Solution, summary.Matched, summary.Total,
		summary.ScorePct, summary.TradesScored)

	names := make([]string, 0, len(summary.PerField))
	for name := range summary.PerField {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fs := summary.PerField[name]
		fmt.Printf("  %-24s %d/%d\n", name, fs.Matched, fs.Total)
	}

	for _, ts := range trades {
		if len(ts.Mismatches) == 0 {
			continue
		}
		fmt.Printf("\nTrade %d (%d/%d):\n", ts.TradeID, ts.Matched, ts.Total)
		for _, m := range ts.Mismatches {
			fmt.Printf("  %-24s got %q, want %q\n", m.Field, m.Got, m.Want)
		}
	}
	return nil
}

// loadExpected reads reference answers from the --expected CSV when given,
// otherwise from previously stored records.
func loadExpected(ctx context.Context, s store.RecordStore, tradeGroup string) ([]models.ExpectedResult, error) {
	if scoreExpected != "" {
		results, err := scoring.LoadExpectedCSV(scoreExpected)
		if err != nil {
			return nil, err
		}
		// Keep the records around so later runs can score without the file.
		for _, exp := range results {
			if err := s.Put(ctx, exp); err != nil {
				return nil, fmt.Errorf("failed to store expected result: %w", err)
			}
		}
		return results, nil
	}

	var results []models.ExpectedResult
	for id := 1; ; id++ {
		var exp models.ExpectedResult
		key := models.ExpectedResult{TradeGroup: tradeGroup, TradeID: id}.Key()
		found, err := s.Get(ctx, key, &exp)
		if err != nil {
			return nil, fmt.Errorf("failed to load expected result %d: %w", id, err)
		}
		if !found {
			break
		}
		results = append(results, exp)
	}
	return results, nil
}

// loadOutputs fetches the stored consensus output for every expected trade.
func loadOutputs(ctx context.Context, s store.RecordStore, solution, tradeGroup string, expected []models.ExpectedResult) ([]models.TradeOutput, error) {
	var outputs []models.TradeOutput
	for _, exp := range expected {
		key := models.TradeOutput{Solution: solution, TradeGroup: tradeGroup, TradeID: exp.TradeID}.Key()
		var out models.TradeOutput
		found, err := s.Get(ctx, key, &out)
		if err != nil {
			return nil, fmt.Errorf("failed to load output for trade %d: %w", exp.TradeID, err)
		}
		if !found {
			continue // scoring reports the missing trade
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}
