// Package scoring compares extraction outputs against reference answers and
// produces per-field and per-trade accuracy breakdowns.
package scoring

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tradentry/tradentry/pkg/models"
)

// FieldMismatch records one field where the output disagrees with the
// reference answer.
type FieldMismatch struct {
	Field string `json:"field"`
	Got   string `json:"got"`
	Want  string `json:"want"`
}

// TradeScore is the scoring detail for one trade.
type TradeScore struct {
	TradeID    int             `json:"trade_id"`
	Matched    int             `json:"matched"`
	Total      int             `json:"total"`
	Mismatches []FieldMismatch `json:"mismatches,omitempty"`
}

// Score grades outputs against expected results. Only trades present in both
// slices are graded, restricted to ids when ids is non-nil. Each expected
// field counts once; a missing or different output value is a miss. Output
// fields absent from the reference are not graded.
func Score(solution, tradeGroup string, outputs []models.TradeOutput, expected []models.ExpectedResult, ids map[int]bool) (*models.ScoreSummary, []TradeScore, error) {
	byID := make(map[int]models.TradeOutput, len(outputs))
	for _, out := range outputs {
		if out.TrialID != "" {
			continue // grade consensus outputs only
		}
		byID[out.TradeID] = out
	}

	summary := &models.ScoreSummary{
		Solution:   solution,
		TradeGroup: tradeGroup,
		PerField:   make(map[string]models.FieldScore),
	}
	var trades []TradeScore

	for _, exp := range expected {
		if ids != nil && !ids[exp.TradeID] {
			continue
		}
		out, ok := byID[exp.TradeID]
		if !ok {
			return nil, nil, fmt.Errorf("no output for trade %d in group %s", exp.TradeID, tradeGroup)
		}

		got := out.Fields()
		ts := TradeScore{TradeID: exp.TradeID, Total: len(exp.Fields)}
		for _, name := range models.FieldNames {
			want, graded := exp.Fields[name]
			if !graded {
				continue
			}
			fs := summary.PerField[name]
			fs.Total++
			if strings.TrimSpace(got[name]) == strings.TrimSpace(want) {
				fs.Matched++
				ts.Matched++
			} else {
				ts.Mismatches = append(ts.Mismatches, FieldMismatch{
					Field: name,
					Got:   got[name],
					Want:  want,
				})
			}
			summary.PerField[name] = fs
		}

		summary.TradesScored++
		summary.Matched += ts.Matched
		summary.Total += ts.Total
		trades = append(trades, ts)
	}

	if summary.Total > 0 {
		summary.ScorePct = 100 * float64(summary.Matched) / float64(summary.Total)
	}
	return summary, trades, nil
}

// ParseTradeIDs parses a trade id selection such as "1-3,5" into a set.
// An empty selection returns nil, meaning all trades.
func ParseTradeIDs(spec string) (map[int]bool, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	ids := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err1 := strconv.Atoi(strings.TrimSpace(lo))
			to, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || from > to {
				return nil, fmt.Errorf("invalid trade id range %q", part)
			}
			for id := from; id <= to; id++ {
				ids[id] = true
			}
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid trade id %q", part)
		}
		ids[id] = true
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("empty trade id selection %q", spec)
	}
	return ids, nil
}

// LoadExpectedCSV reads reference answers from a CSV file. The header must
// start with trade_group and trade_id; the remaining columns are field names
// as reported by extraction. Empty cells mean the field is not graded for
// that trade.
func LoadExpectedCSV(path string) ([]models.ExpectedResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open expected results: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read expected results header: %w", err)
	}
	if len(header) < 3 || header[0] != "trade_group" || header[1] != "trade_id" {
		return nil, fmt.Errorf("expected results header must start with trade_group,trade_id, got %s",
			strings.Join(header, ","))
	}
	known := make(map[string]bool, len(models.FieldNames))
	for _, name := range models.FieldNames {
		known[name] = true
	}
	for _, name := range header[2:] {
		if !known[name] {
			return nil, fmt.Errorf("unknown field column %q in expected results", name)
		}
	}

	var results []models.ExpectedResult
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read expected results row: %w", err)
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid trade id %q", line, row[1])
		}
		exp := models.ExpectedResult{
			TradeGroup: strings.TrimSpace(row[0]),
			TradeID:    id,
			Fields:     make(map[string]string),
		}
		for i, name := range header[2:] {
			if value := strings.TrimSpace(row[i+2]); value != "" {
				exp.Fields[name] = value
			}
		}
		results = append(results, exp)
	}
	return results, nil
}
