// Package consensus reconciles the results of independent extraction trials
// into a single answer by majority vote. Values that do not clear the
// agreement threshold are dropped instead of reported as low-confidence
// guesses, which guards against accepting a hallucinated plurality answer.
package consensus

import (
	"sort"
	"strconv"
)

// DefaultThreshold is the minimum fraction of trials that must agree on the
// modal value before it is accepted.
const DefaultThreshold = 0.2

// Aggregate combines N independent trial results into one. Each input map
// holds field name to extracted value; a field missing from a map counts
// toward the trial total but not toward any value's vote. The output contains
// only fields whose modal value reached the threshold.
//
// Aggregate is a pure function: identical input (including order) yields
// identical output, with ties broken by first encounter within the first
// trial that produced the value.
func Aggregate(results []map[string]string, threshold float64) map[string]string {
	out := make(map[string]string)
	if len(results) == 0 {
		return out
	}

	n := float64(len(results))
	for _, field := range fieldNames(results) {
		counts := make(map[string]int)
		var order []string // values in first-encountered order for tie-breaks
		for _, trial := range results {
			value, ok := trial[field]
			if !ok {
				continue
			}
			value = canonicalizeNumeric(value)
			if counts[value] == 0 {
				order = append(order, value)
			}
			counts[value]++
		}

		var modal string
		best := 0
		for _, value := range order {
			if counts[value] > best {
				modal = value
				best = counts[value]
			}
		}
		if best == 0 {
			continue
		}
		if float64(best)/n < threshold {
			continue
		}
		out[field] = modal
	}
	return out
}

// fieldNames returns every field present in any trial, sorted for
// deterministic iteration.
func fieldNames(results []map[string]string) []string {
	seen := make(map[string]struct{})
	for _, trial := range results {
		for field := range trial {
			seen[field] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for field := range seen {
		names = append(names, field)
	}
	sort.Strings(names)
	return names
}

// canonicalizeNumeric renders numeric-looking strings in a single canonical
// form so "10" and "10.0" do not fragment the vote. Non-numeric values pass
// through unchanged.
func canonicalizeNumeric(value string) string {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
