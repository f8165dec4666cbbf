package consensus

import (
	"reflect"
	"testing"
)

func TestAggregate_MajorityWins(t *testing.T) {
	results := []map[string]string{
		{"f": "A"},
		{"f": "A"},
		{"f": "B"},
	}

	got := Aggregate(results, 0.5)
	want := map[string]string{"f": "A"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Aggregate() = %v, want %v", got, want)
	}
}

func TestAggregate_BelowThresholdDropped(t *testing.T) {
	results := []map[string]string{
		{"f": "A"},
		{"f": "B"},
		{"f": "C"},
	}

	got := Aggregate(results, 0.5)
	if _, ok := got["f"]; ok {
		t.Errorf("three-way split should be dropped at threshold 0.5, got %v", got)
	}
}

func TestAggregate_NumericCanonicalization(t *testing.T) {
	results := []map[string]string{
		{"f": "10"},
		{"f": "10.0"},
		{"f": "10"},
	}

	got := Aggregate(results, 1.0)
	if got["f"] != "10" {
		t.Errorf("equivalent numerics fragmented the vote: %v", got)
	}
}

func TestAggregate_MissingCountsInDenominator(t *testing.T) {
	// Two of five trials agree; missing values still count toward N.
	results := []map[string]string{
		{"f": "A"},
		{"f": "A"},
		{},
		{},
		{},
	}

	if got := Aggregate(results, 0.5); len(got) != 0 {
		t.Errorf("2/5 agreement should not clear threshold 0.5, got %v", got)
	}
	if got := Aggregate(results, 0.2); got["f"] != "A" {
		t.Errorf("2/5 agreement should clear threshold 0.2, got %v", got)
	}
}

func TestAggregate_DeterministicTieBreak(t *testing.T) {
	results := []map[string]string{
		{"f": "B"},
		{"f": "A"},
		{"f": "B"},
		{"f": "A"},
	}

	for i := 0; i < 20; i++ {
		got := Aggregate(results, 0.2)
		if got["f"] != "B" {
			t.Fatalf("tie must resolve to the first-encountered value, got %v", got)
		}
	}
}

func TestAggregate_MultipleFields(t *testing.T) {
	results := []map[string]string{
		{"ccy": "USD", "rate": "3.45", "index": "SOFR"},
		{"ccy": "USD", "rate": "3.450", "index": "LIBOR"},
		{"ccy": "USD", "rate": "3.45"},
	}

	got := Aggregate(results, 0.5)
	want := map[string]string{"ccy": "USD", "rate": "3.45"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Aggregate() = %v, want %v", got, want)
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	if got := Aggregate(nil, 0.5); len(got) != 0 {
		t.Errorf("Aggregate(nil) = %v, want empty", got)
	}
}
