package entries

import "testing"

func TestParseNumber(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"10", 10},
		{"10.0", 10},
		{"3.45", 3.45},
		{"3.45%", 3.45},
		{"25bp", 25},
		{"10 million", 10e6},
		{"10m", 10e6},
		{"1.5bn", 1.5e9},
		{"1,000,000", 1e6},
		{"-25", -25},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseNumber(tt.text)
			if err != nil {
				t.Fatalf("ParseNumber(%q) error = %v", tt.text, err)
			}
			if got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseNumber_Invalid(t *testing.T) {
	for _, text := range []string{"", "ten", "10 squillion", "USD"} {
		if _, err := ParseNumber(text); err == nil {
			t.Errorf("ParseNumber(%q) expected error", text)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	if got := FormatNumber(10.0); got != "10" {
		t.Errorf("FormatNumber(10.0) = %q, want %q", got, "10")
	}
	if got := FormatNumber(3.45); got != "3.45" {
		t.Errorf("FormatNumber(3.45) = %q, want %q", got, "3.45")
	}
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"USD", "USD"},
		{"usd", "USD"},
		{"dollars", "USD"},
		{"$", "USD"},
		{"euro", "EUR"},
		{"sterling", "GBP"},
		{"JPY", "JPY"},
		{"sek", "SEK"}, // unknown name but valid ISO shape
	}
	for _, tt := range tests {
		got, err := ParseCurrency(tt.text)
		if err != nil {
			t.Errorf("ParseCurrency(%q) error = %v", tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCurrency(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}

	if _, err := ParseCurrency("moneybucks"); err == nil {
		t.Error("ParseCurrency expected error for unknown currency")
	}
}

func TestParseAmount(t *testing.T) {
	amount, ccy, err := ParseAmount("10 million USD")
	if err != nil {
		t.Fatalf("ParseAmount error = %v", err)
	}
	if amount != 10e6 || ccy != "USD" {
		t.Errorf("ParseAmount = %v %q, want 1e7 USD", amount, ccy)
	}

	amount, ccy, err = ParseAmount("EUR 25m")
	if err != nil {
		t.Fatalf("ParseAmount error = %v", err)
	}
	if amount != 25e6 || ccy != "EUR" {
		t.Errorf("ParseAmount = %v %q, want 2.5e7 EUR", amount, ccy)
	}

	amount, ccy, err = ParseAmount("1,000,000")
	if err != nil {
		t.Fatalf("ParseAmount error = %v", err)
	}
	if amount != 1e6 || ccy != "" {
		t.Errorf("ParseAmount = %v %q, want 1e6 with no currency", amount, ccy)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"2030-06-15", "2030-06-15"},
		{"15 June 2030", "2030-06-15"},
		{"June 15, 2030", "2030-06-15"},
		{"Jun 15, 2030", "2030-06-15"},
		{"15-Jun-2030", "2030-06-15"},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.text)
		if err != nil {
			t.Errorf("ParseDate(%q) error = %v", tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDate(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}

	if _, err := ParseDate("sometime next year"); err == nil {
		t.Error("ParseDate expected error for vague date")
	}
}

func TestParseDateOrTenor(t *testing.T) {
	dt, err := ParseDateOrTenor("2030-06-15")
	if err != nil {
		t.Fatalf("ParseDateOrTenor error = %v", err)
	}
	if dt.Date != "2030-06-15" {
		t.Errorf("Date = %q", dt.Date)
	}

	dt, err = ParseDateOrTenor("5 years")
	if err != nil {
		t.Fatalf("ParseDateOrTenor error = %v", err)
	}
	if dt.Years != 5 {
		t.Errorf("Years = %v, want 5", dt.Years)
	}

	dt, err = ParseDateOrTenor("5y")
	if err != nil {
		t.Fatalf("ParseDateOrTenor error = %v", err)
	}
	if dt.Years != 5 {
		t.Errorf("Years = %v, want 5", dt.Years)
	}

	dt, err = ParseDateOrTenor("18 months")
	if err != nil {
		t.Fatalf("ParseDateOrTenor error = %v", err)
	}
	if dt.Years != 1.5 {
		t.Errorf("Years = %v, want 1.5", dt.Years)
	}

	if _, err := ParseDateOrTenor("at the usual time"); err == nil {
		t.Error("ParseDateOrTenor expected error")
	}
}

func TestParsePayFreqMonths(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"monthly", 1},
		{"quarterly", 3},
		{"semiannual", 6},
		{"semi-annual", 6},
		{"annual", 12},
		{"3", 3},
		{"6M", 6},
		{"every 3 months", 3},
	}
	for _, tt := range tests {
		got, err := ParsePayFreqMonths(tt.text)
		if err != nil {
			t.Errorf("ParsePayFreqMonths(%q) error = %v", tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePayFreqMonths(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}

	if _, err := ParsePayFreqMonths("5"); err == nil {
		t.Error("5 months is not a valid payment frequency")
	}
	if _, err := ParsePayFreqMonths("fortnightly"); err == nil {
		t.Error("expected error for unsupported frequency")
	}
}

func TestParseDayCountBasis(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"30/360", "30/360"},
		{"Act/360", "actual/360"},
		{"ACT/365", "actual/365"},
		{"act/act", "actual/actual"},
		{"bond basis", "30/360"},
	}
	for _, tt := range tests {
		got, err := ParseDayCountBasis(tt.text)
		if err != nil {
			t.Errorf("ParseDayCountBasis(%q) error = %v", tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDayCountBasis(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}

	if _, err := ParseDayCountBasis("whatever/360"); err == nil {
		t.Error("expected error for unknown basis")
	}
}

func TestParseRatesIndex(t *testing.T) {
	if got, _ := ParseRatesIndex("Term SOFR"); got != "SOFR" {
		t.Errorf("ParseRatesIndex(Term SOFR) = %q", got)
	}
	if got, _ := ParseRatesIndex("EURIBOR 6M"); got != "EURIBOR" {
		t.Errorf("ParseRatesIndex(EURIBOR 6M) = %q", got)
	}
	// Open-ended universe: unknown indices pass through uppercased.
	if got, _ := ParseRatesIndex("wibor 3m"); got != "WIBOR 3M" {
		t.Errorf("ParseRatesIndex(wibor 3m) = %q", got)
	}
}

func TestCanonical_VariantDispatch(t *testing.T) {
	tests := []struct {
		kind Kind
		text string
		want string
	}{
		{KindNumber, "10.0", "10"},
		{KindAmount, "10 million USD", "10000000 USD"},
		{KindCurrency, "dollars", "USD"},
		{KindDate, "15 June 2030", "2030-06-15"},
		{KindDateOrTenor, "5 years", "5"},
		{KindPayFreqMonths, "quarterly", "3"},
		{KindDayCountBasis, "Act/360", "actual/360"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got, err := Canonical(tt.kind, tt.text)
			if err != nil {
				t.Fatalf("Canonical(%v, %q) error = %v", tt.kind, tt.text, err)
			}
			if got != tt.want {
				t.Errorf("Canonical(%v, %q) = %q, want %q", tt.kind, tt.text, got, tt.want)
			}
		})
	}
}
