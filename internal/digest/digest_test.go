package digest

import (
	"strings"
	"testing"
)

func TestDigest_ShortTextUnchanged(t *testing.T) {
	got, err := Digest("Trade notional", nil, nil)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if got != "Trade notional" {
		t.Errorf("got %q, want %q", got, "Trade notional")
	}
}

func TestDigest_VisibleParams(t *testing.T) {
	got, err := Digest("Trade notional", []string{"gpt-4o", "trial-1"}, nil)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	want := "Trade notional (gpt-4o, trial-1)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDigest_EmptyParamsPruned(t *testing.T) {
	got, err := Digest("Trade notional", []string{"gpt-4o", "", "trial-1"}, nil)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	want := "Trade notional (gpt-4o, trial-1)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDigest_Deterministic(t *testing.T) {
	text := strings.Repeat("Fixed rate 3.45 pct semiannual 30/360. ", 10)
	first, err := Digest(text, []string{"gpt-4o"}, nil)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	second, err := Digest(text, []string{"gpt-4o"}, nil)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if first != second {
		t.Errorf("digest not deterministic: %q vs %q", first, second)
	}
}

func TestDigest_LongTextTruncated(t *testing.T) {
	text := strings.Repeat("a", 200)
	got, err := Digest(text, nil, nil)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	open := strings.Index(got, " (")
	if open < 0 {
		t.Fatalf("truncated digest missing hash suffix: %q", got)
	}
	if short := got[:open]; len(short) > 80 {
		t.Errorf("shortened form is %d chars, want <= 80", len(short))
	}
}

func TestDigest_MultilineCollapsed(t *testing.T) {
	got, err := Digest("first line\nsecond   line", nil, nil)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if strings.Contains(got, "\n") {
		t.Errorf("digest contains newline: %q", got)
	}
	if !strings.HasPrefix(got, "first line second line (") {
		t.Errorf("whitespace not collapsed: %q", got)
	}
}

func TestDigest_HashParamsForceSuffix(t *testing.T) {
	plain, err := Digest("short", nil, nil)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	hashed, err := Digest("short", nil, []string{"salt"})
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if plain == hashed {
		t.Errorf("hash params should change the digest: %q", hashed)
	}
	if !strings.Contains(hashed, "(") {
		t.Errorf("hash suffix missing: %q", hashed)
	}
}

func TestDigest_EmptyTextRejected(t *testing.T) {
	if _, err := Digest("", nil, nil); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestDigest_DisallowedDelimitersRejected(t *testing.T) {
	for _, text := range []string{`a\b`, "a;b"} {
		if _, err := Digest(text, nil, nil); err == nil {
			t.Errorf("expected error for text %q", text)
		}
	}
}

func TestHashHex_NormalizesCaseAndWhitespace(t *testing.T) {
	a := HashHex("Pay Fixed 3.45%\r\nSemiannual")
	b := HashHex("pay fixed 3.45%semiannual")
	if a != b {
		t.Errorf("hash differs after normalization: %q vs %q", a, b)
	}
}
