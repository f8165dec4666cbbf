package retriever

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/tradentry/tradentry/internal/cache"
	"github.com/tradentry/tradentry/internal/store"
)

// fakeLLM replays canned completions and counts calls.
type fakeLLM struct {
	responses []string
	calls     int
}

func (f *fakeLLM) Complete(_ context.Context, _ string) (string, error) {
	if f.calls >= len(f.responses) {
		return "", fmt.Errorf("no canned response for call %d", f.calls)
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeLLM) Model() string { return "fake-llm" }

func annotationResponse(annotated string) string {
	return fmt.Sprintf(`{"success": "Y", "annotated_text": %q, "justification": "found it"}`, annotated)
}

func newTestRetriever(t *testing.T, llm Completer, maxRetries int) *Retriever {
	t.Helper()
	s := store.NewMemory()
	c, err := cache.New(context.Background(), cache.Config{
		Channel: "fake-llm",
		Dir:     t.TempDir(),
		Store:   s,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	r, err := New(Config{
		RetrieverID: "test-retriever",
		TrialID:     "0",
		MaxRetries:  maxRetries,
		LLM:         llm,
		Cache:       c,
		Store:       s,
	})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}
	return r
}

func TestRetrieve_AnnotatedSpanExtracted(t *testing.T) {
	input := "Trade notional is 10 million USD maturing in 5 years"
	llm := &fakeLLM{responses: []string{
		annotationResponse("Trade notional is {10 million USD} maturing in 5 years"),
	}}
	r := newTestRetriever(t, llm, 1)

	value, found, err := r.Retrieve(context.Background(), input, "Trade notional", true, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !found {
		t.Fatal("value not found")
	}
	if value != "10 million USD" {
		t.Errorf("value = %q, want %q", value, "10 million USD")
	}
	if llm.calls != 1 {
		t.Errorf("llm calls = %d, want 1", llm.calls)
	}
}

func TestRetrieve_MultipleSpansJoined(t *testing.T) {
	input := "Pay fixed 3.45 pct semiannual"
	llm := &fakeLLM{responses: []string{
		annotationResponse("Pay fixed {3.45} {pct} semiannual"),
	}}
	r := newTestRetriever(t, llm, 1)

	value, _, err := r.Retrieve(context.Background(), input, "Fixed rate", true, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if value != "3.45 pct" {
		t.Errorf("value = %q, want %q", value, "3.45 pct")
	}
}

func TestRetrieve_FencedResponseUnwrapped(t *testing.T) {
	input := "Notional 10 million USD"
	llm := &fakeLLM{responses: []string{
		"```" + annotationResponse("Notional {10 million USD}") + "```",
	}}
	r := newTestRetriever(t, llm, 1)

	value, _, err := r.Retrieve(context.Background(), input, "Trade notional", true, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if value != "10 million USD" {
		t.Errorf("value = %q", value)
	}
}

func TestRetrieve_OptionalAbsentReturnsWithoutRetries(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"success": "N", "annotated_text": "", "justification": "no spread mentioned"}`,
	}}
	r := newTestRetriever(t, llm, 3)

	value, found, err := r.Retrieve(context.Background(), "Plain fixed bond", "Floating spread", false, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if found {
		t.Errorf("optional absent field reported found with value %q", value)
	}
	if llm.calls != 1 {
		t.Errorf("llm calls = %d, want 1 (optional absence must not retry)", llm.calls)
	}
}

func TestRetrieve_RequiredAbsentExhaustsRetries(t *testing.T) {
	notFound := `{"success": "N", "annotated_text": "", "justification": "not present"}`
	llm := &fakeLLM{responses: []string{notFound, notFound, notFound}}
	r := newTestRetriever(t, llm, 3)

	input := "Plain fixed bond"
	_, _, err := r.Retrieve(context.Background(), input, "Floating spread", true, nil)
	if err == nil {
		t.Fatal("expected exhaustion error for required absent field")
	}
	if !strings.Contains(err.Error(), input) || !strings.Contains(err.Error(), "Floating spread") {
		t.Errorf("exhaustion error missing context: %v", err)
	}
	if llm.calls != 3 {
		t.Errorf("llm calls = %d, want 3", llm.calls)
	}
}

func TestRetrieve_RetriesUseIsolatedCacheKeys(t *testing.T) {
	input := "Notional 10 million USD"
	llm := &fakeLLM{responses: []string{
		// First attempt mutates the text, second is clean.
		annotationResponse("Notional {10 million} dollars"),
		annotationResponse("Notional {10 million USD}"),
	}}
	r := newTestRetriever(t, llm, 2)

	value, _, err := r.Retrieve(context.Background(), input, "Trade notional", true, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if value != "10 million USD" {
		t.Errorf("value = %q", value)
	}
	// Both attempts must reach the LLM: the retry runs under its own trial
	// id and cannot reuse the first attempt's cached answer.
	if llm.calls != 2 {
		t.Errorf("llm calls = %d, want 2", llm.calls)
	}
}

func TestRetrieve_MismatchToleratedOnFinalRetry(t *testing.T) {
	input := "Notional 10 million USD"
	llm := &fakeLLM{responses: []string{
		annotationResponse("Notional {10 million} dollars"),
	}}
	r := newTestRetriever(t, llm, 1)

	value, found, err := r.Retrieve(context.Background(), input, "Trade notional", true, nil)
	if err != nil {
		t.Fatalf("final-retry mismatch should be tolerated, got: %v", err)
	}
	if !found || value != "10 million" {
		t.Errorf("value = %q, found = %v", value, found)
	}
}

func TestRetrieve_EmptyAnnotationWithSuccessFails(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"success": "Y", "annotated_text": "", "justification": "sure"}`,
	}}
	r := newTestRetriever(t, llm, 1)

	_, _, err := r.Retrieve(context.Background(), "some text", "field", true, nil)
	if err == nil {
		t.Fatal("expected inconsistent-response error")
	}
	if !strings.Contains(err.Error(), "annotated text is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRetrieve_NestedBracesFailOnFinalRetry(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		annotationResponse("Notional {10 {million}} USD"),
	}}
	r := newTestRetriever(t, llm, 1)

	_, _, err := r.Retrieve(context.Background(), "Notional 10 million USD", "Trade notional", true, nil)
	if err == nil {
		t.Fatal("expected nested-braces error")
	}
}

func TestRetrieve_GarbageJSONFails(t *testing.T) {
	llm := &fakeLLM{responses: []string{"Sure! The notional is 10 million USD."}}
	r := newTestRetriever(t, llm, 1)

	_, _, err := r.Retrieve(context.Background(), "Notional 10 million USD", "Trade notional", true, nil)
	if err == nil {
		t.Fatal("expected JSON extraction error")
	}
	if !strings.Contains(err.Error(), "JSON") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRetrieve_RepeatCallsWithinSessionHitLLMAgain(t *testing.T) {
	input := "Notional 10 million USD"
	resp := annotationResponse("Notional {10 million USD}")
	llm := &fakeLLM{responses: []string{resp, resp}}
	r := newTestRetriever(t, llm, 1)

	for i := 0; i < 2; i++ {
		if _, _, err := r.Retrieve(context.Background(), input, "Trade notional", true, nil); err != nil {
			t.Fatalf("Retrieve %d failed: %v", i, err)
		}
	}
	// Fresh completions written during this run are not reused, so the
	// second call must reach the LLM as well.
	if llm.calls != 2 {
		t.Errorf("llm calls = %d, want 2", llm.calls)
	}
}

func TestRetrieve_BudgetAccounting(t *testing.T) {
	llm := &fakeLLM{responses: []string{annotationResponse("{x}")}}
	r := newTestRetriever(t, llm, 1)

	before := r.CallsRemaining()
	r.Retrieve(context.Background(), "x", "field", true, nil)
	if r.CallsRemaining() != before-1 {
		t.Errorf("CallsRemaining = %d, want %d", r.CallsRemaining(), before-1)
	}
	if r.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1", r.CallCount())
	}
}

func TestDeannotate_RoundTrip(t *testing.T) {
	original := "Trade notional is 10 million USD maturing in 5 years"
	annotated := "Trade notional is {10 million USD} maturing in {5 years}"
	if got := Deannotate(annotated); got != original {
		t.Errorf("Deannotate() = %q, want %q", got, original)
	}
}

func TestRenderPrompt_FillsPlaceholders(t *testing.T) {
	prompt := RenderPrompt(DefaultTemplate, "input here", "the field", []string{"a", "b"})
	if !strings.Contains(prompt, "```input here```") {
		t.Error("input text not rendered")
	}
	if !strings.Contains(prompt, "```the field```") {
		t.Error("field description not rendered")
	}
	if !strings.Contains(prompt, "a, b") {
		t.Error("samples not rendered")
	}
}
