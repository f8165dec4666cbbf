package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tradentry/tradentry/internal/store"
	"github.com/tradentry/tradentry/pkg/models"
)

func newTestCache(t *testing.T, s store.RecordStore) *Cache {
	t.Helper()
	c, err := New(context.Background(), Config{
		Channel: "gpt-4o",
		Dir:     t.TempDir(),
		Store:   s,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c
}

func TestCache_RoundTripAcrossRuns(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	// First run writes a completion.
	first := newTestCache(t, s)
	if err := first.Put(ctx, models.NewRequestID(), "Trade notional?", "10 million USD", "0"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// A later run with the same store sees it as a hit.
	second := newTestCache(t, s)
	got, found, err := second.Get(ctx, "Trade notional?", "0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("completion not found in a later run")
	}
	if got != "10 million USD" {
		t.Errorf("completion = %q", got)
	}
}

func TestCache_MissIsNotError(t *testing.T) {
	c := newTestCache(t, store.NewMemory())

	_, found, err := c.Get(context.Background(), "never asked", "")
	if err != nil {
		t.Fatalf("Get on unwritten key errored: %v", err)
	}
	if found {
		t.Error("Get on unwritten key reported a hit")
	}
}

func TestCache_NoReuseWithinSession(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, store.NewMemory())

	if err := c.Put(ctx, models.NewRequestID(), "Trade notional?", "10 million USD", "0"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// The completion just written must not be served back in the same run,
	// otherwise repeated in-session calls would be silently deduplicated.
	_, found, err := c.Get(ctx, "Trade notional?", "0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("completion written this run was served as a hit")
	}
}

func TestCache_NormalizationUnifiesEOL(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	first := newTestCache(t, s)
	if err := first.Put(ctx, models.NewRequestID(), "line one\r\nline two", "done", ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	second := newTestCache(t, s)
	_, found, err := second.Get(ctx, "  line one\nline two\n", "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Error("normalized query variants should hit the same entry")
	}
}

func TestCache_TrialIsolation(t *testing.T) {
	c := newTestCache(t, store.NewMemory())

	key0, err := c.Key("same query", "trial-0")
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	key1, err := c.Key("same query", "trial-1")
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if key0 == key1 {
		t.Errorf("trial ids should produce distinct keys, both were %q", key0)
	}
}

func TestCache_SideLogPrimesNextRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := New(ctx, Config{Channel: "gpt-4o", Dir: dir, Store: store.NewMemory()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	if err := first.Put(ctx, models.NewRequestID(), "Trade notional?", "10 million USD", "2"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// A fresh store primed only from the side log must serve the hit.
	second, err := New(ctx, Config{Channel: "gpt-4o", Dir: dir, Store: store.NewMemory()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	got, found, err := second.Get(ctx, "Trade notional?", "2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("side log did not prime the next run")
	}
	if got != "10 million USD" {
		t.Errorf("completion = %q", got)
	}
}

func TestCache_RejectsUnsupportedExtension(t *testing.T) {
	_, err := New(context.Background(), Config{
		Channel: "gpt-4o",
		Ext:     "parquet",
		Dir:     t.TempDir(),
		Store:   store.NewMemory(),
	})
	if err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestCache_RejectsMalformedHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpt-4o.completions.csv")
	if err := os.WriteFile(path, []byte("Wrong,Header,Shape\n"), 0o644); err != nil {
		t.Fatalf("failed to seed cache file: %v", err)
	}

	_, err := New(context.Background(), Config{Channel: "gpt-4o", Dir: dir, Store: store.NewMemory()})
	if err == nil {
		t.Fatal("expected error for malformed side-log header")
	}
	if !strings.Contains(err.Error(), "RequestID") {
		t.Errorf("error should name the expected headers: %v", err)
	}
}

func TestCache_LogPreservesMultilineQuery(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := New(ctx, Config{Channel: "gpt-4o", Dir: dir, Store: store.NewMemory()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	query := "Annotate the text below.\nInput: pay fixed 3.45 pct"
	if err := first.Put(ctx, models.NewRequestID(), query, "ok", ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	second, err := New(ctx, Config{Channel: "gpt-4o", Dir: dir, Store: store.NewMemory()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	_, found, err := second.Get(ctx, query, "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Error("multiline query did not survive the side-log round trip")
	}
}
