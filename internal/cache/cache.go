// Package cache stores LLM completions keyed by a deterministic fingerprint
// of (query, llm, trial) so identical queries do not trigger repeated,
// costly, non-deterministic LLM calls across runs.
package cache

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tradentry/tradentry/internal/digest"
	"github.com/tradentry/tradentry/internal/store"
	"github.com/tradentry/tradentry/pkg/models"
)

// supportedExtensions lists the side-log formats the cache can write.
var supportedExtensions = []string{"csv"}

// csvHeaders is the fixed side-log header. A file whose header differs is
// rejected rather than silently reinterpreted.
var csvHeaders = []string{"RequestID", "Query", "Completion"}

// Config holds completion cache configuration.
type Config struct {
	// Channel identifies the cache, usually the llm id. It becomes both a
	// digest parameter and the side-log filename prefix.
	Channel string
	// Ext is the side-log format without the dot prefix, defaults to "csv".
	Ext string
	// Dir is the directory holding side-log files.
	Dir string
	// Store is the backing record store for completion lookups.
	Store store.RecordStore
	// DisableLog turns off side-log writes.
	DisableLog bool
	// DisableLoad skips priming the record store from an existing side log.
	DisableLoad bool
}

// Cache is a completion cache with an append-only CSV side log.
//
// Completions appended during the current run are not served back as hits
// within the same run: only entries present before the run began count. This
// keeps repeated in-session calls from being silently deduplicated, which
// would corrupt stability measurements.
type Cache struct {
	channel    string
	ext        string
	outputPath string
	store      store.RecordStore
	disableLog bool

	mu      sync.Mutex
	written map[string]struct{} // keys written during this run
}

// New creates the cache and primes the record store from an existing side
// log, if one is present.
func New(ctx context.Context, config Config) (*Cache, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("record store is required")
	}

	ext := strings.TrimPrefix(config.Ext, ".")
	if ext == "" {
		ext = "csv"
	}
	supported := false
	for _, s := range supportedExtensions {
		if ext == s {
			supported = true
		}
	}
	if !supported {
		return nil, fmt.Errorf("extension %q is not supported by the completion cache, supported extensions: %s",
			ext, strings.Join(supportedExtensions, ", "))
	}

	dir := config.Dir
	if dir == "" {
		dir = "completions"
	}
	filename := "completions." + ext
	if config.Channel != "" {
		filename = config.Channel + ".completions." + ext
	}

	c := &Cache{
		channel:    config.Channel,
		ext:        ext,
		outputPath: filepath.Join(dir, filename),
		store:      config.Store,
		disableLog: config.DisableLog,
		written:    make(map[string]struct{}),
	}

	if !config.DisableLoad {
		if err := c.loadLog(ctx); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// OutputPath reports where the side log is written.
func (c *Cache) OutputPath() string {
	return c.outputPath
}

// Key computes the cache key for a query against this cache's channel.
func (c *Cache) Key(query, trialID string) (string, error) {
	return digest.Digest(Normalize(query), []string{c.channel, trialID}, nil)
}

// Get returns the cached completion for the query, if one was stored before
// this run began. A miss is not an error.
func (c *Cache) Get(ctx context.Context, query, trialID string) (string, bool, error) {
	key, err := c.Key(query, trialID)
	if err != nil {
		return "", false, err
	}

	c.mu.Lock()
	_, thisRun := c.written[key]
	c.mu.Unlock()
	if thisRun {
		// Written during this run, deliberately not reused.
		return "", false, nil
	}

	var rec models.CompletionRecord
	found, err := c.store.Get(ctx, "completion:"+key, &rec)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}
	return rec.Completion, true, nil
}

// Put durably records a completion and appends it to the side log. Writing
// the same key twice overwrites rather than erroring.
func (c *Cache) Put(ctx context.Context, requestID, query, completion, trialID string) error {
	query = Normalize(query)
	completion = Normalize(completion)

	key, err := c.Key(query, trialID)
	if err != nil {
		return err
	}

	rec := models.CompletionRecord{
		CompletionID: key,
		LlmID:        c.channel,
		TrialID:      trialID,
		Timestamp:    requestID,
		Query:        query,
		Completion:   completion,
	}
	if err := c.store.Put(ctx, rec); err != nil {
		return err
	}

	c.mu.Lock()
	c.written[key] = struct{}{}
	c.mu.Unlock()

	if c.disableLog {
		return nil
	}
	return c.appendLog(requestID, qualifyQuery(query, trialID), completion)
}

// appendLog writes one side-log row and flushes it to disk immediately, so a
// crash mid-run loses at most the in-flight record.
func (c *Cache) appendLog(requestID, query, completion string) error {
	isNew := false
	if _, err := os.Stat(c.outputPath); os.IsNotExist(err) {
		isNew = true
		if err := os.MkdirAll(filepath.Dir(c.outputPath), 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	file, err := os.OpenFile(c.outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if isNew {
		if err := w.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write cache headers: %w", err)
		}
	}
	if err := w.Write([]string{requestID, query, completion}); err != nil {
		return fmt.Errorf("failed to write cache row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush cache row: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync cache file: %w", err)
	}
	return nil
}

// loadLog primes the record store from an existing side log so a previous
// run's completions are served as hits.
func (c *Cache) loadLog(ctx context.Context) error {
	file, err := os.Open(c.outputPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache headers: %w", err)
	}
	if len(header) != len(csvHeaders) || header[0] != csvHeaders[0] ||
		header[1] != csvHeaders[1] || header[2] != csvHeaders[2] {
		return fmt.Errorf("expected column headers %s in completions cache %s, actual headers: %s",
			strings.Join(csvHeaders, ", "), c.outputPath, strings.Join(truncateAll(header), ", "))
	}

	var recs []store.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read cache row: %w", err)
		}
		if len(row) != 3 {
			return fmt.Errorf("malformed cache row with %d columns in %s", len(row), c.outputPath)
		}

		query, trialID := splitQualifiedQuery(Normalize(row[1]))
		key, err := digest.Digest(query, []string{c.channel, trialID}, nil)
		if err != nil {
			return fmt.Errorf("failed to key cached completion: %w", err)
		}
		recs = append(recs, models.CompletionRecord{
			CompletionID: key,
			LlmID:        c.channel,
			TrialID:      trialID,
			Timestamp:    row[0],
			Query:        query,
			Completion:   Normalize(row[2]),
		})
	}

	if len(recs) == 0 {
		return nil
	}
	slog.Debug("priming record store from completion log", "path", c.outputPath, "records", len(recs))
	return c.store.PutMany(ctx, recs)
}

// Normalize strips leading and trailing whitespace and collapses all
// line-ending variants to "\n", so textually-equivalent queries across
// operating systems hit the same cache entry.
func Normalize(value string) string {
	value = strings.ReplaceAll(value, "\r\r\n", "\n")
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")
	return strings.TrimSpace(value)
}

// qualifyQuery embeds the trial id into the logged query text so the side log
// stays a three-column file while trial-isolated entries remain
// distinguishable on reload.
func qualifyQuery(query, trialID string) string {
	if trialID == "" {
		return query
	}
	return "TrialID: " + trialID + "\n" + query
}

// splitQualifiedQuery is the inverse of qualifyQuery.
func splitQualifiedQuery(logged string) (query, trialID string) {
	rest, ok := strings.CutPrefix(logged, "TrialID: ")
	if !ok {
		return logged, ""
	}
	trialID, query, ok = strings.Cut(rest, "\n")
	if !ok {
		return logged, ""
	}
	return query, trialID
}

func truncateAll(values []string) []string {
	const maxLen = 20
	out := make([]string, len(values))
	for i, v := range values {
		if len(v) > maxLen {
			v = v[:maxLen] + "..."
		}
		out[i] = v
	}
	return out
}
