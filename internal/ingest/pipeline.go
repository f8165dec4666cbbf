// Package ingest orchestrates the scrape-convert-register flow that turns
// term-sheet pages into trade input records.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradentry/tradentry/internal/processor"
	"github.com/tradentry/tradentry/internal/scraper"
	"github.com/tradentry/tradentry/internal/storage"
	"github.com/tradentry/tradentry/internal/store"
	"github.com/tradentry/tradentry/pkg/models"
)

// ScraperConfig holds scraper-specific configuration.
type ScraperConfig struct {
	Delay            time.Duration
	MaxDepth         int
	FollowLinks      bool
	UserAgent        string
	TryMarkdownFirst bool
}

// Config holds pipeline configuration.
type Config struct {
	Scraper ScraperConfig
}

// Result holds pipeline execution results.
type Result struct {
	SheetsFetched    int
	TradesRegistered int
	Duration         time.Duration
	Errors           []string
}

// Pipeline orchestrates fetching, conversion and registration of trade
// inputs. The archive is optional; when nil, raw sheets are not kept.
type Pipeline struct {
	scraper   *scraper.Scraper
	processor *processor.Processor
	archive   *storage.Archive
	store     store.RecordStore
}

// New creates a new Pipeline.
func New(config Config, s store.RecordStore, archive *storage.Archive) (*Pipeline, error) {
	if s == nil {
		return nil, fmt.Errorf("record store is required")
	}

	return &Pipeline{
		scraper: scraper.New(scraper.Config{
			Delay:            config.Scraper.Delay,
			MaxDepth:         config.Scraper.MaxDepth,
			FollowLinks:      config.Scraper.FollowLinks,
			UserAgent:        config.Scraper.UserAgent,
			TryMarkdownFirst: config.Scraper.TryMarkdownFirst,
		}),
		processor: processor.New(),
		archive:   archive,
		store:     s,
	}, nil
}

// Run fetches term sheets from sourceURL and registers every trade entry
// found in them under the trade group. Trade ids are assigned sequentially
// in page order.
func (p *Pipeline) Run(ctx context.Context, sourceURL, tradeGroup string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	sheets, err := p.scraper.Fetch(ctx, sourceURL)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	result.SheetsFetched = len(sheets)

	tradeID := 1
	var pageURLs []string
	for _, sheet := range sheets {
		text, title, err := p.sheetText(sheet)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sheet.URL, err))
			continue
		}
		sheet.Text = text
		sheet.Title = title

		if p.archive != nil {
			if err := p.archive.PutTermSheet(ctx, tradeGroup, sheet); err != nil {
				slog.Warn("failed to archive term sheet", "url", sheet.URL, "error", err)
				result.Errors = append(result.Errors, err.Error())
			}
		}

		for _, entry := range processor.SplitEntries(text) {
			input := models.TradeInput{
				TradeGroup: tradeGroup,
				TradeID:    tradeID,
				EntryText:  entry,
			}
			if err := p.store.Put(ctx, input); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("trade %d: %v", tradeID, err))
				continue
			}
			tradeID++
			result.TradesRegistered++
		}
		pageURLs = append(pageURLs, sheet.URL)
	}

	if p.archive != nil && len(pageURLs) > 0 {
		meta := storage.GroupMetadata{
			TradeGroup: tradeGroup,
			SourceURL:  sourceURL,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			SheetCount: len(pageURLs),
			Pages:      pageURLs,
		}
		if err := p.archive.PutMetadata(ctx, tradeGroup, meta); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	result.Duration = time.Since(start)
	slog.Info("ingest complete",
		"group", tradeGroup, "sheets", result.SheetsFetched,
		"trades", result.TradesRegistered, "errors", len(result.Errors))
	return result, nil
}

// sheetText converts a fetched sheet to plain text and picks a title.
func (p *Pipeline) sheetText(sheet models.TermSheet) (string, string, error) {
	if processor.IsMarkdown(sheet.URL, sheet.ContentType, sheet.Text) {
		title := processor.ExtractMarkdownTitle(sheet.Text)
		if title == "" {
			title = sheet.URL
		}
		return sheet.Text, title, nil
	}

	title := p.processor.ExtractTitle(sheet.Text)
	text, err := p.processor.Convert(sheet.Text)
	if err != nil {
		return "", "", fmt.Errorf("failed to convert page: %w", err)
	}
	if title == "" {
		title = sheet.URL
	}
	return text, title, nil
}
