// Package scraper fetches term-sheet pages from the web.
package scraper

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/tradentry/tradentry/internal/processor"
	"github.com/tradentry/tradentry/pkg/models"
)

// Config holds scraper configuration.
type Config struct {
	Delay            time.Duration
	MaxDepth         int
	FollowLinks      bool
	UserAgent        string
	Timeout          time.Duration
	TryMarkdownFirst bool // prefer a markdown variant of each page when one exists
}

// Scraper fetches term-sheet pages and returns their raw content.
type Scraper struct {
	config     Config
	httpClient *http.Client
}

// New creates a new Scraper with the given configuration.
func New(config Config) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "tradentry/1.0"
	}
	return &Scraper{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Fetch retrieves the given URL and optionally follows same-host links,
// returning one TermSheet per page. The context cancels the crawl.
func (s *Scraper) Fetch(ctx context.Context, startURL string) ([]models.TermSheet, error) {
	var sheets []models.TermSheet
	var mu sync.Mutex
	var cancelled bool

	slog.Debug("starting fetch", "url", startURL, "max_depth", s.config.MaxDepth)

	parsedURL, err := url.Parse(startURL)
	if err != nil {
		slog.Error("failed to parse URL", "url", startURL, "error", err)
		return nil, err
	}

	c := colly.NewCollector(
		colly.MaxDepth(s.config.MaxDepth),
		colly.UserAgent(s.config.UserAgent),
	)

	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       s.config.Delay,
		Parallelism: 2,
	})
	c.SetRequestTimeout(s.config.Timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			slog.Debug("fetch cancelled", "url", r.URL.String())
			r.Abort()
			cancelled = true
		}
	})

	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode >= 400 {
			slog.Debug("skipping page with error status", "url", r.Request.URL.String(), "status", r.StatusCode)
			return
		}

		pageURL := r.Request.URL.String()
		content := string(r.Body)
		contentType := r.Headers.Get("Content-Type")

		slog.Debug("fetched page", "url", pageURL, "content_type", contentType, "size", len(content))

		if s.config.TryMarkdownFirst {
			if mdContent, mdContentType, ok := s.tryMarkdownVariants(ctx, pageURL); ok {
				slog.Debug("using markdown variant", "url", pageURL)
				content = mdContent
				contentType = mdContentType
			}
		}

		sheet := models.TermSheet{
			URL:         pageURL,
			Text:        content,
			ContentType: contentType,
			FetchedAt:   time.Now(),
		}

		mu.Lock()
		sheets = append(sheets, sheet)
		mu.Unlock()
	})

	if s.config.FollowLinks {
		c.OnHTML("a[href]", func(e *colly.HTMLElement) {
			absoluteURL := e.Request.AbsoluteURL(e.Attr("href"))
			linkURL, err := url.Parse(absoluteURL)
			if err != nil {
				return
			}
			// Term sheets live on the same host as the index page.
			if linkURL.Host == parsedURL.Host {
				e.Request.Visit(absoluteURL)
			}
		})
	}

	err = c.Visit(startURL)
	if err != nil {
		slog.Debug("visit error (continuing)", "url", startURL, "error", err)
		return sheets, nil
	}

	c.Wait()

	if cancelled {
		slog.Info("fetch cancelled by context", "pages_fetched", len(sheets))
		return sheets, ctx.Err()
	}

	slog.Debug("fetch complete", "url", startURL, "pages", len(sheets))
	return sheets, nil
}

// tryMarkdownVariants attempts to fetch markdown versions of the page.
func (s *Scraper) tryMarkdownVariants(ctx context.Context, pageURL string) (string, string, bool) {
	for _, variantURL := range processor.MarkdownVariants(pageURL) {
		if ctx.Err() != nil {
			return "", "", false
		}
		if content, contentType, ok := s.tryFetchMarkdown(ctx, variantURL); ok {
			return content, contentType, true
		}
	}
	return "", "", false
}

// tryFetchMarkdown attempts to fetch a single markdown URL.
func (s *Scraper) tryFetchMarkdown(ctx context.Context, url string) (string, string, bool) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", "", false
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", false
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")

	if processor.IsMarkdown(url, contentType, content) {
		return content, contentType, true
	}
	return "", "", false
}
