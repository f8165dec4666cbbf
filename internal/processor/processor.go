// Package processor turns fetched term-sheet pages into plain text and splits
// them into individual trade entries.
package processor

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// Processor converts term-sheet pages to text suitable for extraction.
type Processor struct{}

// New creates a new page processor.
func New() *Processor {
	return &Processor{}
}

// Convert transforms an HTML term sheet into Markdown text.
func (p *Processor) Convert(htmlContent string) (string, error) {
	if htmlContent == "" {
		return "", nil
	}

	text, err := htmltomarkdown.ConvertString(htmlContent)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ExtractTitle extracts the <title> content from an HTML page.
func (p *Processor) ExtractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var findTitle func(*html.Node)
	findTitle = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTitle(c)
		}
	}
	findTitle(doc)

	return strings.TrimSpace(title)
}

// ExtractMarkdownTitle extracts the first H1 heading from markdown text.
func ExtractMarkdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimPrefix(line, "# ")
		}
	}
	return ""
}

// entryMarkerRe matches the start of a numbered trade entry: "1.", "2)",
// "Trade 3:" and similar at the beginning of a line. Markdown converters
// escape list-like dots ("1\."), so an optional backslash is tolerated.
var entryMarkerRe = regexp.MustCompile(`(?mi)^\s*(?:trade\s+)?([0-9]+)\s*\\?[.):]\s+`)

// SplitEntries splits a term-sheet text into individual trade descriptions.
// Entries are numbered with markers like "1.", "2)" or "Trade 3:"; text
// before the first marker is discarded. A text with no markers is one entry.
func SplitEntries(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	locs := entryMarkerRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	var entries []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		entry := strings.TrimSpace(text[loc[1]:end])
		if entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// IsMarkdown reports whether a fetched page is already markdown, checking
// Content-Type, then the URL extension, then content heuristics.
func IsMarkdown(url, contentType, content string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "text/markdown") || strings.HasPrefix(ct, "text/x-markdown") {
		return true
	}
	if isMarkdownURL(url) {
		return true
	}
	return hasMarkdownShape(content)
}

func isMarkdownURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}

var (
	mdHeadingRe = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	mdListRe    = regexp.MustCompile(`(?m)^[\-\*]\s+\S`)
	mdLinkRe    = regexp.MustCompile(`\[.+?\]\(.+?\)`)
	mdTableRe   = regexp.MustCompile(`(?m)^\|.+\|\s*$`)
)

// hasMarkdownShape applies cheap heuristics. HTML documents are never
// markdown; otherwise headings, lists, links or tables count as evidence.
func hasMarkdownShape(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}

	lower := strings.ToLower(trimmed)
	for _, prefix := range []string{"<!doctype", "<html", "<head", "<body"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}

	return mdHeadingRe.MatchString(trimmed) ||
		mdListRe.MatchString(trimmed) ||
		mdLinkRe.MatchString(trimmed) ||
		mdTableRe.MatchString(trimmed)
}

// MarkdownVariants returns candidate markdown URLs for a page, cheapest
// first. Pages already served as markdown have no variants.
func MarkdownVariants(url string) []string {
	if isMarkdownURL(url) {
		return nil
	}
	return []string{strings.TrimSuffix(url, "/") + ".md"}
}
