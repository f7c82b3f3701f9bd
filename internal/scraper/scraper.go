package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	userAgent     = "SiteHelper Bot/1.0"
	maxContentLen = 10000
	maxBodyBytes  = 5 << 20 // 5 MiB fetch cap
)

// Scraper fetches a page and reduces it to plain text for a knowledge base.
type Scraper struct {
	httpClient *http.Client
}

func New() *Scraper {
	return &Scraper{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Result is the extracted knowledge base content for one page.
type Result struct {
	Content string
	Summary string
}

// Scrape fetches the URL and extracts its visible text, truncated to the
// knowledge base content limit.
func (s *Scraper) Scrape(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create scrape request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	content, err := ExtractText(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("extract text from %s: %w", url, err)
	}
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}

	summary := fmt.Sprintf("Knowledge base extracted from %s. Contains %d words of content.",
		url, len(strings.Fields(content)))

	return &Result{Content: content, Summary: summary}, nil
}

// ExtractText tokenizes HTML and returns its visible text with whitespace
// collapsed. Script and style bodies are skipped.
func ExtractText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var words []string
	skipDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return strings.Join(words, " "), nil
			}
			return "", z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			words = append(words, strings.Fields(string(z.Text()))...)
		}
	}
}

func skippedTag(name string) bool {
	switch name {
	case "script", "style", "noscript":
		return true
	}
	return false
}
