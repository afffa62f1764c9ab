package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mikeboe/research-agent/pkg/clients"
)

const (
	DefaultFirecrawlURL  = "https://api.firecrawl.dev"
	defaultSearchLimit   = 10
	defaultPollInterval  = 2 * time.Second
	maxBatchPages        = 20
	batchStatusCompleted = "completed"
	batchStatusFailed    = "failed"
	batchStatusCancelled = "cancelled"
)

// Firecrawl is a client for the Firecrawl search and batch scrape API.
// It serves both as the source finder and as the content extractor.
type Firecrawl struct {
	APIKey       string
	BaseURL      string
	HTTPClient   *http.Client
	SearchLimit  int
	PollInterval time.Duration
}

func NewFirecrawl(apiKey, baseURL string) *Firecrawl {
	if baseURL == "" {
		baseURL = DefaultFirecrawlURL
	}
	return &Firecrawl{
		APIKey:       apiKey,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTPClient:   &http.Client{},
		SearchLimit:  defaultSearchLimit,
		PollInterval: defaultPollInterval,
	}
}

type firecrawlSearchRequest struct {
	Query         string                 `json:"query"`
	Limit         int                    `json:"limit,omitempty"`
	ScrapeOptions firecrawlScrapeOptions `json:"scrapeOptions"`
}

// firecrawlScrapeOptions asks search to return page markdown, which backs the
// snippet fallback when extraction fails.
type firecrawlScrapeOptions struct {
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type firecrawlSearchResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Markdown    string `json:"markdown"`
	} `json:"data"`
}

// Search queries Firecrawl for pages matching query. An empty result set is
// not an error.
func (f *Firecrawl) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var resp firecrawlSearchResponse
	err := doJSON(ctx, f.HTTPClient, clients.ProviderFirecrawl, http.MethodPost, f.BaseURL+"/v1/search", f.headers(),
		firecrawlSearchRequest{
			Query:         query,
			Limit:         f.SearchLimit,
			ScrapeOptions: firecrawlScrapeOptions{Formats: []string{"markdown"}, OnlyMainContent: true},
		}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &clients.ProviderError{Provider: clients.ProviderFirecrawl, Message: nonEmpty(resp.Error, "search was not successful")}
	}

	results := make([]SearchResult, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.URL == "" {
			continue
		}
		results = append(results, SearchResult{
			URL:         d.URL,
			Title:       d.Title,
			Description: d.Description,
			Content:     d.Markdown,
		})
	}
	return results, nil
}

type firecrawlBatchRequest struct {
	URLs              []string             `json:"urls"`
	Formats           []string             `json:"formats"`
	JSONOptions       firecrawlJSONOptions `json:"jsonOptions"`
	OnlyMainContent   bool                 `json:"onlyMainContent"`
	IgnoreInvalidURLs bool                 `json:"ignoreInvalidURLs"`
}

type firecrawlJSONOptions struct {
	Prompt string `json:"prompt"`
}

type firecrawlBatchStarted struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error"`
}

type firecrawlBatchStatus struct {
	Status string               `json:"status"`
	Error  string               `json:"error"`
	Next   string               `json:"next"`
	Data   []firecrawlBatchPage `json:"data"`
}

type firecrawlBatchPage struct {
	Markdown string          `json:"markdown"`
	JSON     json.RawMessage `json:"json"`
	Metadata struct {
		SourceURL  string `json:"sourceURL"`
		URL        string `json:"url"`
		StatusCode int    `json:"statusCode"`
		Error      string `json:"error"`
	} `json:"metadata"`
}

// Extract runs one batch scrape job over urls with instruction as the
// extraction prompt and waits for it to finish. Pages that failed or yielded
// nothing are left out of the result; only a failure of the whole job is an
// error.
func (f *Firecrawl) Extract(ctx context.Context, urls []string, instruction string) ([]ExtractedPage, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	var started firecrawlBatchStarted
	err := doJSON(ctx, f.HTTPClient, clients.ProviderFirecrawl, http.MethodPost, f.BaseURL+"/v1/batch/scrape", f.headers(),
		firecrawlBatchRequest{
			URLs:              urls,
			Formats:           []string{"json"},
			JSONOptions:       firecrawlJSONOptions{Prompt: instruction},
			OnlyMainContent:   true,
			IgnoreInvalidURLs: true,
		}, &started)
	if err != nil {
		return nil, err
	}
	if !started.Success || started.ID == "" {
		return nil, &clients.ProviderError{Provider: clients.ProviderFirecrawl, Message: nonEmpty(started.Error, "batch scrape was not accepted")}
	}

	pages, err := f.waitForBatch(ctx, started.ID)
	if err != nil {
		return nil, err
	}

	var out []ExtractedPage
	for _, p := range pages {
		if p.Metadata.Error != "" || p.Metadata.StatusCode >= 400 {
			continue
		}
		content := renderExtracted(p.JSON)
		if content == "" {
			content = strings.TrimSpace(p.Markdown)
		}
		if content == "" {
			continue
		}
		out = append(out, ExtractedPage{URL: nonEmpty(p.Metadata.SourceURL, p.Metadata.URL), Content: content})
	}
	return out, nil
}

func (f *Firecrawl) waitForBatch(ctx context.Context, id string) ([]firecrawlBatchPage, error) {
	statusURL := f.BaseURL + "/v1/batch/scrape/" + id
	interval := f.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	for {
		var status firecrawlBatchStatus
		if err := doJSON(ctx, f.HTTPClient, clients.ProviderFirecrawl, http.MethodGet, statusURL, f.headers(), nil, &status); err != nil {
			return nil, err
		}

		switch status.Status {
		case batchStatusCompleted:
			return f.collectPages(ctx, status)
		case batchStatusFailed, batchStatusCancelled:
			return nil, &clients.ProviderError{Provider: clients.ProviderFirecrawl, Message: nonEmpty(status.Error, "batch scrape "+status.Status)}
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("waiting for batch scrape %s: %w", id, ctx.Err())
		case <-timer.C:
		}
	}
}

// collectPages follows the pagination links of a completed job. Links must
// point at the configured API host and at most maxBatchPages are followed.
func (f *Firecrawl) collectPages(ctx context.Context, status firecrawlBatchStatus) ([]firecrawlBatchPage, error) {
	pages := status.Data
	next := status.Next
	for followed := 0; next != ""; followed++ {
		if followed >= maxBatchPages {
			slog.Warn("Batch scrape pagination truncated", "pages", followed)
			break
		}
		if !f.sameHost(next) {
			return nil, &clients.ProviderError{Provider: clients.ProviderFirecrawl, Message: "pagination link points outside the API host: " + next}
		}
		var page firecrawlBatchStatus
		if err := doJSON(ctx, f.HTTPClient, clients.ProviderFirecrawl, http.MethodGet, next, f.headers(), nil, &page); err != nil {
			return nil, err
		}
		pages = append(pages, page.Data...)
		next = page.Next
	}
	return pages, nil
}

func (f *Firecrawl) sameHost(link string) bool {
	base, err := url.Parse(f.BaseURL)
	if err != nil {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return u.Scheme == base.Scheme && strings.EqualFold(u.Host, base.Host)
}

func (f *Firecrawl) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + f.APIKey}
}

// renderExtracted turns the model-extracted JSON for a page into plain text.
func renderExtracted(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}

	var sb strings.Builder
	renderValue(&sb, "", v)
	return strings.TrimSpace(sb.String())
}

func renderValue(sb *strings.Builder, key string, v interface{}) {
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return
		}
		if key != "" {
			fmt.Fprintf(sb, "%s: %s\n", key, val)
		} else {
			fmt.Fprintf(sb, "%s\n", val)
		}
	case []interface{}:
		if len(val) == 0 {
			return
		}
		if key != "" {
			fmt.Fprintf(sb, "%s:\n", key)
		}
		for _, item := range val {
			switch it := item.(type) {
			case string:
				if strings.TrimSpace(it) != "" {
					fmt.Fprintf(sb, "- %s\n", it)
				}
			default:
				b, _ := json.Marshal(it)
				fmt.Fprintf(sb, "- %s\n", b)
			}
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			renderValue(sb, k, val[k])
		}
	case nil:
	default:
		if key != "" {
			fmt.Fprintf(sb, "%s: %v\n", key, val)
		} else {
			fmt.Fprintf(sb, "%v\n", val)
		}
	}
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
