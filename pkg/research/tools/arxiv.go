package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mikeboe/research-agent/pkg/clients"
)

const (
	DefaultArxivURL = "https://export.arxiv.org"
	providerArxiv   = "arXiv"
)

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	ID      string      `xml:"id"`
	Title   string      `xml:"title"`
	Summary string      `xml:"summary"`
	Link    []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
	Rel  string `xml:"rel,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// Arxiv searches arXiv papers. It needs no credentials, which makes it
// useful for academic topics and local runs.
type Arxiv struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxResults int
}

func NewArxiv() *Arxiv {
	return &Arxiv{BaseURL: DefaultArxivURL, HTTPClient: &http.Client{}, MaxResults: 5}
}

func (a *Arxiv) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	maxResults := a.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")
	apiURL := strings.TrimRight(a.BaseURL, "/") + "/api/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &clients.ProviderError{Provider: providerArxiv, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &clients.ProviderError{Provider: providerArxiv, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &clients.ProviderError{Provider: providerArxiv, StatusCode: resp.StatusCode, Message: truncate(string(body), maxErrorBody)}
	}

	var feed ArxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, &clients.ProviderError{Provider: providerArxiv, Err: fmt.Errorf("failed to parse feed: %w", err)}
	}

	results := make([]SearchResult, 0, len(feed.Entry))
	for _, e := range feed.Entry {
		link := entryLink(e)
		if link == "" {
			continue
		}
		results = append(results, SearchResult{
			URL:         link,
			Title:       collapseSpace(e.Title),
			Description: collapseSpace(e.Summary),
		})
	}
	return results, nil
}

// entryLink prefers the abstract page over the PDF, then falls back to the id.
func entryLink(e ArxivEntry) string {
	var pdf string
	for _, l := range e.Link {
		if l.Rel == "alternate" && l.Href != "" {
			return l.Href
		}
		if l.Type == "application/pdf" {
			pdf = l.Href
		}
	}
	if pdf != "" {
		return pdf
	}
	return strings.TrimSpace(e.ID)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
