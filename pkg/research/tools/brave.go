package tools

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mikeboe/research-agent/pkg/clients"
)

const DefaultBraveURL = "https://api.search.brave.com"

// Brave searches the web through the Brave Search API.
type Brave struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Count      int
}

func NewBrave(apiKey string) *Brave {
	return &Brave{
		APIKey:     apiKey,
		BaseURL:    DefaultBraveURL,
		HTTPClient: &http.Client{},
		Count:      defaultSearchLimit,
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (b *Brave) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	// https://api.search.brave.com/app/documentation/web-search
	params := url.Values{}
	params.Set("q", query)
	if b.Count > 0 {
		params.Set("count", strconv.Itoa(b.Count))
	}
	endpoint := strings.TrimRight(b.BaseURL, "/") + "/res/v1/web/search?" + params.Encode()

	var raw braveResponse
	err := doJSON(ctx, b.HTTPClient, clients.ProviderBrave, http.MethodGet, endpoint,
		map[string]string{"X-Subscription-Token": b.APIKey}, nil, &raw)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(raw.Web.Results))
	for _, r := range raw.Web.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, SearchResult{URL: r.URL, Title: r.Title, Description: r.Description})
	}
	return results, nil
}
