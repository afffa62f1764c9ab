package tools

import "errors"

// ErrEmptyQuery is returned when a search is attempted without a query.
var ErrEmptyQuery = errors.New("search query must not be empty")

// SearchResult is one candidate page returned by a search provider.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// Content holds scraped page text when the provider returns it inline.
	Content string `json:"-"`
}

// ExtractedPage is the structured text pulled from a single URL.
type ExtractedPage struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}
