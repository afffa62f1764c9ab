package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-agent/pkg/clients"
)

func newTestFirecrawl(url string) *Firecrawl {
	f := NewFirecrawl("fc-test", url)
	f.PollInterval = time.Millisecond
	return f
}

func TestFirecrawlSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "Bearer fc-test", r.Header.Get("Authorization"))

		var body firecrawlSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "solid state batteries", body.Query)
		assert.Equal(t, defaultSearchLimit, body.Limit)
		assert.Equal(t, []string{"markdown"}, body.ScrapeOptions.Formats)

		_, _ = w.Write([]byte(`{"success":true,"data":[
			{"url":"https://a.example","title":"A","description":"about a","markdown":"# A"},
			{"url":"","title":"no url"},
			{"url":"https://b.example","title":"B","description":"about b"}
		]}`))
	}))
	defer srv.Close()

	results, err := newTestFirecrawl(srv.URL).Search(context.Background(), "  solid state batteries ")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, SearchResult{URL: "https://a.example", Title: "A", Description: "about a", Content: "# A"}, results[0])
	assert.Equal(t, "https://b.example", results[1].URL)
}

func TestFirecrawlSearchEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer srv.Close()

	results, err := newTestFirecrawl(srv.URL).Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFirecrawlSearchErrors(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		_, err := NewFirecrawl("k", "http://unused").Search(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":"Unauthorized: Invalid token"}`))
		}))
		defer srv.Close()

		_, err := newTestFirecrawl(srv.URL).Search(context.Background(), "q")
		var pe *clients.ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
		assert.Equal(t, clients.ProviderFirecrawl, pe.Provider)

		kind, provider := clients.Classify(err)
		assert.Equal(t, clients.KindCredentials, kind)
		assert.Equal(t, clients.ProviderFirecrawl, provider)
	})

	t.Run("unsuccessful body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":"engine down"}`))
		}))
		defer srv.Close()

		_, err := newTestFirecrawl(srv.URL).Search(context.Background(), "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine down")
	})
}

func TestFirecrawlExtract(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/batch/scrape":
			var body firecrawlBatchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, body.URLs)
			assert.Equal(t, []string{"json"}, body.Formats)
			assert.Equal(t, "extract facts", body.JSONOptions.Prompt)
			_, _ = w.Write([]byte(`{"success":true,"id":"job-1"}`))

		case r.Method == http.MethodGet && r.URL.Path == "/v1/batch/scrape/job-1":
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"status":"scraping","data":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"completed","data":[
				{"json":{"facts":["fact one","fact two"],"summary":"short"},"metadata":{"sourceURL":"https://a.example","statusCode":200}},
				{"json":null,"markdown":"","metadata":{"sourceURL":"https://b.example","statusCode":200}},
				{"json":{"facts":["x"]},"metadata":{"sourceURL":"https://c.example","statusCode":404,"error":"not found"}}
			]}`))

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	pages, err := newTestFirecrawl(srv.URL).Extract(context.Background(),
		[]string{"https://a.example", "https://b.example", "https://c.example"}, "extract facts")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "https://a.example", pages[0].URL)
	assert.Equal(t, "facts:\n- fact one\n- fact two\nsummary: short", pages[0].Content)
	assert.EqualValues(t, 2, polls.Load())
}

func TestFirecrawlExtractFollowsPagination(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/batch/scrape":
			_, _ = w.Write([]byte(`{"success":true,"id":"job-2"}`))
		case "/v1/batch/scrape/job-2":
			if r.URL.Query().Get("skip") == "1" {
				_, _ = w.Write([]byte(`{"status":"completed","data":[{"markdown":"page two","metadata":{"sourceURL":"https://b.example"}}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"completed","next":"` + srvURL + `/v1/batch/scrape/job-2?skip=1","data":[{"json":"plain text","metadata":{"url":"https://a.example"}}]}`))
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	pages, err := newTestFirecrawl(srv.URL).Extract(context.Background(), []string{"https://a.example", "https://b.example"}, "p")
	require.NoError(t, err)
	assert.Equal(t, []ExtractedPage{
		{URL: "https://a.example", Content: "plain text"},
		{URL: "https://b.example", Content: "page two"},
	}, pages)
}

func TestFirecrawlExtractJobFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"success":true,"id":"job-3"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"failed","error":"all pages blocked"}`))
	}))
	defer srv.Close()

	_, err := newTestFirecrawl(srv.URL).Extract(context.Background(), []string{"https://a.example"}, "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all pages blocked")
}

func TestFirecrawlExtractRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"success":true,"id":"slow"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"scraping"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestFirecrawl(srv.URL).Extract(ctx, []string{"https://a.example"}, "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFirecrawlExtractNoURLs(t *testing.T) {
	pages, err := NewFirecrawl("k", "http://unused").Extract(context.Background(), nil, "p")
	require.NoError(t, err)
	assert.Nil(t, pages)
}

func TestFirecrawlExtractRejectsForeignPaginationHost(t *testing.T) {
	var leaked atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		leaked.Add(1)
		_, _ = w.Write([]byte(`{"status":"completed","data":[]}`))
	}))
	defer foreign.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"success":true,"id":"job-4"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"completed","next":"` + foreign.URL + `/v1/batch/scrape/job-4?skip=1","data":[]}`))
	}))
	defer srv.Close()

	_, err := newTestFirecrawl(srv.URL).Extract(context.Background(), []string{"https://a.example"}, "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the API host")
	assert.Zero(t, leaked.Load())
}

func TestFirecrawlExtractCapsPagination(t *testing.T) {
	var pagesServed atomic.Int32
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"success":true,"id":"loop"}`))
			return
		}
		pagesServed.Add(1)
		_, _ = w.Write([]byte(`{"status":"completed","next":"` + srvURL + `/v1/batch/scrape/loop","data":[{"markdown":"again","metadata":{"url":"https://a.example"}}]}`))
	}))
	defer srv.Close()
	srvURL = srv.URL

	pages, err := newTestFirecrawl(srv.URL).Extract(context.Background(), []string{"https://a.example"}, "p")
	require.NoError(t, err)
	assert.EqualValues(t, maxBatchPages+1, pagesServed.Load())
	assert.Len(t, pages, maxBatchPages+1)
}
