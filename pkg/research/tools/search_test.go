package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-agent/pkg/clients"
)

func TestBraveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/res/v1/web/search", r.URL.Path)
		assert.Equal(t, "go generics", r.URL.Query().Get("q"))
		assert.Equal(t, "brave-key", r.Header.Get("X-Subscription-Token"))
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"Generics","url":"https://go.dev/doc/tutorial/generics","description":"tutorial"}
		]}}`))
	}))
	defer srv.Close()

	b := NewBrave("brave-key")
	b.BaseURL = srv.URL

	results, err := b.Search(context.Background(), "go generics")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev/doc/tutorial/generics", results[0].URL)
	assert.Equal(t, "tutorial", results[0].Description)
}

func TestBraveSearchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := NewBrave("brave-key")
	b.BaseURL = srv.URL

	_, err := b.Search(context.Background(), "anything")
	kind, provider := clients.Classify(err)
	assert.Equal(t, clients.KindQuota, kind)
	assert.Equal(t, clients.ProviderBrave, provider)
}

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <title>Attention
      Is All You Need</title>
    <summary>  We propose the
      Transformer. </summary>
    <link href="http://arxiv.org/abs/2401.00001v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2401.00001v1" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00002v1</id>
    <title>PDF only</title>
    <summary>s</summary>
    <link title="pdf" href="http://arxiv.org/pdf/2401.00002v1" rel="related" type="application/pdf"/>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/query", r.URL.Path)
		assert.Equal(t, "all:transformers", r.URL.Query().Get("search_query"))
		_, _ = w.Write([]byte(arxivFeed))
	}))
	defer srv.Close()

	a := NewArxiv()
	a.BaseURL = srv.URL

	results, err := a.Search(context.Background(), "transformers")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, SearchResult{
		URL:         "http://arxiv.org/abs/2401.00001v1",
		Title:       "Attention Is All You Need",
		Description: "We propose the Transformer.",
	}, results[0])
	assert.Equal(t, "http://arxiv.org/pdf/2401.00002v1", results[1].URL)
}

func TestArxivSearchEmptyQuery(t *testing.T) {
	_, err := NewArxiv().Search(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}
