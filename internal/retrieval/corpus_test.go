package retrieval_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/retrieval"
)

func TestCache_SaveLoad_RoundTrip(t *testing.T) {
	cache := retrieval.NewCache(filepath.Join(t.TempDir(), "corpus.json"))
	assert.False(t, cache.Exists())

	docs := sampleDocs()
	require.NoError(t, cache.Save(docs))
	assert.True(t, cache.Exists())

	loaded, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, docs, loaded)
}

func TestCache_Save_CreatesParentDir(t *testing.T) {
	cache := retrieval.NewCache(filepath.Join(t.TempDir(), "nested", "deeper", "corpus.json"))

	require.NoError(t, cache.Save(sampleDocs()))
	assert.True(t, cache.Exists())
}

func TestCache_Save_Empty(t *testing.T) {
	cache := retrieval.NewCache(filepath.Join(t.TempDir(), "corpus.json"))

	err := cache.Save(nil)
	assert.ErrorIs(t, err, retrieval.ErrEmptyDocuments)
	assert.False(t, cache.Exists())
}

func TestCache_Load_Missing(t *testing.T) {
	cache := retrieval.NewCache(filepath.Join(t.TempDir(), "absent.json"))

	_, err := cache.Load()
	assert.Error(t, err)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
  <title>Router Pattern Guide</title>
  <style>body { color: red; }</style>
  <script>console.log("tracking");</script>
</head>
<body>
  <nav><a href="/">Home</a><a href="/docs">Docs</a></nav>
  <h1>Routing requests</h1>
  <p>A classifier node inspects the intent and picks a branch.</p>
  <footer>Copyright notice</footer>
</body>
</html>`

func TestExtractHTMLText(t *testing.T) {
	title, text, err := retrieval.ExtractHTMLText(strings.NewReader(testPage))
	require.NoError(t, err)

	assert.Equal(t, "Router Pattern Guide", title)
	assert.Contains(t, text, "Routing requests")
	assert.Contains(t, text, "classifier node inspects the intent")

	assert.NotContains(t, text, "color: red", "style content must be dropped")
	assert.NotContains(t, text, "tracking", "script content must be dropped")
	assert.NotContains(t, text, "Home", "navigation must be dropped")
	assert.NotContains(t, text, "Copyright", "footer must be dropped")
}

func TestFetcher_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/router", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(testPage))
	})
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>State</title></head><body><p>Checkpoints persist state.</p></body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := retrieval.NewFetcher(retrieval.FetcherConfig{}, zap.NewNop())

	urls := []string{
		server.URL + "/router",
		server.URL + "/missing",
		server.URL + "/state",
	}
	docs, err := fetcher.Fetch(context.Background(), urls)
	require.NoError(t, err, "one failed page must not fail the fetch")
	require.Len(t, docs, 2)

	assert.Equal(t, server.URL+"/router", docs[0].Source)
	assert.Equal(t, "Router Pattern Guide", docs[0].Heading)
	assert.Contains(t, docs[0].Content, "classifier node")

	assert.Equal(t, server.URL+"/state", docs[1].Source)
	assert.Equal(t, "State", docs[1].Heading)
}

func TestFetcher_Fetch_AllFail(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	fetcher := retrieval.NewFetcher(retrieval.FetcherConfig{}, zap.NewNop())

	_, err := fetcher.Fetch(context.Background(), []string{server.URL + "/a", server.URL + "/b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all corpus sources failed")
}

func TestFetcher_Fetch_NoURLs(t *testing.T) {
	fetcher := retrieval.NewFetcher(retrieval.FetcherConfig{}, zap.NewNop())

	_, err := fetcher.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, retrieval.ErrEmptyDocuments)
}
