package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Cache persists fetched corpus documents as a JSON file so index rebuilds
// do not refetch sources. The file is the unit the corpus watcher observes.
type Cache struct {
	path string
}

// NewCache creates a cache backed by the given file path.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Path returns the cache file path.
func (c *Cache) Path() string {
	return c.path
}

// Exists reports whether the cache file is present.
func (c *Cache) Exists() bool {
	info, err := os.Stat(c.path)
	return err == nil && !info.IsDir()
}

// Load reads documents from the cache file.
func (c *Cache) Load() ([]Document, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus cache: %w", err)
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing corpus cache %s: %w", c.path, err)
	}
	return docs, nil
}

// Save writes documents to the cache file atomically.
func (c *Cache) Save(docs []Document) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding corpus cache: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing corpus cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing corpus cache: %w", err)
	}
	return nil
}

// FetcherConfig holds configuration for the corpus fetcher.
type FetcherConfig struct {
	// Timeout bounds each page fetch. Default: 30s.
	Timeout time.Duration

	// UserAgent identifies the fetcher to source servers.
	UserAgent string
}

// ApplyDefaults sets default values for unset fields.
func (c *FetcherConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "foundryd-corpus-fetcher/1.0"
	}
}

// Fetcher downloads documentation pages and extracts their visible text.
// Pages are fetched sequentially to stay polite to doc hosts; a corpus is
// small and fetches are cached anyway.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewFetcher creates a fetcher with the given configuration.
func NewFetcher(config FetcherConfig, logger *zap.Logger) *Fetcher {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:    &http.Client{Timeout: config.Timeout},
		userAgent: config.UserAgent,
		logger:    logger,
	}
}

// Fetch downloads each URL and returns one document per page that yielded
// text. Individual page failures are logged and skipped; Fetch fails only
// when every source failed.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) ([]Document, error) {
	if len(urls) == 0 {
		return nil, ErrEmptyDocuments
	}

	var docs []Document
	var lastErr error
	for _, url := range urls {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		doc, err := f.fetchOne(ctx, url)
		if err != nil {
			lastErr = err
			f.logger.Warn("skipping corpus source", zap.String("url", url), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("all corpus sources failed: %w", lastErr)
	}
	return docs, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("fetching: status %d", resp.StatusCode)
	}

	title, text, err := ExtractHTMLText(resp.Body)
	if err != nil {
		return Document{}, fmt.Errorf("extracting text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Document{}, fmt.Errorf("page yielded no text")
	}

	return Document{Content: text, Source: url, Heading: title}, nil
}

// ExtractHTMLText parses HTML and returns the page title and its visible
// text with whitespace collapsed. Script, style, and navigation subtrees
// are dropped.
func ExtractHTMLText(r io.Reader) (title, text string, err error) {
	root, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "nav", "footer":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		case html.TextNode:
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteString("\n")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	return title, sb.String(), nil
}
