package extract

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 30 * time.Second
	maxBodyBytes        = 5 << 20
	userAgent           = "Mozilla/5.0 (compatible; thoughtchain/1.0)"
)

// HTTPFetcher downloads a page and extracts its readable text.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client gets a 30s timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &HTTPFetcher{client: client}
}

// Fetch retrieves url and converts it to an Article. Non-2xx responses are
// errors; the content type decides between HTML, PDF and plain text handling.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Article{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,text/plain;q=0.8,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Article{}, fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Article{}, fmt.Errorf("reading response: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/pdf" || (mediaType == "" && strings.EqualFold(path.Ext(req.URL.Path), ".pdf")):
		text, err := PDFText(body)
		if err != nil {
			return Article{}, err
		}
		return newArticle(fallbackTitle(path.Base(req.URL.Path)), text, text, true), nil
	case mediaType == "text/plain" || mediaType == "text/markdown":
		text := normalizeText(string(body))
		return newArticle(fallbackTitle(path.Base(req.URL.Path)), text, text, true), nil
	default:
		return ExtractArticle(string(body), url), nil
	}
}
