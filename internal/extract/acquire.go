package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Fetcher retrieves a page over the network.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Article, error)
}

// Acquirer obtains page text, preferring the live DOM of an open tab and
// falling back to a network fetch.
type Acquirer struct {
	tabs    TabSource
	fetcher Fetcher
	logger  *slog.Logger
}

// NewAcquirer creates an Acquirer. tabs may be nil.
func NewAcquirer(tabs TabSource, fetcher Fetcher) *Acquirer {
	return &Acquirer{tabs: tabs, fetcher: fetcher, logger: slog.Default()}
}

// Acquire returns the readable article for url.
func (a *Acquirer) Acquire(ctx context.Context, url string) (Article, error) {
	if url == "" {
		return Article{}, errors.New("missing url")
	}

	if a.tabs != nil {
		doc, err := a.tabs.TabHTML(ctx, url)
		switch {
		case err == nil:
			art := ExtractArticle(doc, url)
			if art.TextContent != "" {
				return art, nil
			}
		case errors.Is(err, ErrNoTab):
		default:
			a.logger.Debug("tab extraction failed, fetching instead", "url", url, "error", err)
		}
	}

	art, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return Article{}, fmt.Errorf("acquiring content: %w", err)
	}
	return art, nil
}
