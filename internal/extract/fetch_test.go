package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPFetcher_HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Doc</title></head><body><article>Body text</article></body></html>`))
	}))
	defer srv.Close()

	art, err := NewHTTPFetcher(srv.Client()).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if art.Title != "Doc" || art.TextContent != "Body text" {
		t.Errorf("article = %+v", art)
	}
}

func TestHTTPFetcher_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("line one\n\n\nline   two"))
	}))
	defer srv.Close()

	art, err := NewHTTPFetcher(srv.Client()).Fetch(context.Background(), srv.URL+"/notes.txt")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if art.TextContent != "line one\nline two" {
		t.Errorf("TextContent = %q", art.TextContent)
	}
	if art.Title != "notes.txt" {
		t.Errorf("Title = %q", art.Title)
	}
}

func TestHTTPFetcher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.Client()).Fetch(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("err = %v, want HTTP 404", err)
	}
}

func TestHTTPFetcher_BrokenPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("not a pdf"))
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher(srv.Client()).Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected error for an unreadable pdf")
	}
}

// --- Acquirer ---

type fakeTabs struct {
	html map[string]string
	err  error
}

func (f *fakeTabs) TabHTML(_ context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if doc, ok := f.html[url]; ok {
		return doc, nil
	}
	return "", ErrNoTab
}

type fakeFetcher struct {
	art   Article
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (Article, error) {
	f.calls++
	return f.art, f.err
}

func TestAcquirer_PrefersOpenTab(t *testing.T) {
	tabs := &fakeTabs{html: map[string]string{"https://a.test": "<article>live dom</article>"}}
	fetcher := &fakeFetcher{art: Article{TextContent: "fetched"}}

	art, err := NewAcquirer(tabs, fetcher).Acquire(context.Background(), "https://a.test")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if art.TextContent != "live dom" {
		t.Errorf("TextContent = %q, want live dom", art.TextContent)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times", fetcher.calls)
	}
}

func TestAcquirer_FallsBackToFetch(t *testing.T) {
	tests := []struct {
		name string
		tabs TabSource
	}{
		{"no tab source", nil},
		{"no matching tab", &fakeTabs{}},
		{"browser unreachable", &fakeTabs{err: errors.New("connection refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{art: Article{TextContent: "fetched"}}
			art, err := NewAcquirer(tt.tabs, fetcher).Acquire(context.Background(), "https://a.test")
			if err != nil {
				t.Fatalf("Acquire: %v", err)
			}
			if art.TextContent != "fetched" {
				t.Errorf("TextContent = %q", art.TextContent)
			}
		})
	}
}

func TestAcquirer_Errors(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("dns failure")}
	a := NewAcquirer(nil, fetcher)

	if _, err := a.Acquire(context.Background(), ""); err == nil {
		t.Error("expected error for empty url")
	}
	if _, err := a.Acquire(context.Background(), "https://a.test"); err == nil || !strings.Contains(err.Error(), "dns failure") {
		t.Errorf("err = %v", err)
	}
}

func TestSameURL(t *testing.T) {
	if !sameURL("https://a.test/x/#top", "https://a.test/x") {
		t.Error("fragment and trailing slash should be ignored")
	}
	if sameURL("https://a.test/x?page=2", "https://a.test/x") {
		t.Error("query string should matter")
	}
}
