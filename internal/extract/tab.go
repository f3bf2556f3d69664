package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
)

// ErrNoTab is returned when no open browser tab shows the requested URL.
var ErrNoTab = errors.New("no open tab for url")

// TabSource reads the live DOM of an already open browser tab.
type TabSource interface {
	// TabHTML returns the serialized document of the tab showing url, or
	// ErrNoTab.
	TabHTML(ctx context.Context, url string) (string, error)
}

// RodTabs talks to a running Chromium through its DevTools endpoint.
type RodTabs struct {
	controlURL string

	mu      sync.Mutex
	browser *rod.Browser
	// conn is the DevTools websocket behind browser. Closing it ends the
	// session while the browser and its tabs stay open.
	conn io.Closer
}

// NewRodTabs prepares a tab source for the browser behind controlURL
// (e.g. ws://127.0.0.1:9222/devtools/browser/<id>). The connection is opened
// lazily on first use.
func NewRodTabs(controlURL string) *RodTabs {
	return &RodTabs{controlURL: controlURL}
}

func (r *RodTabs) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}
	ws := &cdp.WebSocket{}
	if err := ws.Connect(context.Background(), r.controlURL, nil); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	b := rod.New().Client(cdp.New().Start(ws))
	if err := b.Connect(); err != nil {
		ws.Close()
		return nil, fmt.Errorf("attach to browser: %w", err)
	}
	r.browser, r.conn = b, ws
	return b, nil
}

func (r *RodTabs) TabHTML(ctx context.Context, url string) (string, error) {
	b, err := r.connect()
	if err != nil {
		return "", err
	}

	pages, err := b.Context(ctx).Pages()
	if err != nil {
		r.reset()
		return "", fmt.Errorf("listing tabs: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil || !sameURL(info.URL, url) {
			continue
		}
		doc, err := p.Context(ctx).HTML()
		if err != nil {
			return "", fmt.Errorf("reading tab html: %w", err)
		}
		return doc, nil
	}
	return "", ErrNoTab
}

// Close drops the browser connection without closing the browser.
func (r *RodTabs) Close() error {
	return r.reset()
}

func (r *RodTabs) reset() error {
	r.mu.Lock()
	conn := r.conn
	r.browser, r.conn = nil, nil
	r.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// sameURL compares URLs ignoring the fragment and a trailing slash.
func sameURL(a, b string) bool {
	norm := func(s string) string {
		if i := strings.IndexByte(s, '#'); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSuffix(s, "/")
	}
	return norm(a) == norm(b)
}
