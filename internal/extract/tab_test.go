package extract

import (
	"context"
	"testing"

	"github.com/go-rod/rod"
)

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestRodTabs_ResetClosesConnection(t *testing.T) {
	conn := &countingCloser{}
	r := NewRodTabs("ws://127.0.0.1:9222/devtools/browser/x")
	r.browser, r.conn = rod.New(), conn

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if conn.closed != 1 {
		t.Errorf("connection closed %d times, want 1", conn.closed)
	}
	if r.browser != nil || r.conn != nil {
		t.Error("session still referenced after Close")
	}

	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if conn.closed != 1 {
		t.Errorf("second Close closed the old connection again")
	}
}

func TestRodTabs_UnreachableBrowser(t *testing.T) {
	r := NewRodTabs("ws://127.0.0.1:1/devtools/browser/x")
	if _, err := r.TabHTML(context.Background(), "https://go.dev"); err == nil {
		t.Fatal("expected an error for an unreachable browser")
	}
	if r.browser != nil || r.conn != nil {
		t.Error("failed connect left a session behind")
	}
}
