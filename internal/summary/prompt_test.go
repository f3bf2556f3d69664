package summary

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/thoughtchain/internal/chain"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{"no chunking", "abcdef", 0, 0, []string{"abcdef"}},
		{"fits", "abc", 5, 1, []string{"abc"}},
		{"overlap", "abcdefgh", 4, 1, []string{"abcd", "defg", "gh"}},
		{"bad overlap ignored", "abcdefgh", 4, 4, []string{"abcd", "efgh"}},
		{"runes", "äöüßäöü", 3, 0, []string{"äöü", "ßäö", "ü"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, SplitText(tt.text, tt.size, tt.overlap)); diff != "" {
				t.Errorf("SplitText mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarkers(t *testing.T) {
	tests := []struct {
		in      string
		failure bool
		usable  bool
	}{
		{"", false, false},
		{"   ", false, false},
		{"A real summary.", false, true},
		{notConfiguredText("summary"), true, false},
		{MarkerFailed + " boom", true, false},
		{"  " + degradedText("T", 10), true, false},
		{MarkerReportFailed + " boom", true, false},
		{"Mentions " + MarkerFailed + " in passing", false, true},
	}
	for _, tt := range tests {
		if got := IsFailure(tt.in); got != tt.failure {
			t.Errorf("IsFailure(%q) = %v, want %v", tt.in, got, tt.failure)
		}
		if got := IsUsable(tt.in); got != tt.usable {
			t.Errorf("IsUsable(%q) = %v, want %v", tt.in, got, tt.usable)
		}
	}
}

func TestDegradedTextIsDeterministic(t *testing.T) {
	a := degradedText("Title", 1234)
	if a != degradedText("Title", 1234) {
		t.Fatal("degraded text differs between calls")
	}
	if !strings.Contains(a, "Title") || !strings.Contains(a, "1234") {
		t.Errorf("degraded text = %q", a)
	}
	if !strings.Contains(degradedText("", 1), "Untitled page") {
		t.Error("empty title should get a placeholder")
	}
}

func TestBuildReportPrompt(t *testing.T) {
	nodes := []chain.Node{
		{Title: "First", URL: "https://a", Notes: "why A", AISummary: "A summary"},
		{Title: "", URL: "https://b", AISummary: MarkerFailed + " boom"},
	}
	got := BuildReportPrompt("demo", nodes, "", "")

	for _, want := range []string{`"demo"`, "## 1. First", "User notes: why A", "Summary: A summary", "URL: https://a", "## 2. (untitled)", "in English"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(got, "boom") {
		t.Error("failure markers must not be fed back to the model")
	}
	if strings.Contains(got, "Additional guidance") {
		t.Error("empty guidance should be omitted")
	}
}
