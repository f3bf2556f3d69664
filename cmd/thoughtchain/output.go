package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kalambet/thoughtchain/internal/chain"
	"github.com/kalambet/thoughtchain/internal/summary"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// printChainLine writes a one-line chain overview to w.
func printChainLine(w io.Writer, c chain.Chain, active bool) {
	marker := " "
	if active {
		marker = colorize(colorGreen, "*")
	}
	fmt.Fprintf(w, "%s %s  %-32s  %2d nodes  %s\n",
		marker,
		colorize(colorCyan, shortID(c.ID)),
		truncate(c.Name, 32),
		len(c.Nodes),
		formatMillis(c.UpdatedAt),
	)
}

// printChain writes a chain with its nodes in order.
func printChain(w io.Writer, c chain.Chain) {
	fmt.Fprintf(w, "%s  %s\n", colorize(colorBold, c.Name), colorize(colorCyan, c.ID))
	fmt.Fprintf(w, "created %s, updated %s\n\n", formatMillis(c.CreatedAt), formatMillis(c.UpdatedAt))
	if len(c.Nodes) == 0 {
		fmt.Fprintln(w, "  (no nodes)")
		return
	}
	for i, n := range c.Nodes {
		fmt.Fprintf(w, "%2d. %s  %s\n", i+1, colorize(colorBold, truncate(n.Title, 70)), colorize(colorCyan, shortID(n.ID)))
		fmt.Fprintf(w, "    %s\n", n.URL)
		if n.Notes != "" {
			fmt.Fprintf(w, "    notes: %s\n", truncate(n.Notes, 200))
		}
		fmt.Fprintf(w, "    summary (%s)", summaryLabel(n.AISummary))
		if n.AISummary != "" {
			fmt.Fprintf(w, ": %s", truncate(n.AISummary, 300))
		}
		fmt.Fprintln(w)
	}
}

// summaryLabel describes the state of a stored node summary.
func summaryLabel(s string) string {
	switch {
	case s == "":
		return "pending"
	case strings.HasPrefix(s, summary.MarkerDegraded):
		return "fallback"
	case summary.IsFailure(s):
		return "failed"
	default:
		return "ready"
	}
}
