package summary

import (
	"fmt"
	"strings"
)

// Failure markers prefix every summary string that is not a real AI summary.
const (
	MarkerNotConfigured = "[AI not configured]"
	MarkerFailed        = "[AI summary failed]"
	MarkerDegraded      = "[AI summary degraded]"
	MarkerReportFailed  = "[AI report failed]"
)

var failureMarkers = []string{MarkerNotConfigured, MarkerFailed, MarkerDegraded, MarkerReportFailed}

// IsFailure reports whether s is a placeholder written in place of a summary.
func IsFailure(s string) bool {
	s = strings.TrimSpace(s)
	for _, m := range failureMarkers {
		if strings.HasPrefix(s, m) {
			return true
		}
	}
	return false
}

// IsUsable reports whether s is a real, non-empty summary.
func IsUsable(s string) bool {
	return strings.TrimSpace(s) != "" && !IsFailure(s)
}

func notConfiguredText(what string) string {
	return fmt.Sprintf("%s No AI API key is set, so no %s was generated. Run `thoughtchain config set ai.api_key <key>` and regenerate.", MarkerNotConfigured, what)
}

func failedText(err error) string {
	return fmt.Sprintf("%s %v", MarkerFailed, err)
}

func reportFailedText(err error) string {
	return fmt.Sprintf("%s %v", MarkerReportFailed, err)
}

// degradedText is the local stand-in used when every AI attempt timed out.
// It depends only on its inputs.
func degradedText(title string, textLen int) string {
	if strings.TrimSpace(title) == "" {
		title = "Untitled page"
	}
	return fmt.Sprintf("%s %s. The page has about %d characters of text; the AI service did not answer in time. Regenerate to try again.",
		MarkerDegraded, title, textLen)
}
