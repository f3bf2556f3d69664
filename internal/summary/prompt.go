package summary

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/thoughtchain/internal/chain"
)

const defaultLanguage = "English"

func languageOrDefault(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return defaultLanguage
	}
	return lang
}

// nodeSystemPrompt instructs the model for per-page summaries.
func nodeSystemPrompt(lang string, maxChars int) string {
	var sb strings.Builder
	sb.WriteString("You summarize web pages a user has read while researching a topic. ")
	sb.WriteString("Capture the main argument and the facts worth remembering. ")
	fmt.Fprintf(&sb, "Answer in %s.", languageOrDefault(lang))
	if maxChars > 0 {
		fmt.Fprintf(&sb, " Keep the summary under %d characters.", maxChars)
	}
	return sb.String()
}

// withUserNotes prefixes the user's notes as soft context for the model.
func withUserNotes(text, notes string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return text
	}
	return "User notes (important background/focus):\n" + notes + "\n\nContent:\n" + text
}

const reportSystemPrompt = "You are a research assistant who turns a user's browsing trail into a structured report."

// BuildReportPrompt lays out the chain's nodes in order so the model can
// follow the user's line of thought, then appends guidance and the fixed
// report instruction.
func BuildReportPrompt(chainName string, nodes []chain.Node, guidance, lang string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "The following pages were visited in this order as part of the thought chain %q.\n\n", chainName)
	for i, n := range nodes {
		fmt.Fprintf(&sb, "## %d. %s\n", i+1, orPlaceholder(n.Title, "(untitled)"))
		if notes := strings.TrimSpace(n.Notes); notes != "" {
			fmt.Fprintf(&sb, "User notes: %s\n", notes)
		}
		if IsUsable(n.AISummary) {
			fmt.Fprintf(&sb, "Summary: %s\n", strings.TrimSpace(n.AISummary))
		}
		fmt.Fprintf(&sb, "URL: %s\n\n", n.URL)
	}

	if g := strings.TrimSpace(guidance); g != "" {
		fmt.Fprintf(&sb, "Additional guidance from the user:\n%s\n\n", g)
	}

	fmt.Fprintf(&sb, "Write a cohesive report in %s that reconstructs the reasoning behind this chain: ", languageOrDefault(lang))
	sb.WriteString("the questions being explored, the key findings from each source and how they connect, and open questions. ")
	sb.WriteString("Format it in Markdown with headings, bullet lists and emphasis where helpful.")
	return sb.String()
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

// truncateRunes cuts s to at most n runes. n <= 0 leaves s unchanged.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// SplitText cuts text into chunks of at most size runes, each starting
// overlap runes before the end of the previous one. size <= 0 returns the
// text as a single chunk.
func SplitText(text string, size, overlap int) []string {
	runes := []rune(text)
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
