// Package extract turns web pages and documents into plain text for
// summarization. Extraction never fails on malformed markup; it degrades to a
// whole-body text dump instead.
package extract

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	excerptLength = 200
	unknownTitle  = "Unknown title"
)

var (
	scriptPattern   = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	stylePattern    = regexp.MustCompile(`(?is)<style\b.*?</style>`)
	commentPattern  = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagPattern      = regexp.MustCompile(`<[^>]+>`)
	titlePattern    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	spacePattern    = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlinesPattern = regexp.MustCompile(`\s*\n\s*`)
)

// Article is the readable content of a page.
type Article struct {
	Title       string `json:"title"`
	TextContent string `json:"textContent"`
	Content     string `json:"content"`
	Excerpt     string `json:"excerpt"`
	Length      int    `json:"length"`
	// IsBasicExtraction is set when no content container was recognised and
	// the whole page body was used.
	IsBasicExtraction bool `json:"isBasicExtraction"`
}

// noiseTags are dropped together with their subtree.
var noiseTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "nav": true,
	"footer": true, "iframe": true, "svg": true, "template": true,
}

// noiseRoles are ARIA landmarks that never hold the main text.
var noiseRoles = map[string]bool{
	"banner": true, "navigation": true, "complementary": true, "contentinfo": true,
}

// containerMatchers are tried in order; the first one that matches anywhere in
// the document selects the content container.
var containerMatchers = []func(*html.Node) bool{
	isTag("main"),
	hasAttr("role", "main"),
	isTag("article"),
	hasClass("article"),
	hasClass("post"),
	hasClass("content"),
	hasAttr("id", "content"),
	hasClass("main-content"),
}

// ExtractArticle extracts the main readable text from an HTML document.
// baseURL is only used to resolve a missing title.
func ExtractArticle(doc string, baseURL string) Article {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return basicExtract(doc, baseURL)
	}

	title := documentTitle(root)
	if title == "" {
		title = fallbackTitle(baseURL)
	}

	prune(root)

	container := findContainer(root)
	basic := container == nil
	if basic {
		container = findFirst(root, isTag("body"))
		if container == nil {
			container = root
		}
	}

	text := normalizeText(textOf(container))
	var buf bytes.Buffer
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&buf, c)
	}

	return newArticle(title, text, buf.String(), basic)
}

// basicExtract strips markup with regular expressions when the document cannot
// be parsed as HTML at all.
func basicExtract(doc, baseURL string) Article {
	title := unknownTitle
	if m := titlePattern.FindStringSubmatch(doc); m != nil {
		if t := strings.TrimSpace(html.UnescapeString(m[1])); t != "" {
			title = t
		}
	} else if baseURL != "" {
		title = fallbackTitle(baseURL)
	}

	s := scriptPattern.ReplaceAllString(doc, " ")
	s = stylePattern.ReplaceAllString(s, " ")
	s = commentPattern.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, " ")
	text := normalizeText(html.UnescapeString(s))

	return newArticle(title, text, text, true)
}

func newArticle(title, text, content string, basic bool) Article {
	return Article{
		Title:             title,
		TextContent:       text,
		Content:           content,
		Excerpt:           Excerpt(text),
		Length:            utf8.RuneCountInString(text),
		IsBasicExtraction: basic,
	}
}

// Excerpt returns the first 200 characters of text followed by "...", or the
// text itself when it is shorter.
func Excerpt(text string) string {
	if utf8.RuneCountInString(text) <= excerptLength {
		return text
	}
	return string([]rune(text)[:excerptLength]) + "..."
}

// NormalizeWhitespace collapses all runs of whitespace into single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeText keeps paragraph breaks but collapses other whitespace.
func normalizeText(s string) string {
	s = spacePattern.ReplaceAllString(s, " ")
	s = newlinesPattern.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

func fallbackTitle(baseURL string) string {
	if baseURL == "" {
		return unknownTitle
	}
	return baseURL
}

func documentTitle(root *html.Node) string {
	if t := findFirst(root, isTag("title")); t != nil {
		if s := NormalizeWhitespace(textOf(t)); s != "" {
			return s
		}
	}
	if h := findFirst(root, isTag("h1")); h != nil {
		return NormalizeWhitespace(textOf(h))
	}
	return ""
}

// prune removes noise subtrees in place.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode || (c.Type == html.ElementNode && isNoise(c)) {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}

func isNoise(n *html.Node) bool {
	return noiseTags[n.Data] || noiseRoles[attr(n, "role")]
}

func findContainer(root *html.Node) *html.Node {
	for _, match := range containerMatchers {
		if n := findFirst(root, match); n != nil && strings.TrimSpace(textOf(n)) != "" {
			return n
		}
	}
	return nil
}

// findFirst returns the first element in document order matching fn.
func findFirst(n *html.Node, fn func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && fn(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, fn); found != nil {
			return found
		}
	}
	return nil
}

// blockTags end a line of text.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "blockquote": true, "article": true, "main": true, "header": true,
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			if noiseTags[n.Data] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			sb.WriteString("\n")
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

func hasAttr(key, val string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attr(n, key) == val }
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}
