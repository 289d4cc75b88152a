package normalizer

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	blankLineRun  = regexp.MustCompile(`\n\s*\n`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)

	bracketReplacer = strings.NewReplacer("<", " ", ">", " ")
)

// HTMLToText extracts visible text from an HTML fragment. Input with no angle
// brackets is treated as plain text and only trimmed. The result never holds
// '<' or '>', so applying HTMLToText twice gives the same output.
func HTMLToText(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<>") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return stripTags(s)
	}
	doc.Find("script, style, meta, link").Remove()

	var parts []string
	for _, n := range doc.Nodes {
		collectText(n, &parts)
	}

	text := strings.Join(parts, " ")
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = blankLineRun.ReplaceAllString(text, "\n\n")
	return stripBrackets(text)
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		t := n.Data
		// noscript content is parsed as raw text and still holds markup
		if n.Parent != nil && n.Parent.Type == html.ElementNode && n.Parent.Data == "noscript" {
			t = tagPattern.ReplaceAllString(t, " ")
		}
		if t = strings.TrimSpace(t); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// stripTags removes markup with a pattern pass over unparsed input
func stripTags(s string) string {
	return stripBrackets(tagPattern.ReplaceAllString(s, ""))
}

// stripBrackets drops '<' and '>' characters while keeping the text between them
func stripBrackets(s string) string {
	s = bracketReplacer.Replace(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
