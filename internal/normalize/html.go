package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// looksLikeHTML is a cheap check for markup in a description field.
func looksLikeHTML(s string) bool {
	return strings.Contains(s, "<") && strings.Contains(s, ">")
}

// htmlToText strips markup from a job or company description. Block
// elements become line breaks. On parse failure the input is returned as is.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, li, div, h1, h2, h3, h4, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return cleanWhitespace(doc.Text())
}

// cleanWhitespace collapses runs of spaces within lines and drops blank lines.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
