package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxSnippetLen caps stored evidence text in runes.
const MaxSnippetLen = 4000

// PlainText strips markup from a crawled signal document and collapses
// whitespace. Input that is not HTML passes through normalized.
func PlainText(raw string) string {
	if !strings.Contains(raw, "<") {
		return clip(strings.Join(strings.Fields(raw), " "))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return clip(strings.Join(strings.Fields(raw), " "))
	}
	doc.Find("script, style, nav, header, footer, noscript, iframe").Remove()

	var parts []string
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return clip(strings.Join(strings.Fields(strings.Join(parts, " ")), " "))
}

// Headline returns the first heading or title of an HTML signal, if any.
func Headline(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	for _, sel := range []string{"h1", "h2", "title"} {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return strings.Join(strings.Fields(text), " ")
		}
	}
	return ""
}

func clip(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxSnippetLen {
		return s
	}
	return string(runes[:MaxSnippetLen])
}
