// Package cleaner turns the raw transcript HTML captured by the scraper
// into the clean answer text handed to the judge.
package cleaner

import (
	"bytes"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// chromeSelectors match chat UI controls that render inside the answer
// container but are not part of the answer itself.
var chromeSelectors = []string{
	"button",
	"svg",
	`[class*="copy"]`,
	`[class*="feedback"]`,
	`[class*="toolbar"]`,
	`[aria-hidden="true"]`,
}

// ExtractAnswerHTML matches answer containers in the raw transcript HTML
// and returns the outer HTML of the LAST match (the most recent answer).
//
// The boolean is false when the selector matches nothing; the harness
// treats that as a hard failure rather than falling back to the full page,
// since grading the whole transcript would silently corrupt scores.
func ExtractAnswerHTML(rawHTML, selector string) (string, bool) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return "", false
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", false
	}

	matches := cascadia.QueryAll(doc, sel)
	if len(matches) == 0 {
		return "", false
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, matches[len(matches)-1]); err != nil {
		return "", false
	}
	return buf.String(), true
}

// StripChrome removes UI controls (copy buttons, feedback widgets, icons)
// from answer HTML. On parse failure the input is returned unchanged.
func StripChrome(answerHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(answerHTML))
	if err != nil {
		return answerHTML
	}

	for _, selector := range chromeSelectors {
		doc.Find(selector).Remove()
	}

	out, err := doc.Html()
	if err != nil {
		return answerHTML
	}
	return out
}

// NewMarkdownConverter creates a reusable, goroutine-safe Converter for
// answer HTML. The base plugin strips script/style/head noise; commonmark
// renders headings, lists, links and code blocks, which chat answers lean
// on heavily.
func NewMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
}

// AnswerMarkdown converts cleaned answer HTML to Markdown.
func AnswerMarkdown(conv *converter.Converter, answerHTML string) (string, error) {
	md, err := conv.ConvertString(answerHTML)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

// PlainText extracts the visible text of answer HTML, collapsing runs of
// whitespace. Used as a fallback when Markdown conversion fails.
func PlainText(answerHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(answerHTML))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// MessageCount counts transcript messages in the raw page HTML.
// Returns at least 1: by the time this runs an answer has been scraped.
func MessageCount(rawHTML, selector string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return 1
	}
	n := doc.Find(selector).Length()
	if n < 1 {
		return 1
	}
	return n
}
