package markdown

import (
	"bytes"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var engine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
		htmlrenderer.WithUnsafe(),
	),
)

var (
	ugcPolicy       = newUGCPolicy()
	stripTagsPolicy = bluemonday.StripTagsPolicy()
)

func newUGCPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "span")
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	return p
}

// ToHTML renders member-written markdown to sanitized HTML. Raw HTML in the
// source passes through goldmark and is then filtered by the UGC policy.
func ToHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := engine.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(ugcPolicy.Sanitize(buf.String())), nil
}

// StripHTML removes every tag, leaving unescaped text.
func StripHTML(s string) string {
	return html.UnescapeString(stripTagsPolicy.Sanitize(s))
}

// Excerpt returns at most maxRunes runes of the plain text of html, with
// whitespace collapsed. Cut text ends with an ellipsis.
func Excerpt(s string, maxRunes int) string {
	text := strings.Join(strings.Fields(StripHTML(s)), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:maxRunes])) + "…"
}
