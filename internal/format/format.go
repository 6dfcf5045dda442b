// Package format turns free-form draft text into the exact HTML or plain-text
// payload that is both previewed and transmitted.
package format

import (
	"html"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const (
	paragraphBreak = "\n\n"
	lineBreak      = "\n"
)

var (
	htmlStart    = regexp.MustCompile(`(?i)^<(!doctype|html|head|body|div|p|br|table|span|meta|style|blockquote|section|article|h[1-6]|ul|ol)[\s/>]`)
	manyNewlines = regexp.MustCompile(`\n{3,}`)
)

// ToPlainText normalizes text into the canonical plain-text form: unix line
// endings, no trailing spaces, paragraphs separated by exactly one blank
// line. Markup is kept as typed, a plain draft is never parsed as HTML.
//
// Applying ToPlainText to its own output returns the output unchanged.
func ToPlainText(text string) string {
	return clean(text)
}

// FromHTML reads an HTML body back into canonical plain text.
func FromHTML(body string) string {
	return clean(StripHTML(body))
}

// ToHTML renders text as paragraphs: a blank line starts a new <p>, a single
// newline becomes <br>. Input that already starts with a structural tag is
// read back first, so ToHTML(ToHTML(x)) == ToHTML(x).
func ToHTML(text string) string {
	plain := ToPlainText(text)
	if LooksLikeHTML(plain) {
		plain = FromHTML(plain)
	}
	if plain == "" {
		return ""
	}

	paragraphs := strings.Split(plain, paragraphBreak)
	rendered := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		lines := strings.Split(p, lineBreak)
		for i, line := range lines {
			lines[i] = html.EscapeString(line)
		}
		rendered = append(rendered, "<p>"+strings.Join(lines, "<br>")+"</p>")
	}

	return strings.Join(rendered, "\n")
}

// Render returns the transmitted payload for a draft body. Preview and send
// both go through here.
func Render(text string, isHTML bool) string {
	if isHTML {
		return ToHTML(text)
	}
	return ToPlainText(text)
}

// VisibleText returns what a reader would see of a stored body.
func VisibleText(body string, isHTML bool) string {
	if isHTML || LooksLikeHTML(body) {
		return FromHTML(body)
	}
	return clean(body)
}

// LooksLikeHTML reports whether s starts with a structural HTML tag.
func LooksLikeHTML(s string) bool {
	return htmlStart.MatchString(strings.TrimSpace(s))
}

// Readable converts an HTML body into markdown-flavoured text for terminal
// display. It is never used on the send path.
func Readable(body string) string {
	if !LooksLikeHTML(body) {
		return clean(body)
	}

	md, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return FromHTML(body)
	}

	return clean(md)
}

func clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, lineBreak)
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, lineBreak)
	text = manyNewlines.ReplaceAllString(text, paragraphBreak)
	return strings.Trim(text, "\n \t")
}
