package format

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripHTML returns the text content of an HTML fragment. Paragraph-like
// elements end with a blank line, <br> and other block elements with a
// newline. Scripts, styles and the document head are skipped.
func StripHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))

	var b strings.Builder
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input, either way keep what was read
			return b.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Title:
				if tt == html.StartTagToken {
					skip++
				}
			case atom.Br:
				b.WriteString("\n")
			case atom.P:
				ensureTrailing(&b, paragraphBreak)
			case atom.Div, atom.Li, atom.Tr, atom.Blockquote, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				ensureTrailing(&b, lineBreak)
			}
		case html.EndTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Title:
				if skip > 0 {
					skip--
				}
			case atom.P:
				ensureTrailing(&b, paragraphBreak)
			case atom.Div, atom.Li, atom.Tr, atom.Blockquote, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				ensureTrailing(&b, lineBreak)
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(string(z.Text()))
			if strings.TrimSpace(text) == "" && atBoundary(&b) {
				continue
			}
			b.WriteString(text)
		}
	}
}

// ensureTrailing makes sure a non-empty builder ends with suffix without
// stacking separators.
func ensureTrailing(b *strings.Builder, suffix string) {
	if b.Len() == 0 {
		return
	}
	current := b.String()
	trimmed := strings.TrimRight(current, "\n")
	have := len(current) - len(trimmed)
	if have >= len(suffix) {
		return
	}
	b.WriteString(suffix[have:])
}

func atBoundary(b *strings.Builder) bool {
	return b.Len() == 0 || strings.HasSuffix(b.String(), "\n")
}
