// Package richtext inspects the HTML fragments produced by the answer editor.
//
// Fragments are authored by the same local user who views them, so nothing
// here sanitises markup. Rendering them for anyone else needs a sanitising
// step first.
package richtext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// imageMarker is the tag that makes a payload count as present even with no text.
const imageMarker = "<img"

// HasContent reports whether a payload has anything worth displaying: text
// left after removing tags, or an embedded image.
func HasContent(payload string) bool {
	if payload == "" {
		return false
	}
	if strings.Contains(strings.ToLower(payload), imageMarker) {
		return true
	}
	return strings.TrimSpace(stripTags(payload, false)) != ""
}

// PlainText removes all markup. Block boundaries and <br> become newlines,
// entities are decoded and blank lines are dropped.
func PlainText(payload string) string {
	text := stripTags(payload, true)
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func stripTags(payload string, breaks bool) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(payload))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case a == atom.Script || a == atom.Style:
				skip++
			case breaks && a == atom.Br:
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case a == atom.Script || a == atom.Style:
				if skip > 0 {
					skip--
				}
			case breaks && isBlock(a):
				sb.WriteByte('\n')
			}
		}
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Table, atom.Blockquote, atom.Pre,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}
