package richtext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BlockKind classifies a laid-out block.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockImage
)

// Run is a span of text sharing one style.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
}

// Block is one vertical unit of a fragment: a paragraph of runs or an image.
type Block struct {
	Kind  BlockKind
	Level int // heading level, 1..6
	Runs  []Run
	Image *Image
}

// Text concatenates the block's runs.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Blocks splits a fragment into paragraphs, headings, list items and images
// in document order. Images that cannot be decoded are dropped.
func Blocks(payload string) []Block {
	if strings.TrimSpace(payload) == "" {
		return nil
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(payload), ctx)
	if err != nil {
		return []Block{{Kind: BlockParagraph, Runs: []Run{{Text: PlainText(payload)}}}}
	}
	w := &walker{}
	for _, n := range nodes {
		w.walk(n, Run{})
	}
	w.flush()
	return w.blocks
}

type walker struct {
	blocks []Block
	cur    Block
}

func (w *walker) flush() {
	runs := w.cur.Runs
	// Trim the outer edges so wrapped text starts flush.
	for len(runs) > 0 && strings.TrimSpace(runs[0].Text) == "" {
		runs = runs[1:]
	}
	for len(runs) > 0 && strings.TrimSpace(runs[len(runs)-1].Text) == "" {
		runs = runs[:len(runs)-1]
	}
	if len(runs) > 0 {
		runs[0].Text = strings.TrimLeft(runs[0].Text, " ")
		runs[len(runs)-1].Text = strings.TrimRight(runs[len(runs)-1].Text, " ")
		w.cur.Runs = runs
		w.blocks = append(w.blocks, w.cur)
	}
	w.cur = Block{}
}

func (w *walker) walk(n *html.Node, style Run) {
	switch n.Type {
	case html.TextNode:
		text := collapseSpace(n.Data)
		if text != "" {
			r := style
			r.Text = text
			w.cur.Runs = append(w.cur.Runs, r)
		}
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c, style)
		}
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style:
		return
	case atom.Br:
		kind, level := w.cur.Kind, w.cur.Level
		w.flush()
		w.cur.Kind, w.cur.Level = kind, level
		return
	case atom.Img:
		w.flush()
		if img, err := DecodeDataURI(attr(n, "src")); err == nil {
			w.blocks = append(w.blocks, Block{Kind: BlockImage, Image: img})
		}
		return
	case atom.B, atom.Strong:
		style.Bold = true
	case atom.I, atom.Em:
		style.Italic = true
	case atom.U:
		style.Underline = true
	}

	block, kind, level := blockKind(n.DataAtom)
	if block {
		w.flush()
		w.cur.Kind, w.cur.Level = kind, level
		if kind == BlockHeading {
			style.Bold = true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, style)
	}
	if block {
		w.flush()
	}
}

func blockKind(a atom.Atom) (bool, BlockKind, int) {
	switch a {
	case atom.H1:
		return true, BlockHeading, 1
	case atom.H2:
		return true, BlockHeading, 2
	case atom.H3:
		return true, BlockHeading, 3
	case atom.H4, atom.H5, atom.H6:
		return true, BlockHeading, 4
	case atom.Li:
		return true, BlockListItem, 0
	}
	return isBlock(a), BlockParagraph, 0
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return " "
	}
	out := strings.Join(fields, " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == '\f'
}
