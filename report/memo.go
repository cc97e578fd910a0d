package report

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MemoBlockKind classifies one block of the investment memo.
type MemoBlockKind string

const (
	MemoParagraph MemoBlockKind = "paragraph"
	MemoHeading   MemoBlockKind = "heading"
	MemoBullet    MemoBlockKind = "bullet"
)

// MemoBlock is a flattened piece of memo text ready for wrapping.
type MemoBlock struct {
	Kind MemoBlockKind
	// Marker prefixes bullets: "•" or "3." for ordered lists.
	Marker string
	Text   string
}

var memoMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ParseMemo reads the engine's memo as Markdown and flattens it into
// paragraphs, headings and bullets. Inline formatting is dropped.
func ParseMemo(memo string) []MemoBlock {
	src := []byte(memo)
	doc := memoMarkdown.Parser().Parse(text.NewReader(src))

	var blocks []MemoBlock
	add := func(kind MemoBlockKind, marker, s string) {
		if s = collapse(s); s != "" {
			blocks = append(blocks, MemoBlock{Kind: kind, Marker: marker, Text: s})
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			add(MemoHeading, "", plainText(node, src))
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			add(MemoBullet, listMarker(node), plainText(node, src))
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			add(MemoParagraph, "", plainText(node, src))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				add(MemoParagraph, "", string(seg.Value(src)))
			}
			return ast.WalkSkipChildren, nil
		case *east.TableHeader, *east.TableRow:
			var cells []string
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				cells = append(cells, collapse(plainText(c, src)))
			}
			add(MemoParagraph, "", strings.Join(cells, " | "))
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return blocks
}

func listMarker(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "•"
	}
	n := list.Start
	for sib := item.PreviousSibling(); sib != nil; sib = sib.PreviousSibling() {
		n++
	}
	return fmt.Sprintf("%d.", n)
}

// plainText concatenates the text under n, separating nested blocks with a
// space.
func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if c != n && c.Type() == ast.TypeBlock {
			b.WriteByte(' ')
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.URL(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
