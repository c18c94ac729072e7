// Package render turns the analysis service's markdown reports into the
// HTML subset Telegram accepts. Telegram rejects messages with tags it
// doesn't know, so headings, lists and rules are rewritten as text.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// MessageLimit is Telegram's hard per-message length cap, in runes.
const MessageLimit = 4096

var markdown = goldmark.New()

// TelegramHTML renders a markdown document as Telegram-safe HTML.
func TelegramHTML(source string) string {
	src := []byte(source)
	doc := markdown.Parser().Parse(gmtext.NewReader(src))

	var b strings.Builder
	renderBlocks(&b, doc, src, 0)
	return strings.TrimRight(b.String(), "\n")
}

func renderBlocks(b *strings.Builder, parent ast.Node, src []byte, depth int) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		renderBlock(b, n, src, depth)
	}
}

func renderBlock(b *strings.Builder, n ast.Node, src []byte, depth int) {
	switch n := n.(type) {
	case *ast.Heading:
		b.WriteString("<b>")
		renderInline(b, n, src)
		b.WriteString("</b>\n\n")
	case *ast.Paragraph:
		renderInline(b, n, src)
		b.WriteString("\n\n")
	case *ast.TextBlock:
		renderInline(b, n, src)
		b.WriteString("\n")
	case *ast.List:
		renderList(b, n, src, depth)
		if depth == 0 {
			b.WriteString("\n")
		}
	case *ast.FencedCodeBlock:
		renderCode(b, n, src)
	case *ast.CodeBlock:
		renderCode(b, n, src)
	case *ast.ThematicBreak:
		b.WriteString("———\n\n")
	case *ast.Blockquote:
		renderBlocks(b, n, src, depth)
	case *ast.HTMLBlock:
		// Raw HTML from the model is untrusted; drop it.
	default:
		renderInline(b, n, src)
		b.WriteString("\n")
	}
}

func renderList(b *strings.Builder, list *ast.List, src []byte, depth int) {
	indent := strings.Repeat("  ", depth)
	index := list.Start
	if index == 0 {
		index = 1
	}

	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d. ", index)
			index++
		}
		b.WriteString(indent + marker)

		first := true
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if nested, ok := child.(*ast.List); ok {
				if !first {
					b.WriteString("\n")
				}
				renderList(b, nested, src, depth+1)
				first = false
				continue
			}
			if !first {
				b.WriteString(indent + "  ")
			}
			renderInline(b, child, src)
			b.WriteString("\n")
			first = false
		}
		if first {
			b.WriteString("\n")
		}
	}
}

func renderCode(b *strings.Builder, n ast.Node, src []byte) {
	b.WriteString("<pre>")
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.WriteString(html.EscapeString(string(line.Value(src))))
	}
	b.WriteString("</pre>\n\n")
}

func renderInline(b *strings.Builder, parent ast.Node, src []byte) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Text:
			b.WriteString(html.EscapeString(string(n.Segment.Value(src))))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.WriteString(html.EscapeString(string(n.Value)))
		case *ast.Emphasis:
			tag := "i"
			if n.Level >= 2 {
				tag = "b"
			}
			b.WriteString("<" + tag + ">")
			renderInline(b, n, src)
			b.WriteString("</" + tag + ">")
		case *ast.CodeSpan:
			b.WriteString("<code>")
			renderInline(b, n, src)
			b.WriteString("</code>")
		case *ast.Link:
			b.WriteString(`<a href="` + html.EscapeString(string(n.Destination)) + `">`)
			renderInline(b, n, src)
			b.WriteString("</a>")
		case *ast.AutoLink:
			b.WriteString(html.EscapeString(string(n.URL(src))))
		case *ast.Image:
			renderInline(b, n, src)
		case *ast.RawHTML:
			// dropped, same as HTMLBlock
		default:
			renderInline(b, n, src)
		}
	}
}

// Split breaks a rendered message into chunks under Telegram's length
// cap, preferring paragraph boundaries.
func Split(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
		}
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		runes := []rune(paragraph)

		// A single paragraph over the cap gets hard-cut.
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		paragraph = string(runes)

		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(paragraph))+2 > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	flush()

	return chunks
}
