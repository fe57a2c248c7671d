package render

import (
	"strconv"
	"strings"

	"github.com/markis/gh-slides/internal/presentation"
	"github.com/markis/gh-slides/internal/slides"
)

const slideSeparator = "\n\n---\n\n"

// Markdown exports a deck as Markdown, one slide per section separated by
// horizontal rules.
func Markdown(deck *presentation.Deck) string {
	parts := make([]string, 0, len(deck.Slides))
	for _, s := range deck.Slides {
		if md := SlideMarkdown(s); md != "" {
			parts = append(parts, md)
		}
	}
	return strings.Join(parts, slideSeparator) + "\n"
}

// SlideMarkdown renders a single slide.
func SlideMarkdown(s slides.Slide) string {
	var b strings.Builder
	writeNodes(&b, s.Content, 0)
	if img := s.RootImage; img != nil {
		b.WriteString(imageMarkdown(img.Query, img.URL))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func imageMarkdown(query, url string) string {
	if url == "" {
		return "*Image: " + query + "*"
	}
	return "![" + query + "](" + url + ")"
}

func writeNodes(b *strings.Builder, nodes []slides.Node, depth int) {
	for _, n := range nodes {
		writeNode(b, n, depth)
	}
}

func writeNode(b *strings.Builder, n slides.Node, depth int) {
	indent := strings.Repeat("  ", depth)

	if level := headingLevel(n.Type); level > 0 {
		b.WriteString(strings.Repeat("#", level) + " " + n.Text + "\n\n")
		return
	}

	switch n.Type {
	case slides.TypeParagraph:
		b.WriteString(n.Text + "\n\n")
	case slides.TypeListItem:
		b.WriteString(indent + "- " + n.Text + "\n")
	case slides.TypeBulletList, slides.TypeNumberedList:
		for i, item := range n.Children {
			marker := "- "
			if n.Type == slides.TypeNumberedList {
				marker = strconv.Itoa(i+1) + ". "
			}
			if item.Text != "" {
				b.WriteString(indent + marker + item.Text + "\n")
			}
			writeNodes(b, item.Children, depth+1)
		}
		b.WriteString("\n")
	case slides.TypeImage:
		b.WriteString(imageMarkdown(n.Attrs["query"], n.Attrs["src"]) + "\n\n")
	default:
		// Layout containers flatten into their children.
		if n.Text != "" {
			b.WriteString(n.Text + "\n\n")
		}
		writeNodes(b, n.Children, depth)
	}
}

func headingLevel(nodeType string) int {
	if len(nodeType) != 2 || nodeType[0] != 'h' {
		return 0
	}
	level := int(nodeType[1] - '0')
	if level < 1 || level > 6 {
		return 0
	}
	return level
}
