package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/cli/go-gh/v2/pkg/markdown"
	"github.com/markis/gh-slides/internal/presentation"
	"github.com/markis/gh-slides/internal/slides"
)

type TerminalRenderer struct {
	markdown  *glamour.TermRenderer
	plainText bool
	out       io.Writer
	printed   int
}

func NewTerminalRenderer(out io.Writer, usePlainText bool, wrap int) *TerminalRenderer {
	var md *glamour.TermRenderer
	if !usePlainText {
		md, _ = glamour.NewTermRenderer(
			markdown.WithWrap(wrap),
			glamour.WithAutoStyle(),
		)
	}

	return &TerminalRenderer{
		markdown:  md,
		plainText: usePlainText || md == nil,
		out:       out,
	}
}

// Render prints every slide of the deck that has not been printed yet.
func (t *TerminalRenderer) Render(deck *presentation.Deck) error {
	if t.printed == 0 && deck.Title != "" {
		if err := t.renderContent("# " + deck.Title); err != nil {
			return err
		}
	}
	for t.printed < len(deck.Slides) {
		if err := t.RenderSlide(deck.Slides[t.printed]); err != nil {
			return err
		}
	}
	return nil
}

// Update prints the slides of a streaming snapshot that are closed. The last
// slide of a snapshot may still be growing and is held back.
func (t *TerminalRenderer) Update(snapshot []slides.Slide) error {
	for t.printed < len(snapshot)-1 {
		if err := t.RenderSlide(snapshot[t.printed]); err != nil {
			return err
		}
	}
	return nil
}

// RenderSlide prints one slide followed by a separator.
func (t *TerminalRenderer) RenderSlide(s slides.Slide) error {
	t.printed++
	header := fmt.Sprintf("*Slide %d*", t.printed)
	if err := t.renderContent(header + "\n\n" + SlideMarkdown(s)); err != nil {
		return err
	}
	return t.renderContent("---")
}

func (t *TerminalRenderer) renderContent(content string) error {
	if t.plainText {
		_, err := fmt.Fprintln(t.out, content)
		return err
	}

	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "#") {
		fmt.Fprintln(t.out)
	}

	mdContent, err := t.markdown.Render(content)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}

	_, err = fmt.Fprintln(t.out, strings.TrimSpace(mdContent))
	return err
}
