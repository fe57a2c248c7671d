package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/markis/gh-slides/internal/presentation"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatTable    = "table"
	FormatPlain    = "plain"
)

// Formats lists the formats accepted by Write.
var Formats = []string{FormatMarkdown, FormatJSON, FormatYAML, FormatTable}

// Write encodes deck in the named format.
func Write(w io.Writer, format string, deck *presentation.Deck) error {
	switch format {
	case FormatMarkdown, FormatPlain, "":
		_, err := io.WriteString(w, Markdown(deck))
		return err
	case FormatJSON:
		return WriteJSON(w, deck)
	case FormatYAML:
		return WriteYAML(w, deck)
	case FormatTable:
		return WriteTable(w, deck)
	default:
		return fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// WriteJSON writes the deck as indented JSON.
func WriteJSON(w io.Writer, deck *presentation.Deck) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(deck); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteYAML writes the deck as YAML.
func WriteYAML(w io.Writer, deck *presentation.Deck) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(deck); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

// WriteOutline encodes an outline as JSON or YAML.
func WriteOutline(w io.Writer, format string, outline *presentation.Outline) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outline)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(outline); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, outline.Markdown())
		return err
	}
}

// WriteTable writes a one-row-per-slide summary.
func WriteTable(w io.Writer, deck *presentation.Deck) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	if deck.Title != "" {
		tw.SetTitle(deck.Title)
	}

	tw.AppendHeader(table.Row{"#", "Title", "Layout", "Blocks", "Image"})
	for i, s := range deck.Slides {
		image := ""
		if s.RootImage != nil {
			image = s.RootImage.Query
			if s.RootImage.URL != "" {
				image += " ✓"
			}
		}
		tw.AppendRow(table.Row{i + 1, s.Title(), s.Layout, len(s.Content), image})
	}
	tw.AppendFooter(table.Row{"", strconv.Itoa(len(deck.Slides)) + " slides"})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, WidthMax: 40},
	})

	tw.Render()
	return nil
}
