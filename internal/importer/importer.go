// Package importer extracts source text from web pages and documents so it
// can seed a presentation prompt.
package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// MaxURLContent caps the text kept from a web page, in characters.
	MaxURLContent = 5000

	defaultTitle = "Untitled Page"
	userAgent    = "Mozilla/5.0 (compatible; gh-slides/1.0)"
	fetchTimeout = 30 * time.Second
	maxPageBytes = 10 << 20
)

// Content is imported source material.
type Content struct {
	Title  string
	Text   string
	Source string
}

// Format renders content as prompt text.
func Format(c *Content) string {
	var b strings.Builder
	if c.Title != "" {
		b.WriteString("## " + c.Title + "\n\n")
	}
	b.WriteString(strings.TrimSpace(c.Text))
	b.WriteString("\n\n---\n*Content imported and ready for presentation generation*")
	return strings.TrimSpace(b.String())
}

var httpClient = &http.Client{Timeout: fetchTimeout}

// FromURL fetches a web page and extracts its title and visible text.
func FromURL(ctx context.Context, rawURL string) (*Content, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	c, err := parseHTML(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}
	c.Source = rawURL
	return c, nil
}

func parseHTML(r io.Reader) (*Content, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	c := &Content{Title: defaultTitle}
	if t := findElement(doc, atom.Title); t != nil {
		if title := collapse(nodeText(t)); title != "" {
			c.Title = title
		}
	}
	if body := findElement(doc, atom.Body); body != nil {
		c.Text = truncate(collapse(nodeText(body)), MaxURLContent)
	}
	return c, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, a); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg:
				return
			}
		case html.CommentNode:
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// FromFile extracts text from a PDF, an XLSX workbook or a plain text file.
func FromFile(ctx context.Context, path string) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	c := &Content{
		Title:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Source: path,
	}

	var err error
	switch ext {
	case ".pdf":
		c.Text, err = readPDF(ctx, path)
	case ".xlsx", ".xlsm":
		c.Text, err = readXLSX(ctx, path)
	default:
		c.Text, err = readText(path)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Text) == "" {
		return nil, fmt.Errorf("no text found in %s", path)
	}
	return c, nil
}

func readPDF(ctx context.Context, path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func readXLSX(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		b.WriteString("### " + sheet + "\n\n")
		for _, row := range rows {
			b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not a text file", path)
	}
	return string(data), nil
}
