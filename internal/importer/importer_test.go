package importer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const page = `<!doctype html>
<html><head><title> Solar &amp; Wind </title><style>body{color:red}</style></head>
<body>
  <h1>Renewables</h1>
  <script>var tracking = true;</script>
  <p>Solar   capacity
  doubled.</p>
  <!-- hidden -->
  <noscript>enable js</noscript>
</body></html>`

func TestFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "gh-slides")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	c, err := FromURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Solar & Wind", c.Title)
	assert.Equal(t, "Renewables Solar capacity doubled.", c.Text)
	assert.Equal(t, srv.URL, c.Source)
}

func TestFromURL_Errors(t *testing.T) {
	_, err := FromURL(context.Background(), "not a url")
	assert.Error(t, err)

	_, err = FromURL(context.Background(), "ftp://example.com/file")
	assert.Error(t, err)

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err = FromURL(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "404")
}

func TestParseHTML_TruncatesAndDefaultsTitle(t *testing.T) {
	c, err := parseHTML(strings.NewReader("<body><p>" + strings.Repeat("é", MaxURLContent+10) + "</p></body>"))
	require.NoError(t, err)
	assert.Equal(t, defaultTitle, c.Title)
	assert.Equal(t, MaxURLContent, len([]rune(c.Text)))
}

func TestFromFile_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Quarterly results\nRevenue grew."), 0o600))

	c, err := FromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "notes", c.Title)
	assert.Equal(t, "# Quarterly results\nRevenue grew.", c.Text)
}

func TestFromFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Region", "Sales"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"EMEA", 42}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	c, err := FromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "sales", c.Title)
	assert.Contains(t, c.Text, "### Sheet1")
	assert.Contains(t, c.Text, "| Region | Sales |")
	assert.Contains(t, c.Text, "| EMEA | 42 |")
}

func TestFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := FromFile(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf"), 0o600))
	_, err = FromFile(context.Background(), bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	_, err = FromFile(context.Background(), empty)
	assert.ErrorContains(t, err, "no text")
}

func TestFormat(t *testing.T) {
	got := Format(&Content{Title: "Solar", Text: "  Capacity doubled.\n"})
	assert.Equal(t, "## Solar\n\nCapacity doubled.\n\n---\n*Content imported and ready for presentation generation*", got)

	got = Format(&Content{Text: "Body"})
	assert.True(t, strings.HasPrefix(got, "Body\n\n---"))
}
