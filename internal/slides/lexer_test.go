package slides

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	tests := []struct {
		name      string
		buf       string
		lineStart bool
		eof       bool
		wantOK    bool
		wantKind  tokenKind
		wantN     int
		wantText  string
		wantLevel int
	}{
		{name: "heading", buf: "## Title", lineStart: true, wantOK: true, wantKind: tokHeading, wantN: 3, wantLevel: 2},
		{name: "heading needs more", buf: "##", lineStart: true},
		{name: "heading at eof", buf: "##", lineStart: true, eof: true, wantOK: true, wantKind: tokHeading, wantN: 2, wantLevel: 2},
		{name: "empty heading", buf: "#\nx", lineStart: true, wantOK: true, wantKind: tokHeading, wantN: 1, wantLevel: 1},
		{name: "hashtag is text", buf: "#tag", lineStart: true, wantOK: true, wantKind: tokText, wantN: 4, wantText: "#tag"},
		{name: "seven hashes is text", buf: "####### x", lineStart: true, wantOK: true, wantKind: tokText, wantN: 9, wantText: "####### x"},
		{name: "heading mid line is text", buf: "# x", wantOK: true, wantKind: tokText, wantN: 3, wantText: "# x"},
		{name: "bullet", buf: "- item", lineStart: true, wantOK: true, wantKind: tokBullet, wantN: 2},
		{name: "bullet needs more", buf: "*", lineStart: true},
		{name: "dash at eof is text", buf: "-", lineStart: true, eof: true, wantOK: true, wantKind: tokText, wantN: 1, wantText: "-"},
		{name: "rule is text", buf: "---", lineStart: true, wantOK: true, wantKind: tokText, wantN: 3, wantText: "---"},
		{name: "numbered", buf: "12. x", lineStart: true, wantOK: true, wantKind: tokNumbered, wantN: 4},
		{name: "numbered paren", buf: "3) x", lineStart: true, wantOK: true, wantKind: tokNumbered, wantN: 3},
		{name: "number needs more", buf: "12.", lineStart: true},
		{name: "year is text", buf: "2024 was", lineStart: true, wantOK: true, wantKind: tokText, wantN: 8, wantText: "2024 was"},
		{name: "indent", buf: "  \t- x", lineStart: true, wantOK: true, wantKind: tokSkip, wantN: 3},
		{name: "newline", buf: "\nabc", wantOK: true, wantKind: tokNewline, wantN: 1},
		{name: "text stops at tag", buf: "abc<P>", wantOK: true, wantKind: tokText, wantN: 3, wantText: "abc"},
		{name: "lone lt needs more", buf: "<"},
		{name: "lone lt at eof", buf: "<", eof: true, wantOK: true, wantKind: tokText, wantN: 1, wantText: "<"},
		{name: "lt before digit", buf: "<3", wantOK: true, wantKind: tokText, wantN: 1, wantText: "<"},
		{name: "partial tag", buf: "<IMG query=\"a"},
		{name: "partial tag at eof", buf: "<IMG query=\"a", eof: true, wantOK: true, wantKind: tokSkip, wantN: 13},
		{name: "prose lt needs more", buf: "<b holds"},
		{name: "prose lt at eof", buf: "<b holds", eof: true, wantOK: true, wantKind: tokText, wantN: 1, wantText: "<"},
		{name: "cut off tag name at eof", buf: "<SECTION", eof: true, wantOK: true, wantKind: tokSkip, wantN: 8},
		{name: "lt before newline", buf: "<b holds\n# Two>", wantOK: true, wantKind: tokText, wantN: 1, wantText: "<"},
		{name: "lt before another tag", buf: "<b <SECTION>", wantOK: true, wantKind: tokText, wantN: 1, wantText: "<"},
		{name: "partial comment", buf: "<!-- a\nb"},
		{name: "multiline comment", buf: "<!-- a\nb -->x", wantOK: true, wantKind: tokSkip, wantN: 12},
		{name: "comment", buf: "<!-- note -->x", wantOK: true, wantKind: tokSkip, wantN: 13},
		{name: "tag", buf: "<P>x", wantOK: true, wantKind: tokTag, wantN: 3},
		{name: "nameless close is text", buf: "</ >", wantOK: true, wantKind: tokText, wantN: 4, wantText: "</ >"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, n, ok := scan(tt.buf, tt.lineStart, true, tt.eof)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantKind, tok.kind)
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.wantText, tok.text)
			assert.Equal(t, tt.wantLevel, tok.level)
		})
	}
}

func TestScan_MarkersOffInsideTaggedBlock(t *testing.T) {
	tok, n, ok := scan("- item", true, false, false)
	require.True(t, ok)
	assert.Equal(t, tokText, tok.kind)
	assert.Equal(t, 6, n)
}

func TestScanText_HoldsBackPartialRune(t *testing.T) {
	tok, n, ok := scanText("ab\xe2\x82", false)
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ab", tok.text)

	_, _, ok = scanText("\xe2\x82", false)
	assert.False(t, ok)

	tok, n, ok = scanText("\xe2\x82", true)
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, "\xe2\x82", tok.text)
}

func TestParseTag(t *testing.T) {
	tg, ok := parseTag(`<IMG query="a > b" layoutType='left' hidden data-x=1 />`)
	require.True(t, ok)
	assert.Equal(t, "IMG", tg.name)
	assert.True(t, tg.selfClosing)
	assert.False(t, tg.closing)
	assert.Equal(t, map[string]string{
		"query":      "a > b",
		"layouttype": "left",
		"hidden":     "",
		"data-x":     "1",
	}, tg.attrs)

	tg, ok = parseTag("</section>")
	require.True(t, ok)
	assert.Equal(t, "SECTION", tg.name)
	assert.True(t, tg.closing)
	assert.Nil(t, tg.attrs)

	_, ok = parseTag("<a+b>")
	assert.False(t, ok)
}

func TestTagEnd(t *testing.T) {
	assert.Equal(t, 18, tagEnd(`<IMG query="a > b">`))
	assert.Equal(t, 10, tagEnd("<H1 it's a>"))
	assert.Equal(t, -1, tagEnd(`<IMG query="a >`))
	assert.Equal(t, notTag, tagEnd("<b holds\nhere>"))
	assert.Equal(t, notTag, tagEnd("<b <P>"))
	assert.Equal(t, 11, tagEnd("<P x=\"a\n<b\">"))
}

func TestTruncatedTag(t *testing.T) {
	assert.True(t, truncatedTag(`<IMG query="a`))
	assert.True(t, truncatedTag("</section"))
	assert.True(t, truncatedTag("<SECTION layout="))
	assert.False(t, truncatedTag("<b holds"))
	assert.False(t, truncatedTag("<at end"))
}

func TestParseAttrs_FirstWins(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1"}, parseAttrs(` a=1 A="2"`))
	assert.Nil(t, parseAttrs("   "))
}
