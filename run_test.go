package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/markis/gh-slides/internal/args"
	"github.com/markis/gh-slides/internal/presentation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunParse_JSONInChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.xml")
	require.NoError(t, os.WriteFile(path, []byte("<SECTION><H1>One</H1></SECTION>\n# Two\n- a\n"), 0o600))

	var out bytes.Buffer
	err := runParse(args.Arguments{Input: path, ChunkSize: 3, Format: "json"}, &out, 80)
	require.NoError(t, err)

	var deck presentation.Deck
	require.NoError(t, json.Unmarshal(out.Bytes(), &deck))
	assert.Equal(t, "One", deck.Title)
	require.Len(t, deck.Slides, 2)
	assert.Equal(t, "Two", deck.Slides[1].Title())
}

func TestRunParse_StdinMarkdown(t *testing.T) {
	var out bytes.Buffer
	err := runParse(args.Arguments{Input: "-", Stdin: "# Only\ntext", Format: "markdown", UsePlainText: true}, &out, 80)
	require.NoError(t, err)
	assert.Equal(t, "# Only\n\ntext\n", out.String())
}

func TestRunParse_NoSlides(t *testing.T) {
	err := runParse(args.Arguments{Input: "-", Stdin: "  ", Format: "json"}, &bytes.Buffer{}, 80)
	assert.ErrorIs(t, err, presentation.ErrNoSlides)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "WARN")
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	assert.Equal(t, zerolog.InfoLevel, newLogger(&buf, "nonsense").GetLevel())
}
