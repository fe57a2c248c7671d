package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/markis/gh-slides/internal/args"
	"github.com/markis/gh-slides/internal/client"
	"github.com/markis/gh-slides/internal/config"
	"github.com/markis/gh-slides/internal/images"
	"github.com/markis/gh-slides/internal/importer"
	"github.com/markis/gh-slides/internal/presentation"
	"github.com/markis/gh-slides/internal/render"
	"github.com/markis/gh-slides/internal/search"
	"github.com/markis/gh-slides/internal/slides"
	"github.com/rs/zerolog"
)

func run(ctx context.Context, argv []string) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := args.ParseArgs(ctx, *cfg, argv, args.PipedStdin())
	if err != nil {
		return err
	}
	if a.Command == "" {
		return nil
	}

	logger := newLogger(os.Stderr, a.LogLevel)

	out, closeOut, err := openOutput(a.Out)
	if err != nil {
		return err
	}
	defer closeOut()

	switch a.Command {
	case args.CommandParse:
		return runParse(a, out, cfg.Render.Wrap)
	case args.CommandOutline, args.CommandGenerate:
		return runGenerate(ctx, cfg, a, out, logger)
	default:
		return fmt.Errorf("unknown command %q", a.Command)
	}
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func runParse(a args.Arguments, out io.Writer, wrap int) error {
	doc := a.Stdin
	if a.Input != "-" {
		data, err := os.ReadFile(a.Input)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		doc = string(data)
	}

	parser := slides.New()
	if a.ChunkSize <= 0 {
		parser.ParseChunk(doc)
	} else {
		for len(doc) > 0 {
			n := min(a.ChunkSize, len(doc))
			parser.ParseChunk(doc[:n])
			doc = doc[n:]
		}
	}
	parser.Finalize()

	deck := presentation.NewDeck(parser.AllSlides())
	if len(deck.Slides) == 0 {
		return presentation.ErrNoSlides
	}
	return writeDeck(a, out, deck, wrap)
}

func writeDeck(a args.Arguments, out io.Writer, deck *presentation.Deck, wrap int) error {
	if renderToTerminal(a) {
		return render.NewTerminalRenderer(out, a.UsePlainText, wrap).Render(deck)
	}
	return render.Write(out, a.Format, deck)
}

func renderToTerminal(a args.Arguments) bool {
	return a.Out == "" && a.Format == render.FormatMarkdown && !a.UsePlainText
}

// importSource collects the source material named by the arguments.
func importSource(ctx context.Context, a args.Arguments, logger zerolog.Logger) (title, source string, err error) {
	var parts []string
	if a.URL != "" {
		c, err := importer.FromURL(ctx, a.URL)
		if err != nil {
			return "", "", err
		}
		logger.Info().Str("url", a.URL).Str("title", c.Title).Msg("imported web page")
		title = c.Title
		parts = append(parts, importer.Format(c))
	}
	if a.File != "" {
		c, err := importer.FromFile(ctx, a.File)
		if err != nil {
			return "", "", err
		}
		logger.Info().Str("file", a.File).Msg("imported file")
		if title == "" {
			title = c.Title
		}
		parts = append(parts, importer.Format(c))
	}
	if a.Stdin != "" {
		parts = append(parts, a.Stdin)
	}
	return title, strings.Join(parts, "\n\n"), nil
}

func runGenerate(ctx context.Context, cfg *config.Config, a args.Arguments, out io.Writer, logger zerolog.Logger) error {
	title, source, err := importSource(ctx, a, logger)
	if err != nil {
		return fmt.Errorf("failed to import source: %w", err)
	}

	topic := a.Topic
	if topic == "" {
		topic = title
	}
	if topic == "" {
		topic = "the provided source material"
	}

	llm, err := client.New(cfg.Provider, logger)
	if err != nil {
		return err
	}

	var filler *images.Filler
	if a.Command == args.CommandGenerate {
		imagesCfg := cfg.Images
		imagesCfg.Source = a.Images
		imageGen, err := images.NewGenerator(imagesCfg)
		if err != nil {
			return err
		}
		if imageGen != nil {
			filler = images.NewFiller(imageGen, imagesCfg, logger)
		}
	}

	var opts []presentation.Option
	if a.Search {
		opts = append(opts, presentation.WithResearcher(search.New(cfg.Search, logger)))
	}

	gen := presentation.NewGenerator(llm, filler, logger, opts...)
	req := presentation.Request{
		Topic:    topic,
		Slides:   a.Slides,
		Language: a.Language,
		Tone:     a.Tone,
		Model:    a.Model,
		Source:   source,
	}

	logger.Info().Str("model", a.Model).Int("slides", a.Slides).Msg("generating outline")
	outline, err := gen.Outline(ctx, req)
	if err != nil {
		return err
	}

	if a.Command == args.CommandOutline {
		return render.WriteOutline(out, a.Format, outline)
	}

	logger.Info().Str("title", outline.Title).Int("topics", len(outline.Items)).Msg("generating slides")

	var terminal *render.TerminalRenderer
	onUpdate := func(s []slides.Slide) {
		logger.Debug().Int("slides", len(s)).Msg("progress")
	}
	if renderToTerminal(a) {
		terminal = render.NewTerminalRenderer(out, a.UsePlainText, cfg.Render.Wrap)
		onUpdate = func(s []slides.Slide) {
			if err := terminal.Update(s); err != nil {
				logger.Warn().Err(err).Msg("failed to render slide")
			}
		}
	}

	deck, err := gen.Slides(ctx, req, outline, onUpdate)
	if deck == nil || len(deck.Slides) == 0 {
		return err
	}

	var writeErr error
	if terminal != nil {
		writeErr = terminal.Render(deck)
	} else {
		writeErr = render.Write(out, a.Format, deck)
	}
	return errors.Join(err, writeErr)
}
