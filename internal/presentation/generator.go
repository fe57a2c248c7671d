// Package presentation drives deck generation: it streams an outline from the
// model, then streams slide markup through the slide parser while filling
// slide images in the background.
package presentation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/markis/gh-slides/internal/client"
	"github.com/markis/gh-slides/internal/images"
	"github.com/markis/gh-slides/internal/markup"
	"github.com/markis/gh-slides/internal/search"
	"github.com/markis/gh-slides/internal/slides"
	"github.com/markis/gh-slides/internal/stream"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultUpdateInterval = 100 * time.Millisecond
	maxFallbackTitle      = 60
	maxSearchQuery        = 400
)

var (
	// ErrNoSlides is returned when a finished slide stream produced no slides.
	ErrNoSlides = errors.New("no slides were generated")
	// ErrEmptyOutline is returned when the outline response has no topics.
	ErrEmptyOutline = errors.New("no outline topics were generated")
)

// Completer streams chat completions.
type Completer interface {
	Stream(ctx context.Context, req client.Request) (<-chan stream.Chunk, error)
}

// Researcher looks up current material for a topic.
type Researcher interface {
	Research(ctx context.Context, query string) *search.Response
}

// Request describes the presentation to generate.
type Request struct {
	Topic    string
	Slides   int
	Language string
	Tone     string
	Model    string
	// Source is imported material the outline is based on.
	Source string
	// Research holds formatted web search results for the outline.
	Research string
}

// Outline is the titled list of slide topics.
type Outline struct {
	Title    string   `json:"title" yaml:"title"`
	Items    []string `json:"items" yaml:"items"`
	Thinking string   `json:"thinking,omitempty" yaml:"thinking,omitempty"`
}

// Markdown returns the outline as a titled markdown document.
func (o *Outline) Markdown() string {
	return "# " + o.Title + "\n\n" + strings.Join(o.Items, "\n\n") + "\n"
}

// Deck is a generated presentation.
type Deck struct {
	Title     string         `json:"title" yaml:"title"`
	Language  string         `json:"language,omitempty" yaml:"language,omitempty"`
	Tone      string         `json:"tone,omitempty" yaml:"tone,omitempty"`
	Outline   []string       `json:"outline,omitempty" yaml:"outline,omitempty"`
	Slides    []slides.Slide `json:"slides" yaml:"slides"`
	Thumbnail string         `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Thinking  string         `json:"thinking,omitempty" yaml:"thinking,omitempty"`
}

// NewDeck builds a deck from parsed slides, taking the title from the first
// slide heading.
func NewDeck(parsed []slides.Slide) *Deck {
	d := &Deck{Slides: parsed}
	if len(parsed) > 0 {
		d.Title = parsed[0].Title()
	}
	d.Thumbnail = thumbnail(parsed)
	return d
}

// Generator produces outlines and decks.
type Generator struct {
	llm      Completer
	filler   *images.Filler
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time
	parser   []slides.Option
	research Researcher
}

// Option configures a Generator.
type Option func(*Generator)

// WithUpdateInterval sets the minimum time between progress callbacks.
func WithUpdateInterval(d time.Duration) Option {
	return func(g *Generator) {
		g.interval = d
	}
}

// WithParserOptions passes options to every slide parser the generator creates.
func WithParserOptions(opts ...slides.Option) Option {
	return func(g *Generator) {
		g.parser = append(g.parser, opts...)
	}
}

// WithResearcher enables web research before the outline is generated.
func WithResearcher(r Researcher) Option {
	return func(g *Generator) {
		g.research = r
	}
}

// WithClock overrides the clock used for the prompt date.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a Generator. filler may be nil to skip images.
func NewGenerator(llm Completer, filler *images.Filler, logger zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{
		llm:      llm,
		filler:   filler,
		logger:   logger.With().Str("component", "presentation").Logger(),
		interval: defaultUpdateInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Outline streams an outline for req. With a researcher configured the
// topic is searched first and the results join the prompt.
func (g *Generator) Outline(ctx context.Context, req Request) (*Outline, error) {
	if g.research != nil && req.Research == "" {
		if resp := g.research.Research(ctx, searchQuery(req.Topic)); resp != nil {
			req.Research = resp.Markdown()
		}
	}

	chunks, err := g.llm.Stream(ctx, client.Request{
		Model: req.Model,
		Messages: []client.Message{
			{Role: "system", Content: fillPrompt(outlineSystemPrompt, req, g.now())},
			{Role: "user", Content: outlineUserPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start outline generation: %w", err)
	}

	var content, reasoning strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			if errors.Is(chunk.Error, stream.ErrDecode) {
				g.logger.Warn().Err(chunk.Error).Msg("skipping stream event")
				continue
			}
			go drain(chunks)
			return nil, fmt.Errorf("outline generation failed: %w", chunk.Error)
		}
		content.WriteString(chunk.Content)
		reasoning.WriteString(chunk.Reasoning)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	th := markup.ExtractThinking(content.String())
	body := markup.StripCodeFence(th.Content)

	title, rest, ok := markup.ExtractTitle(body)
	if !ok || title == "" {
		title = fallbackTitle(req.Topic)
	}

	items := markup.SplitOutline(rest)
	if len(items) == 0 {
		return nil, ErrEmptyOutline
	}

	g.logger.Debug().Str("title", title).Int("topics", len(items)).Msg("outline ready")
	return &Outline{
		Title:    title,
		Items:    items,
		Thinking: strings.TrimSpace(th.Thinking + reasoning.String()),
	}, nil
}

func searchQuery(topic string) string {
	topic = strings.TrimSpace(topic)
	if i := strings.IndexByte(topic, '\n'); i >= 0 {
		topic = strings.TrimSpace(topic[:i])
	}
	if utf8.RuneCountInString(topic) > maxSearchQuery {
		topic = string([]rune(topic)[:maxSearchQuery])
	}
	return topic
}

func fallbackTitle(topic string) string {
	topic = strings.TrimSpace(topic)
	if i := strings.IndexByte(topic, '\n'); i >= 0 {
		topic = strings.TrimSpace(topic[:i])
	}
	if utf8.RuneCountInString(topic) > maxFallbackTitle {
		topic = strings.TrimSpace(string([]rune(topic)[:maxFallbackTitle])) + "..."
	}
	if topic == "" {
		return "Untitled Presentation"
	}
	return topic
}

// Slides streams the slides for outline, calling onUpdate with coalesced
// snapshots while they arrive and once more with the final slides. On a
// stream failure the returned deck holds the slides parsed so far.
func (g *Generator) Slides(ctx context.Context, req Request, outline *Outline, onUpdate func([]slides.Slide)) (*Deck, error) {
	chunks, err := g.llm.Stream(ctx, client.Request{
		Model: req.Model,
		Messages: []client.Message{
			{Role: "system", Content: fillPrompt(slidesSystemPrompt, req, g.now())},
			{Role: "user", Content: slidesUserPrompt(req, outline)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start slide generation: %w", err)
	}

	parser := slides.New(g.parser...)
	var filter markup.Filter
	var reasoning strings.Builder

	update := func() {
		snapshot := parser.AllSlides()
		g.ensureImages(ctx, snapshot)
		if onUpdate != nil {
			onUpdate(g.merge(snapshot))
		}
	}
	coalesce := rate.Sometimes{Interval: g.interval}
	if g.interval <= 0 {
		coalesce.Every = 1
	}

	var streamErr error
	for chunk := range chunks {
		if chunk.Error != nil {
			if errors.Is(chunk.Error, stream.ErrDecode) {
				g.logger.Warn().Err(chunk.Error).Msg("skipping stream event")
				continue
			}
			streamErr = chunk.Error
			go drain(chunks)
			break
		}
		reasoning.WriteString(chunk.Reasoning)
		if chunk.Content == "" {
			continue
		}
		if text := filter.Push(chunk.Content); text != "" {
			parser.ParseChunk(text)
			coalesce.Do(update)
		}
	}
	if streamErr == nil {
		streamErr = ctx.Err()
	}

	parser.ParseChunk(filter.Flush())
	parser.Finalize()

	deck := &Deck{
		Language: req.Language,
		Tone:     req.Tone,
		Slides:   parser.AllSlides(),
		Thinking: strings.TrimSpace(filter.Thinking() + reasoning.String()),
	}
	if outline != nil {
		deck.Title = outline.Title
		deck.Outline = outline.Items
	}
	if deck.Title == "" && len(deck.Slides) > 0 {
		deck.Title = deck.Slides[0].Title()
	}

	if streamErr != nil {
		g.logger.Warn().Err(streamErr).Int("slides", len(deck.Slides)).Msg("slide stream interrupted")
		return deck, fmt.Errorf("slide generation failed: %w", streamErr)
	}
	if len(deck.Slides) == 0 {
		return deck, ErrNoSlides
	}

	g.ensureImages(ctx, deck.Slides)
	if g.filler != nil {
		if err := g.filler.Wait(ctx); err != nil {
			return deck, fmt.Errorf("waiting for images: %w", err)
		}
		deck.Slides = g.filler.Merge(deck.Slides)
		for _, s := range deck.Slides {
			if st := g.filler.Status(s.ID); st.State == images.StateFailed {
				g.logger.Warn().Err(st.Err).Str("slide", s.ID).Msg("slide has no image")
			}
		}
	}
	deck.Thumbnail = thumbnail(deck.Slides)

	if onUpdate != nil {
		onUpdate(deck.Slides)
	}
	g.logger.Debug().Int("slides", len(deck.Slides)).Msg("deck ready")
	return deck, nil
}

// drain discards whatever the stream still delivers so its reader can exit.
func drain(chunks <-chan stream.Chunk) {
	for range chunks {
	}
}

func (g *Generator) ensureImages(ctx context.Context, snapshot []slides.Slide) {
	if g.filler == nil {
		return
	}
	for _, s := range snapshot {
		g.filler.Ensure(ctx, s.ID, s.RootImage)
	}
}

func (g *Generator) merge(snapshot []slides.Slide) []slides.Slide {
	if g.filler == nil {
		return snapshot
	}
	return g.filler.Merge(snapshot)
}

// thumbnail is the first root image URL of the deck.
func thumbnail(deck []slides.Slide) string {
	for _, s := range deck {
		if s.RootImage != nil && s.RootImage.URL != "" {
			return s.RootImage.URL
		}
	}
	return ""
}
