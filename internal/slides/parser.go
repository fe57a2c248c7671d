// Package slides incrementally parses model-generated slide markup into
// structured slides while the markup is still streaming in.
//
// The accepted input mixes an XML-like dialect (<SECTION>, <H1>..<H6>, <P>,
// <LI>, layout containers such as <BULLETS>, and <IMG query="..."/>) with
// markdown blocks (# headings, - bullets, 1. numbered items, paragraphs).
// Parsing is tolerant: malformed or truncated input degrades to partial or
// plain-text content and never fails.
package slides

import (
	"html"
	"slices"
	"strings"

	"github.com/google/uuid"
)

type frameKind int

const (
	frameSlide frameKind = iota
	frameContainer
	frameBlock
)

// closeRule says what ends a block frame.
type closeRule int

const (
	closeOnTag closeRule = iota
	closeOnNewline
	closeOnBlankLine
)

// frame is an open element on the parser stack.
type frame struct {
	kind     frameKind
	tag      string
	rule     closeRule
	list     string
	attrs    map[string]string
	text     strings.Builder
	children []Node

	id        string
	alignment string
	width     string
	layout    string
	image     *RootImage
}

// Parser is a streaming slide parser. It is not safe for concurrent use.
type Parser struct {
	newID func() string

	buf       string
	lineStart bool
	stack     []*frame
	slides    []Slide
}

// Option configures a Parser.
type Option func(*Parser)

// WithIDGenerator overrides how slide ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(p *Parser) {
		p.newID = fn
	}
}

// New returns an empty parser.
func New(opts ...Option) *Parser {
	p := &Parser{newID: uuid.NewString, lineStart: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses a complete document.
func Parse(doc string, opts ...Option) []Slide {
	p := New(opts...)
	p.ParseChunk(doc)
	p.Finalize()
	return p.AllSlides()
}

// Reset discards all state. Slides returned earlier stay valid but belong to
// the previous session.
func (p *Parser) Reset() {
	p.buf = ""
	p.lineStart = true
	p.stack = nil
	p.slides = nil
}

// ParseChunk appends text to the input and parses as far as the input can be
// classified. Text that ends mid-tag or mid-marker stays buffered.
func (p *Parser) ParseChunk(text string) {
	if text == "" {
		return
	}
	p.buf += text
	p.advance(false)
}

// Finalize marks the end of input: buffered text is resolved and every open
// element is closed. Calling it again has no effect.
func (p *Parser) Finalize() {
	p.advance(true)
	p.closeSlide()
	p.lineStart = true
}

// Completed returns the number of slides that have been closed.
func (p *Parser) Completed() int {
	return len(p.slides)
}

// AllSlides returns a copy of the closed slides followed by the slide still
// being parsed, if any.
func (p *Parser) AllSlides() []Slide {
	out := make([]Slide, 0, len(p.slides)+1)
	for _, s := range p.slides {
		out = append(out, s.Clone())
	}
	if s, ok := p.openSlide(); ok {
		out = append(out, s.Clone())
	}
	return out
}

func (p *Parser) advance(eof bool) {
	for p.buf != "" {
		tok, n, ok := scan(p.buf, p.lineStart, p.markersAllowed(), eof)
		if !ok {
			return
		}
		p.buf = p.buf[n:]
		p.apply(tok)
	}
}

func (p *Parser) apply(tok token) {
	switch tok.kind {
	case tokSkip:
		return
	case tokNewline:
		p.newline()
		return
	}

	p.lineStart = false
	switch tok.kind {
	case tokText:
		p.text(tok.text)
	case tokHeading:
		p.heading(tok.level)
	case tokBullet:
		p.item(TypeBulletList)
	case tokNumbered:
		p.item(TypeNumberedList)
	case tokTag:
		p.tag(tok.tag)
	}
}

func (p *Parser) top() *frame {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

// markersAllowed reports whether markdown markers apply: they are literal
// text inside a block opened by a tag.
func (p *Parser) markersAllowed() bool {
	top := p.top()
	return top == nil || top.kind != frameBlock || top.rule != closeOnTag
}

func (p *Parser) newline() {
	blank := p.lineStart
	p.lineStart = true

	top := p.top()
	if top == nil || top.kind != frameBlock {
		return
	}
	switch top.rule {
	case closeOnNewline:
		p.pop()
	case closeOnBlankLine:
		if blank {
			p.pop()
			return
		}
		top.text.WriteByte('\n')
	case closeOnTag:
		top.text.WriteByte('\n')
	}
}

func (p *Parser) text(s string) {
	if top := p.top(); top != nil && top.kind == frameBlock {
		top.text.WriteString(s)
		return
	}
	if strings.TrimSpace(s) == "" {
		return
	}
	p.ensureSlide()
	f := &frame{kind: frameBlock, tag: TypeParagraph, rule: closeOnBlankLine}
	f.text.WriteString(s)
	p.push(f)
}

// heading opens a markdown heading. A level-1 heading starts a new slide
// unless the current slide is still empty.
func (p *Parser) heading(level int) {
	p.closeMarkdown()
	if level == 1 && len(p.stack) > 0 && !p.slideEmpty() {
		p.closeSlide()
	}
	p.ensureSlide()
	p.push(&frame{kind: frameBlock, tag: HeadingType(level), rule: closeOnNewline})
}

func (p *Parser) item(list string) {
	p.closeMarkdown()
	p.ensureSlide()
	p.push(&frame{kind: frameBlock, tag: TypeListItem, rule: closeOnNewline, list: list})
}

func (p *Parser) tag(t tag) {
	name := t.name
	lower := strings.ToLower(name)
	switch {
	case slideTags[name]:
		p.closeSlide()
		if !t.closing {
			p.stack = append(p.stack, p.newSlide(t.attrs))
		}

	case ignoredTags[name] || inlineTags[name]:

	case blockTags[name] || containerTags[name]:
		if t.closing {
			p.closeTo(lower)
			return
		}
		p.closeLeaf()
		p.ensureSlide()
		kind := frameContainer
		if blockTags[name] {
			kind = frameBlock
		}
		p.push(&frame{kind: kind, tag: lower, rule: closeOnTag, attrs: t.attrs})
		if t.selfClosing {
			p.pop()
		}

	case imageTags[name]:
		if !t.closing {
			p.image(t.attrs)
		}

	case name == "BR":
		if top := p.top(); top != nil && top.kind == frameBlock {
			top.text.WriteByte('\n')
		}

	default:
		p.text(t.raw)
	}
}

// image attaches the first image directive of a slide as its root image;
// later ones become img nodes.
func (p *Parser) image(attrs map[string]string) {
	query := strings.TrimSpace(attrs["query"])
	src := strings.TrimSpace(attrs["src"])
	if query == "" && src == "" {
		return
	}
	p.ensureSlide()
	slide := p.stack[0]
	layout := attrs["layouttype"]
	if layout == "" {
		layout = slide.layout
	}

	if query != "" && slide.image == nil {
		slide.image = &RootImage{Query: html.UnescapeString(query), LayoutType: layout}
		return
	}
	p.closeLeaf()
	top := p.top()
	node := Node{Type: TypeImage, Attrs: cloneAttrs(attrs)}
	for k, v := range node.Attrs {
		node.Attrs[k] = html.UnescapeString(v)
	}
	top.children = addChild(top.children, node, "")
}

func (p *Parser) newSlide(attrs map[string]string) *frame {
	f := &frame{kind: frameSlide, id: p.newID()}
	if attrs != nil {
		f.alignment = attrs["alignment"]
		if f.alignment == "" {
			f.alignment = attrs["align"]
		}
		f.width = attrs["width"]
		f.layout = attrs["layout"]
	}
	return f
}

func (p *Parser) ensureSlide() {
	if len(p.stack) == 0 {
		p.stack = append(p.stack, p.newSlide(nil))
	}
}

func (p *Parser) slideEmpty() bool {
	s := p.stack[0]
	return len(p.stack) == 1 && len(s.children) == 0 && s.image == nil
}

func (p *Parser) push(f *frame) {
	p.stack = append(p.stack, f)
}

// pop closes the top frame and attaches its node to the parent.
func (p *Parser) pop() {
	n := len(p.stack) - 1
	f := p.stack[n]
	if f.kind == frameSlide {
		p.closeSlide()
		return
	}
	p.stack = p.stack[:n]
	if node, ok := f.node(nil, ""); ok {
		parent := p.stack[n-1]
		parent.children = addChild(parent.children, node, f.list)
	}
}

// closeTo closes frames down to and including the nearest open frame with
// the given tag. Without a match nothing changes.
func (p *Parser) closeTo(tag string) {
	for i := len(p.stack) - 1; i > 0; i-- {
		if p.stack[i].tag != tag {
			continue
		}
		for len(p.stack) > i {
			p.pop()
		}
		return
	}
}

func (p *Parser) closeLeaf() {
	if top := p.top(); top != nil && top.kind == frameBlock {
		p.pop()
	}
}

func (p *Parser) closeMarkdown() {
	for top := p.top(); top != nil && top.kind == frameBlock && top.rule != closeOnTag; top = p.top() {
		p.pop()
	}
}

func (p *Parser) closeSlide() {
	if len(p.stack) == 0 {
		return
	}
	for len(p.stack) > 1 {
		p.pop()
	}
	p.slides = append(p.slides, p.stack[0].slide(nil, ""))
	p.stack = p.stack[:0]
}

// openSlide materializes the slide being parsed as if every open frame were
// closed now, without changing parser state.
func (p *Parser) openSlide() (Slide, bool) {
	if len(p.stack) == 0 {
		return Slide{}, false
	}
	var pending *Node
	var list string
	for i := len(p.stack) - 1; i > 0; i-- {
		f := p.stack[i]
		node, ok := f.node(pending, list)
		pending, list = nil, ""
		if ok {
			pending, list = &node, f.list
		}
	}
	return p.stack[0].slide(pending, list), true
}

func (f *frame) node(extra *Node, list string) (Node, bool) {
	if f.kind == frameBlock {
		text := cleanText(f.text.String())
		if f.tag == TypeParagraph && text == "" {
			return Node{}, false
		}
		return Node{Type: f.tag, Text: text, Attrs: f.attrs}, true
	}
	children := f.children
	if extra != nil {
		children = addChild(slices.Clone(children), *extra, list)
	}
	if len(children) == 0 {
		return Node{}, false
	}
	return Node{Type: f.tag, Attrs: f.attrs, Children: children}, true
}

func (f *frame) slide(extra *Node, list string) Slide {
	content := f.children
	if extra != nil {
		content = addChild(slices.Clone(content), *extra, list)
	}
	if content == nil {
		content = []Node{}
	}
	s := Slide{
		ID:        f.id,
		Content:   content,
		Alignment: f.alignment,
		Width:     f.width,
		Layout:    f.layout,
	}
	if f.image != nil {
		img := *f.image
		s.RootImage = &img
	}
	return s
}

// addChild appends n to children. Markdown list items are grouped into a
// list node of the given type, extending the previous one when adjacent.
func addChild(children []Node, n Node, list string) []Node {
	if list == "" {
		return append(children, n)
	}
	if last := len(children) - 1; last >= 0 && children[last].Type == list {
		group := children[last]
		group.Children = append(slices.Clip(group.Children), n)
		children[last] = group
		return children
	}
	return append(children, Node{Type: list, Children: []Node{n}})
}

func cleanText(s string) string {
	return html.UnescapeString(strings.TrimSpace(s))
}

// knownTag reports whether name is part of the slide markup dialect.
func knownTag(name string) bool {
	return slideTags[name] || blockTags[name] || containerTags[name] ||
		imageTags[name] || ignoredTags[name] || inlineTags[name] || name == "BR"
}

var (
	slideTags = map[string]bool{"SECTION": true, "SLIDE": true}

	blockTags = map[string]bool{
		"H1": true, "H2": true, "H3": true, "H4": true, "H5": true, "H6": true,
		"P": true, "LI": true,
	}

	containerTags = map[string]bool{
		"BULLETS": true, "DIV": true, "COLUMNS": true, "ICONS": true, "ICON": true,
		"CYCLE": true, "ARROWS": true, "TIMELINE": true, "PYRAMID": true,
		"STAIRCASE": true, "BOXES": true, "COMPARE": true, "UL": true, "OL": true,
		"BLOCKQUOTE": true,
	}

	imageTags = map[string]bool{"IMG": true, "IMAGE": true}

	ignoredTags = map[string]bool{"PRESENTATION": true}

	inlineTags = map[string]bool{
		"B": true, "I": true, "EM": true, "STRONG": true, "U": true,
		"CODE": true, "SPAN": true, "A": true, "MARK": true,
	}
)
