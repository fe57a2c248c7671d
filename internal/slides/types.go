package slides

import (
	"maps"
	"strconv"
)

// Node types produced by the parser. Containers opened by a tag use the
// lower-cased tag name as their type.
const (
	TypeParagraph    = "p"
	TypeListItem     = "li"
	TypeBulletList   = "ul"
	TypeNumberedList = "ol"
	TypeImage        = "img"
)

// HeadingType returns the node type of a heading at the given level.
func HeadingType(level int) string {
	return "h" + strconv.Itoa(level)
}

// Node is a block of slide content: either a leaf carrying text or a
// container carrying children.
type Node struct {
	Type     string            `json:"type" yaml:"type"`
	Text     string            `json:"text,omitempty" yaml:"text,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty" yaml:"children,omitempty"`
}

// RootImage is the image request attached to a slide. URL stays empty until
// an image generator fills it in.
type RootImage struct {
	Query      string `json:"query" yaml:"query"`
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
	LayoutType string `json:"layoutType,omitempty" yaml:"layoutType,omitempty"`
}

// Slide is one presentation slide.
type Slide struct {
	ID        string     `json:"id" yaml:"id"`
	Content   []Node     `json:"content" yaml:"content"`
	RootImage *RootImage `json:"rootImage,omitempty" yaml:"rootImage,omitempty"`
	Alignment string     `json:"alignment,omitempty" yaml:"alignment,omitempty"`
	Width     string     `json:"width,omitempty" yaml:"width,omitempty"`
	Layout    string     `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// Title returns the text of the first heading on the slide, searching
// nested containers, or an empty string.
func (s Slide) Title() string {
	if n, ok := firstHeading(s.Content); ok {
		return n.Text
	}
	return ""
}

func firstHeading(nodes []Node) (Node, bool) {
	for _, n := range nodes {
		if len(n.Type) == 2 && n.Type[0] == 'h' && n.Type[1] >= '1' && n.Type[1] <= '6' {
			return n, true
		}
		if h, ok := firstHeading(n.Children); ok {
			return h, true
		}
	}
	return Node{}, false
}

// Clone returns a deep copy of the slide.
func (s Slide) Clone() Slide {
	out := s
	out.Content = cloneNodes(s.Content)
	if out.Content == nil {
		out.Content = []Node{}
	}
	if s.RootImage != nil {
		img := *s.RootImage
		out.RootImage = &img
	}
	return out
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	out.Attrs = cloneAttrs(n.Attrs)
	out.Children = cloneNodes(n.Children)
	return out
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func cloneAttrs(attrs map[string]string) map[string]string {
	return maps.Clone(attrs)
}
