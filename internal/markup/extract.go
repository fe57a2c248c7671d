// Package markup prepares raw model output for the slide parser: it strips
// code fences and reasoning blocks and extracts the presentation title and
// outline items.
package markup

import (
	"regexp"
	"strings"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
	fence      = "```"
)

var (
	titlePattern   = regexp.MustCompile(`(?is)<TITLE>(.*?)</TITLE>`)
	outlinePattern = regexp.MustCompile(`(?m)^# `)
)

// Thinking is the result of ExtractThinking.
type Thinking struct {
	Thinking    string
	Content     string
	HasThinking bool
}

// StripCodeFence removes a leading ``` fence line (with or without a
// language tag) and a trailing ``` fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, fence) {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = strings.TrimLeft(s[i+1:], " \t\r\n")
		} else {
			s = ""
		}
	}
	if strings.HasSuffix(s, fence) {
		s = strings.TrimRight(s[:len(s)-len(fence)], " \t\r\n")
	}
	return s
}

// ExtractThinking splits the first <think>...</think> block from s. An
// unclosed block takes the rest of s as thinking.
func ExtractThinking(s string) Thinking {
	start := strings.Index(s, thinkOpen)
	if start < 0 {
		return Thinking{Content: s}
	}
	rest := s[start+len(thinkOpen):]
	end := strings.Index(rest, thinkClose)
	if end < 0 {
		return Thinking{
			Thinking:    strings.TrimSpace(rest),
			Content:     strings.TrimSpace(s[:start]),
			HasThinking: true,
		}
	}
	return Thinking{
		Thinking:    strings.TrimSpace(rest[:end]),
		Content:     strings.TrimSpace(s[:start] + rest[end+len(thinkClose):]),
		HasThinking: true,
	}
}

// ExtractTitle returns the trimmed text of the first <TITLE> element and s
// without it.
func ExtractTitle(s string) (title, rest string, ok bool) {
	loc := titlePattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return "", s, false
	}
	title = strings.TrimSpace(s[loc[2]:loc[3]])
	rest = strings.TrimSpace(s[:loc[0]] + s[loc[1]:])
	return title, rest, title != ""
}

// SplitOutline splits a markdown outline into one item per level-1 heading.
// Text before the first heading is kept as its own item.
func SplitOutline(s string) []string {
	var items []string
	locs := outlinePattern.FindAllStringIndex(s, -1)
	prev := 0
	for _, loc := range locs {
		if item := strings.TrimSpace(s[prev:loc[0]]); item != "" {
			items = append(items, item)
		}
		prev = loc[0]
	}
	if item := strings.TrimSpace(s[prev:]); item != "" {
		items = append(items, item)
	}
	return items
}
