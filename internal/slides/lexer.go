package slides

import (
	"strings"
	"unicode/utf8"
)

// maxTagLen bounds how far the lexer looks for the '>' of a candidate tag.
// A '<' with no '>' inside that window is plain text.
const maxTagLen = 1024

type tokenKind int

const (
	tokSkip tokenKind = iota
	tokText
	tokNewline
	tokTag
	tokHeading
	tokBullet
	tokNumbered
)

type token struct {
	kind  tokenKind
	text  string
	level int
	tag   tag
}

type tag struct {
	name        string
	closing     bool
	selfClosing bool
	attrs       map[string]string
	raw         string
}

// scan reads the next token from buf. It returns ok=false when buf ends in
// the middle of something that cannot be classified yet; with eof set every
// non-empty buf yields a token.
//
// lineStart reports whether buf begins a line and markers whether markdown
// line markers apply in the current parse context.
func scan(buf string, lineStart, markers, eof bool) (tok token, n int, ok bool) {
	if buf == "" {
		return token{}, 0, false
	}
	if lineStart && markers {
		if tok, n, ok, decided := scanLineStart(buf, eof); decided {
			return tok, n, ok
		}
	}
	switch buf[0] {
	case '\n':
		return token{kind: tokNewline}, 1, true
	case '<':
		return scanTag(buf, eof)
	}
	return scanText(buf, eof)
}

// scanLineStart recognizes indentation and markdown block markers. decided is
// false when buf does not start with either, so the caller falls back to the
// regular scan.
func scanLineStart(buf string, eof bool) (tok token, n int, ok, decided bool) {
	c := buf[0]
	switch {
	case isIndent(c):
		n = 1
		for n < len(buf) && isIndent(buf[n]) {
			n++
		}
		return token{kind: tokSkip}, n, true, true

	case c == '#':
		n = 1
		for n < len(buf) && buf[n] == '#' {
			n++
		}
		if n > 6 {
			return token{}, 0, false, false
		}
		if n == len(buf) {
			if !eof {
				return token{}, 0, false, true
			}
			return token{kind: tokHeading, level: n}, n, true, true
		}
		switch buf[n] {
		case ' ', '\t':
			return token{kind: tokHeading, level: n}, n + 1, true, true
		case '\n', '\r':
			return token{kind: tokHeading, level: n}, n, true, true
		}
		return token{}, 0, false, false

	case c == '-' || c == '*' || c == '+':
		if len(buf) == 1 {
			return token{}, 0, false, !eof
		}
		if buf[1] == ' ' || buf[1] == '\t' {
			return token{kind: tokBullet}, 2, true, true
		}
		return token{}, 0, false, false

	case isDigit(c):
		n = 1
		for n < len(buf) && n < 10 && isDigit(buf[n]) {
			n++
		}
		if n == len(buf) {
			return token{}, 0, false, !eof
		}
		if buf[n] != '.' && buf[n] != ')' {
			return token{}, 0, false, false
		}
		if n+1 == len(buf) {
			return token{}, 0, false, !eof
		}
		if buf[n+1] == ' ' || buf[n+1] == '\t' {
			return token{kind: tokNumbered}, n + 2, true, true
		}
		return token{}, 0, false, false
	}
	return token{}, 0, false, false
}

// scanText consumes text up to the next '<' or newline. Without eof a
// trailing partial UTF-8 sequence is held back.
func scanText(buf string, eof bool) (token, int, bool) {
	if i := strings.IndexAny(buf, "<\n"); i > 0 {
		return token{kind: tokText, text: buf[:i]}, i, true
	}
	n := len(buf)
	if !eof {
		n = completeRunes(buf)
	}
	if n == 0 {
		return token{}, 0, false
	}
	return token{kind: tokText, text: buf[:n]}, n, true
}

// scanTag consumes a tag starting at buf[0] == '<'.
func scanTag(buf string, eof bool) (token, int, bool) {
	if len(buf) == 1 {
		if !eof {
			return token{}, 0, false
		}
		return token{kind: tokText, text: "<"}, 1, true
	}
	c := buf[1]
	if c == '!' || c == '?' {
		return scanDirective(buf, eof)
	}
	if !isLetter(c) && c != '/' {
		return token{kind: tokText, text: "<"}, 1, true
	}

	window := buf
	if len(window) > maxTagLen {
		window = window[:maxTagLen]
	}
	end := tagEnd(window)
	switch {
	case end == notTag:
		return token{kind: tokText, text: "<"}, 1, true
	case end < 0 && len(buf) >= maxTagLen:
		return token{kind: tokText, text: "<"}, 1, true
	case end < 0 && !eof:
		return token{}, 0, false
	case end < 0:
		if truncatedTag(buf) {
			return token{kind: tokSkip}, len(buf), true
		}
		return token{kind: tokText, text: "<"}, 1, true
	}

	raw := buf[:end+1]
	t, ok := parseTag(raw)
	if !ok {
		return token{kind: tokText, text: raw}, len(raw), true
	}
	return token{kind: tokTag, tag: t}, len(raw), true
}

// scanDirective skips comments and processing instructions.
func scanDirective(buf string, eof bool) (token, int, bool) {
	window := buf
	if len(window) > maxTagLen {
		window = window[:maxTagLen]
	}
	if end := strings.IndexByte(window, '>'); end >= 0 {
		return token{kind: tokSkip}, end + 1, true
	}
	if len(buf) >= maxTagLen {
		return token{kind: tokText, text: "<"}, 1, true
	}
	if !eof {
		return token{}, 0, false
	}
	return token{kind: tokSkip}, len(buf), true
}

// notTag is returned by tagEnd when the candidate cannot be a tag.
const notTag = -2

// tagEnd returns the index of the '>' closing the tag at s[0], -1 when s ends
// first, or notTag when a newline or another '<' comes before the '>'. Quotes
// only delimit attribute values when they follow '='.
func tagEnd(s string) int {
	var quote, prev byte
	for i := 1; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
				prev = c
			}
			continue
		}
		switch {
		case c == '>':
			return i
		case c == '\n' || c == '<':
			return notTag
		case (c == '"' || c == '\'') && prev == '=':
			quote = c
		case isSpace(c):
			continue
		}
		prev = c
	}
	return -1
}

// truncatedTag reports whether an unterminated candidate at the end of input
// is a known tag cut off after its name or inside its attributes.
func truncatedTag(s string) bool {
	body := strings.TrimPrefix(s[1:], "/")
	n := nameLen(body)
	if !knownTag(strings.ToUpper(body[:n])) {
		return false
	}
	rest := body[n:]
	return strings.TrimSpace(rest) == "" || strings.Contains(rest, "=")
}

func nameLen(body string) int {
	i := 0
	for i < len(body) && (isLetter(body[i]) || (i > 0 && (isDigit(body[i]) || body[i] == '-' || body[i] == '_' || body[i] == ':'))) {
		i++
	}
	return i
}

func parseTag(raw string) (tag, bool) {
	t := tag{raw: raw}
	body := raw[1 : len(raw)-1]
	if strings.HasPrefix(body, "/") {
		t.closing = true
		body = body[1:]
	}
	if strings.HasSuffix(body, "/") {
		t.selfClosing = true
		body = body[:len(body)-1]
	}

	i := nameLen(body)
	if i == 0 {
		return t, false
	}
	if i < len(body) && !isSpace(body[i]) {
		return t, false
	}
	t.name = strings.ToUpper(body[:i])
	t.attrs = parseAttrs(body[i:])
	return t, true
}

// parseAttrs reads key, key=value, key="value" and key='value' pairs. Keys
// are lower-cased; the first occurrence of a key wins.
func parseAttrs(s string) map[string]string {
	var attrs map[string]string
	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return attrs
		}
		start := i
		for i < len(s) && !isSpace(s[i]) && s[i] != '=' {
			i++
		}
		key := strings.ToLower(s[start:i])
		for i < len(s) && isSpace(s[i]) {
			i++
		}

		var value string
		if i < len(s) && s[i] == '=' {
			i++
			for i < len(s) && isSpace(s[i]) {
				i++
			}
			if i < len(s) && (s[i] == '"' || s[i] == '\'') {
				quote := s[i]
				i++
				start := i
				for i < len(s) && s[i] != quote {
					i++
				}
				value = s[start:i]
				if i < len(s) {
					i++
				}
			} else {
				start := i
				for i < len(s) && !isSpace(s[i]) {
					i++
				}
				value = s[start:i]
			}
		}

		if key == "" {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		if _, seen := attrs[key]; !seen {
			attrs[key] = value
		}
	}
}

// completeRunes returns the length of the longest prefix of s that does not
// end in a partial UTF-8 sequence.
func completeRunes(s string) int {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if utf8.FullRuneInString(s[i:]) {
				return len(s)
			}
			return i
		}
	}
	return len(s)
}

func isIndent(c byte) bool { return c == ' ' || c == '\t' || c == '\r' }

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
