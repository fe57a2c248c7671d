package markup

import "strings"

type filterState int

const (
	filterStart filterState = iota
	filterThinking
	filterBody
)

// Filter strips a leading code fence line, a leading <think> block and a
// closing fence from a stream of model output. The concatenated output does
// not depend on how the input was chunked.
type Filter struct {
	state    filterState
	pending  string
	thinking strings.Builder
	fenced   bool
	thought  bool
}

// Push consumes a chunk and returns the text that can be passed on.
func (f *Filter) Push(chunk string) string {
	f.pending += chunk
	var out strings.Builder
	for {
		switch f.state {
		case filterStart:
			f.pending = strings.TrimLeft(f.pending, " \t\r\n")
			switch {
			case f.pending == "":
				return out.String()
			case !f.fenced && strings.HasPrefix(f.pending, fence):
				i := strings.IndexByte(f.pending, '\n')
				if i < 0 {
					return out.String()
				}
				f.pending = f.pending[i+1:]
				f.fenced = true
				continue
			case !f.thought && strings.HasPrefix(f.pending, thinkOpen):
				f.pending = f.pending[len(thinkOpen):]
				f.state = filterThinking
				continue
			case !f.fenced && strings.HasPrefix(fence, f.pending),
				!f.thought && strings.HasPrefix(thinkOpen, f.pending):
				return out.String()
			}
			f.state = filterBody

		case filterThinking:
			i := strings.Index(f.pending, thinkClose)
			if i < 0 {
				keep := partialSuffix(f.pending, thinkClose)
				f.thinking.WriteString(f.pending[:len(f.pending)-keep])
				f.pending = f.pending[len(f.pending)-keep:]
				return out.String()
			}
			f.thinking.WriteString(f.pending[:i])
			f.pending = f.pending[i+len(thinkClose):]
			f.thought = true
			f.state = filterStart

		case filterBody:
			keep := fenceSuffix(f.pending)
			out.WriteString(f.pending[:len(f.pending)-keep])
			f.pending = f.pending[len(f.pending)-keep:]
			return out.String()
		}
	}
}

// Flush ends the stream and returns whatever was held back, minus a closing
// fence.
func (f *Filter) Flush() string {
	rest := f.pending
	f.pending = ""
	switch f.state {
	case filterThinking:
		f.thinking.WriteString(rest)
		return ""
	case filterStart:
		if strings.HasPrefix(rest, fence) {
			return ""
		}
		return rest
	}
	if strings.TrimSpace(rest) == fence {
		return ""
	}
	return rest
}

// Thinking returns the reasoning text seen so far.
func (f *Filter) Thinking() string {
	return strings.TrimSpace(f.thinking.String())
}

// Reset prepares the filter for a new stream.
func (f *Filter) Reset() {
	*f = Filter{}
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of marker.
func partialSuffix(s, marker string) int {
	for n := min(len(s), len(marker)-1); n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}

// fenceSuffix returns the length of the trailing run of whitespace and
// backticks in s. A closing fence may still follow or complete it.
func fenceSuffix(s string) int {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if c != '`' && c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			break
		}
		i--
	}
	return len(s) - i
}
