package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrDecode marks a stream event that could not be decoded. Processing
// continues after it.
var ErrDecode = errors.New("decode stream event")

// ChatResponse represents the structure of a chat completions stream event.
type ChatResponse struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			Reasoning        string `json:"reasoning"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Process reads server-sent events from body and emits their content as
// chunks. The body and the chunk channel are closed when it returns.
func (p *Parser) Process(body io.ReadCloser) {
	defer close(p.chunks)
	defer body.Close()
	done := p.ctx.Done()

	reader := bufio.NewReaderSize(body, 4096)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanLines)

	for {
		select {
		case <-done:
			p.send(Chunk{Error: p.ctx.Err()})
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					p.send(Chunk{Error: err})
				}
				return
			}

			line := scanner.Text()
			if line == "" || line == "data: [DONE]" || strings.HasPrefix(line, ":") {
				continue
			}

			data := strings.TrimPrefix(line, "data: ")
			var chunk ChatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				if !p.send(Chunk{Error: fmt.Errorf("%w: %w", ErrDecode, err)}) {
					return
				}
				continue
			}
			if chunk.Error != nil {
				p.send(Chunk{Error: fmt.Errorf("stream error: %s", chunk.Error.Message)})
				return
			}

			if len(chunk.Choices) > 0 {
				choice := chunk.Choices[0]
				content := choice.Delta.Content
				if content == "" {
					content = choice.Message.Content
				}
				reasoning := choice.Delta.Reasoning
				if reasoning == "" {
					reasoning = choice.Delta.ReasoningContent
				}
				if content != "" || reasoning != "" {
					if !p.send(Chunk{Content: content, Reasoning: reasoning}) {
						return
					}
				}
			}
		}
	}
}
