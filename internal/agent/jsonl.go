package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/ryanhaqueIT/vibedeck/schema"
)

type jsonlStream struct {
	reader *bufio.Reader
}

type jsonlDecodeError struct {
	line []byte
	err  error
}

func (e *jsonlDecodeError) Error() string {
	if e == nil || e.err == nil {
		return "jsonl decode error"
	}
	return e.err.Error()
}

func (e *jsonlDecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func (e *jsonlDecodeError) Line() []byte {
	if e == nil {
		return nil
	}
	return e.line
}

func newJSONLStream(r io.Reader) *jsonlStream {
	return &jsonlStream{reader: bufio.NewReader(r)}
}

func (s *jsonlStream) Next(ctx context.Context) (schema.AgentEvent, error) {
	for {
		if ctx.Err() != nil {
			return schema.AgentEvent{}, ctx.Err()
		}
		line, err := s.reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return schema.AgentEvent{}, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return schema.AgentEvent{}, err
			}
			continue
		}
		event, decodeErr := decodeEvent(line)
		if decodeErr != nil {
			return schema.AgentEvent{}, &jsonlDecodeError{line: append([]byte(nil), line...), err: decodeErr}
		}
		return event, nil
	}
}

// wireEvent is the agent's native line shape.
type wireEvent struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id"`
	Result    string `json:"result"`
	Error     string `json:"error"`
	IsError   bool   `json:"is_error"`
	Message   *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// decodeEvent normalizes one native line. Unknown line types decode to an
// empty-text output event and are dropped upstream.
func decodeEvent(line []byte) (schema.AgentEvent, error) {
	var wire wireEvent
	if err := json.Unmarshal(line, &wire); err != nil {
		return schema.AgentEvent{}, err
	}
	event := schema.AgentEvent{Raw: append([]byte(nil), line...)}
	switch wire.Type {
	case "system":
		event.Type = schema.AgentEventInit
		event.AgentSession = schema.AgentSessionID(wire.SessionID)
	case "assistant":
		event.Type = schema.AgentEventOutput
		event.Text = messageText(wire)
	case "result":
		event.Type = schema.AgentEventResult
		if wire.IsError {
			event.Type = schema.AgentEventError
			event.Message = wire.Result
		} else {
			event.Text = wire.Result
		}
		if wire.SessionID != "" {
			event.AgentSession = schema.AgentSessionID(wire.SessionID)
		}
		if wire.Usage != nil {
			event.Usage = &schema.TurnUsage{
				InputTokens:  wire.Usage.InputTokens,
				OutputTokens: wire.Usage.OutputTokens,
			}
		}
	case "error":
		event.Type = schema.AgentEventError
		event.Message = wire.Error
		if event.Message == "" {
			event.Message = wire.Result
		}
	default:
		event.Type = schema.AgentEventOutput
	}
	return event, nil
}

func messageText(wire wireEvent) string {
	if wire.Message == nil {
		return ""
	}
	var parts []string
	for _, block := range wire.Message.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
