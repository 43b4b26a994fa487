package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"nhlagent/internal/domain"
)

const decodeOp = "decode"

// DecodeFinal parses a final answer into a JSON object. Markdown code fences
// and prose around a single object are tolerated.
func DecodeFinal(content string) (map[string]any, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, domain.E(domain.CodeProtocolViolation, decodeOp, "model returned no content", domain.ErrEmptyModelResponse)
	}
	text = stripFences(text)

	var out map[string]any
	err := json.Unmarshal([]byte(text), &out)
	if err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start >= 0 && end > start {
			out = nil
			err = json.Unmarshal([]byte(text[start:end+1]), &out)
		}
	}
	if err != nil {
		return nil, domain.E(domain.CodeProtocolViolation, decodeOp,
			fmt.Sprintf("final answer is not a JSON object: %s", preview(text)), err)
	}
	if out == nil {
		return nil, domain.E(domain.CodeProtocolViolation, decodeOp, "final answer is JSON null", nil)
	}
	return out, nil
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = ""
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

func preview(text string) string {
	const limit = 120
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func newCallID() string {
	return "call_" + uuid.NewString()
}

func decodeArguments(op, name, raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, domain.E(domain.CodeProtocolViolation, op,
			fmt.Sprintf("arguments for %s are not a JSON object", name), err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
