package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"nhlagent/internal/domain"
)

const (
	anthropicOp             = "llm.anthropic"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	maxAnthropicBody        = 8 << 20
)

// AnthropicProvider calls the Messages API directly.
type AnthropicProvider struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
}

func newAnthropic(cfg Config, apiKey string) *AnthropicProvider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = domain.DefaultAnthropicMaxTokens
	}
	return &AnthropicProvider{
		client:    client,
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func (p *AnthropicProvider) Name() string {
	return string(KindAnthropic)
}

type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) Generate(ctx context.Context, history []domain.Message, tools []domain.ToolDefinition) (domain.ModelTurn, error) {
	request, err := p.buildRequest(history, tools)
	if err != nil {
		return domain.ModelTurn{}, err
	}
	body, err := json.Marshal(request)
	if err != nil {
		return domain.ModelTurn{}, domain.E(domain.CodeProtocolViolation, anthropicOp, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return domain.ModelTurn{}, domain.E(domain.CodeInvalidConfig, anthropicOp, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return domain.ModelTurn{}, ctxErr
		}
		return domain.ModelTurn{}, domain.Retryable(domain.CodeTransportFailure, anthropicOp, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAnthropicBody))
	if err != nil {
		return domain.ModelTurn{}, domain.Retryable(domain.CodeTransportFailure, anthropicOp, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("messages API returned status %d: %s", resp.StatusCode, preview(string(data)))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return domain.ModelTurn{}, domain.Retryable(domain.CodeTransportFailure, anthropicOp, msg, nil)
		}
		return domain.ModelTurn{}, domain.E(domain.CodeTransportFailure, anthropicOp, msg, nil)
	}

	var decoded anthropicResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return domain.ModelTurn{}, domain.E(domain.CodeProtocolViolation, anthropicOp, "decode response", err)
	}
	if decoded.Error != nil {
		return domain.ModelTurn{}, domain.E(domain.CodeProtocolViolation, anthropicOp, decoded.Error.Message, nil)
	}
	return anthropicTurn(decoded)
}

func anthropicTurn(resp anthropicResponse) (domain.ModelTurn, error) {
	usage := domain.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	var text strings.Builder
	var calls []anthropicBlock
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			calls = append(calls, block)
		}
	}
	switch len(calls) {
	case 0:
		return finalTurn(anthropicOp, text.String(), usage)
	case 1:
		args, err := decodeArguments(anthropicOp, calls[0].Name, string(calls[0].Input))
		if err != nil {
			return domain.ModelTurn{}, err
		}
		return toolCallTurn(calls[0].ID, calls[0].Name, args, usage), nil
	default:
		names := make([]string, 0, len(calls))
		for _, call := range calls {
			names = append(names, call.Name)
		}
		return domain.ModelTurn{}, multipleToolCalls(anthropicOp, names)
	}
}

// buildRequest splits out system turns and folds tool results into user
// turns. Adjacent turns of the same role are merged since the API requires
// alternating roles.
func (p *AnthropicProvider) buildRequest(history []domain.Message, tools []domain.ToolDefinition) (anthropicRequest, error) {
	request := anthropicRequest{Model: p.model, MaxTokens: p.maxTokens}
	var system []string
	appendBlock := func(role string, block anthropicBlock) {
		if n := len(request.Messages); n > 0 && request.Messages[n-1].Role == role {
			request.Messages[n-1].Content = append(request.Messages[n-1].Content, block)
			return
		}
		request.Messages = append(request.Messages, anthropicMessage{Role: role, Content: []anthropicBlock{block}})
	}

	for _, msg := range history {
		switch msg.Role {
		case domain.RoleSystem:
			system = append(system, msg.Content)
		case domain.RoleUser:
			appendBlock("user", anthropicBlock{Type: "text", Text: msg.Content})
		case domain.RoleAssistant:
			if msg.Content != "" {
				appendBlock("assistant", anthropicBlock{Type: "text", Text: msg.Content})
			}
			if msg.ToolCall != nil {
				args := msg.ToolCall.Arguments
				if args == nil {
					args = map[string]any{}
				}
				input, err := json.Marshal(args)
				if err != nil {
					return request, domain.E(domain.CodeProtocolViolation, anthropicOp, "encode tool arguments", err)
				}
				appendBlock("assistant", anthropicBlock{
					Type:  "tool_use",
					ID:    msg.ToolCall.ID,
					Name:  msg.ToolCall.Name,
					Input: input,
				})
			}
		case domain.RoleTool:
			appendBlock("user", anthropicBlock{
				Type:      "tool_result",
				ToolUseID: msg.ToolCallID,
				Content:   msg.Content,
				IsError:   msg.IsError,
			})
		default:
			return request, domain.E(domain.CodeProtocolViolation, anthropicOp, fmt.Sprintf("unknown message role %q", msg.Role), nil)
		}
	}
	request.System = strings.Join(system, "\n\n")

	for _, tool := range tools {
		schema, err := rawSchema(tool.Parameters)
		if err != nil {
			return request, domain.E(domain.CodeProtocolViolation, anthropicOp, fmt.Sprintf("encode schema for %s", tool.Name), err)
		}
		request.Tools = append(request.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return request, nil
}
