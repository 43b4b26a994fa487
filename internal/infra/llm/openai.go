package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"nhlagent/internal/domain"
)

const openAIOp = "llm.openai"

// OpenAIProvider drives an eino tool-calling chat model.
type OpenAIProvider struct {
	model model.ToolCallingChatModel
}

func newOpenAI(ctx context.Context, cfg Config, apiKey string) (*OpenAIProvider, error) {
	modelCfg := &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  apiKey,
		Timeout: cfg.Timeout,
	}
	if cfg.BaseURL != "" {
		modelCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		modelCfg.HTTPClient = cfg.HTTPClient
	}
	chat, err := openai.NewChatModel(ctx, modelCfg)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidConfig, openAIOp, "create chat model", err)
	}
	return NewOpenAIProvider(chat), nil
}

// NewOpenAIProvider wraps an existing chat model.
func NewOpenAIProvider(chat model.ToolCallingChatModel) *OpenAIProvider {
	return &OpenAIProvider{model: chat}
}

func (p *OpenAIProvider) Name() string {
	return string(KindOpenAI)
}

func (p *OpenAIProvider) Generate(ctx context.Context, history []domain.Message, tools []domain.ToolDefinition) (domain.ModelTurn, error) {
	chat := p.model
	if len(tools) > 0 {
		bound, err := p.model.WithTools(einoTools(tools))
		if err != nil {
			return domain.ModelTurn{}, domain.E(domain.CodeProtocolViolation, openAIOp, "bind tools", err)
		}
		chat = bound
	}
	messages, err := einoMessages(history)
	if err != nil {
		return domain.ModelTurn{}, err
	}

	response, err := chat.Generate(ctx, messages)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ModelTurn{}, ctxErr
		}
		return domain.ModelTurn{}, domain.Retryable(domain.CodeTransportFailure, openAIOp, "chat completion failed", err)
	}
	if response == nil {
		return domain.ModelTurn{}, domain.E(domain.CodeProtocolViolation, openAIOp, "chat model returned no message", domain.ErrEmptyModelResponse)
	}

	usage := einoUsage(response)
	switch len(response.ToolCalls) {
	case 0:
		return finalTurn(openAIOp, response.Content, usage)
	case 1:
		call := response.ToolCalls[0]
		args, err := decodeArguments(openAIOp, call.Function.Name, call.Function.Arguments)
		if err != nil {
			return domain.ModelTurn{}, err
		}
		return toolCallTurn(call.ID, call.Function.Name, args, usage), nil
	default:
		names := make([]string, 0, len(response.ToolCalls))
		for _, call := range response.ToolCalls {
			names = append(names, call.Function.Name)
		}
		return domain.ModelTurn{}, multipleToolCalls(openAIOp, names)
	}
}

func einoMessages(history []domain.Message) ([]*schema.Message, error) {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case domain.RoleSystem:
			messages = append(messages, schema.SystemMessage(msg.Content))
		case domain.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case domain.RoleAssistant:
			if msg.ToolCall == nil {
				messages = append(messages, schema.AssistantMessage(msg.Content, nil))
				continue
			}
			args, err := json.Marshal(msg.ToolCall.Arguments)
			if err != nil {
				return nil, domain.E(domain.CodeProtocolViolation, openAIOp, "encode tool arguments", err)
			}
			messages = append(messages, schema.AssistantMessage(msg.Content, []schema.ToolCall{{
				ID:   msg.ToolCall.ID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      msg.ToolCall.Name,
					Arguments: string(args),
				},
			}}))
		case domain.RoleTool:
			tool := schema.ToolMessage(msg.Content, msg.ToolCallID)
			tool.ToolName = msg.Name
			messages = append(messages, tool)
		default:
			return nil, domain.E(domain.CodeProtocolViolation, openAIOp, fmt.Sprintf("unknown message role %q", msg.Role), nil)
		}
	}
	return messages, nil
}

func einoUsage(response *schema.Message) domain.Usage {
	if response.ResponseMeta == nil || response.ResponseMeta.Usage == nil {
		return domain.Usage{}
	}
	usage := response.ResponseMeta.Usage
	return domain.Usage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
}
