package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"nhlagent/internal/domain"
)

const geminiOp = "llm.gemini"

// contentGenerator is the slice of genai.Models the adapter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider calls the Gemini API through the genai SDK.
type GeminiProvider struct {
	models    contentGenerator
	model     string
	maxTokens int
}

func newGemini(ctx context.Context, cfg Config, apiKey string) (*GeminiProvider, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidConfig, geminiOp, "create genai client", err)
	}
	return &GeminiProvider{models: client.Models, model: cfg.Model, maxTokens: cfg.MaxTokens}, nil
}

func (p *GeminiProvider) Name() string {
	return string(KindGemini)
}

func (p *GeminiProvider) Generate(ctx context.Context, history []domain.Message, tools []domain.ToolDefinition) (domain.ModelTurn, error) {
	contents, system, err := geminiContents(history)
	if err != nil {
		return domain.ModelTurn{}, err
	}
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if p.maxTokens > 0 {
		config.MaxOutputTokens = int32(p.maxTokens)
	}
	if len(tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, tool := range tools {
			declaration := &genai.FunctionDeclaration{Name: tool.Name, Description: tool.Description}
			if tool.Parameters != nil {
				declaration.ParametersJsonSchema = tool.Parameters
			}
			declarations = append(declarations, declaration)
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	resp, err := p.models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ModelTurn{}, ctxErr
		}
		return domain.ModelTurn{}, domain.Retryable(domain.CodeTransportFailure, geminiOp, "generate content failed", err)
	}
	return geminiTurn(resp)
}

func geminiTurn(resp *genai.GenerateContentResponse) (domain.ModelTurn, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return domain.ModelTurn{}, domain.E(domain.CodeProtocolViolation, geminiOp, "response has no candidates", domain.ErrEmptyModelResponse)
	}
	var usage domain.Usage
	if meta := resp.UsageMetadata; meta != nil {
		usage = domain.Usage{
			PromptTokens:     int(meta.PromptTokenCount),
			CompletionTokens: int(meta.CandidatesTokenCount),
			TotalTokens:      int(meta.TotalTokenCount),
		}
	}

	var text strings.Builder
	var calls []*genai.FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
			continue
		}
		if !part.Thought {
			text.WriteString(part.Text)
		}
	}
	switch len(calls) {
	case 0:
		return finalTurn(geminiOp, text.String(), usage)
	case 1:
		return toolCallTurn(calls[0].ID, calls[0].Name, calls[0].Args, usage), nil
	default:
		names := make([]string, 0, len(calls))
		for _, call := range calls {
			names = append(names, call.Name)
		}
		return domain.ModelTurn{}, multipleToolCalls(geminiOp, names)
	}
}

func geminiContents(history []domain.Message) ([]*genai.Content, string, error) {
	var system []string
	var contents []*genai.Content
	appendPart := func(role genai.Role, part *genai.Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == string(role) {
			contents[n-1].Parts = append(contents[n-1].Parts, part)
			return
		}
		contents = append(contents, &genai.Content{Role: string(role), Parts: []*genai.Part{part}})
	}

	for _, msg := range history {
		switch msg.Role {
		case domain.RoleSystem:
			system = append(system, msg.Content)
		case domain.RoleUser:
			appendPart(genai.RoleUser, &genai.Part{Text: msg.Content})
		case domain.RoleAssistant:
			if msg.Content != "" {
				appendPart(genai.RoleModel, &genai.Part{Text: msg.Content})
			}
			if msg.ToolCall != nil {
				appendPart(genai.RoleModel, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   msg.ToolCall.ID,
					Name: msg.ToolCall.Name,
					Args: msg.ToolCall.Arguments,
				}})
			}
		case domain.RoleTool:
			appendPart(genai.RoleUser, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Name:     msg.Name,
				Response: functionResponse(msg.Content),
			}})
		default:
			return nil, "", domain.E(domain.CodeProtocolViolation, geminiOp, fmt.Sprintf("unknown message role %q", msg.Role), nil)
		}
	}
	return contents, strings.Join(system, "\n\n"), nil
}

// functionResponse wraps tool output in the object shape FunctionResponse
// requires. Non-object payloads go under "output".
func functionResponse(content string) map[string]any {
	var decoded any
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return map[string]any{"output": content}
	}
	if object, ok := decoded.(map[string]any); ok {
		return object
	}
	return map[string]any{"output": decoded}
}
