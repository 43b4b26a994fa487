package llm

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/google/jsonschema-go/jsonschema"

	"nhlagent/internal/domain"
)

// einoTools converts tool definitions into eino tool infos. Schemas are
// translated property by property since eino models parameters as a tree of
// ParameterInfo.
func einoTools(tools []domain.ToolDefinition) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, tool := range tools {
		info := &schema.ToolInfo{Name: tool.Name, Desc: tool.Description}
		if params := objectParams(tool.Parameters); len(params) > 0 {
			info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
		}
		infos = append(infos, info)
	}
	return infos
}

func objectParams(s *jsonschema.Schema) map[string]*schema.ParameterInfo {
	if s == nil || len(s.Properties) == 0 {
		return nil
	}
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}
	params := make(map[string]*schema.ParameterInfo, len(s.Properties))
	for name, prop := range s.Properties {
		info := parameterInfo(prop)
		info.Required = required[name]
		params[name] = info
	}
	return params
}

func parameterInfo(s *jsonschema.Schema) *schema.ParameterInfo {
	info := &schema.ParameterInfo{Type: dataType(s)}
	if s == nil {
		return info
	}
	info.Desc = s.Description
	for _, value := range s.Enum {
		info.Enum = append(info.Enum, fmt.Sprint(value))
	}
	switch info.Type {
	case schema.Array:
		if s.Items != nil {
			info.ElemInfo = parameterInfo(s.Items)
		}
	case schema.Object:
		info.SubParams = objectParams(s)
	}
	return info
}

func dataType(s *jsonschema.Schema) schema.DataType {
	if s == nil {
		return schema.Object
	}
	typ := s.Type
	if typ == "" {
		for _, candidate := range s.Types {
			if candidate != "null" {
				typ = candidate
				break
			}
		}
	}
	switch typ {
	case "string":
		return schema.String
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "null":
		return schema.Null
	default:
		return schema.Object
	}
}

// rawSchema renders a schema for backends that accept JSON Schema directly.
func rawSchema(s *jsonschema.Schema) (json.RawMessage, error) {
	if s == nil {
		return json.RawMessage(`{"type":"object","properties":{}}`), nil
	}
	return json.Marshal(s)
}
