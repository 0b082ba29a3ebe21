package mcpcodec

import (
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"travelmcp/internal/domain"
)

// ToolFromMCP converts an MCP tool to a domain spec.
func ToolFromMCP(tool *mcp.Tool) domain.ToolSpec {
	if tool == nil {
		return domain.ToolSpec{}
	}
	return domain.ToolSpec{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: tool.InputSchema,
	}
}

// ToolToMCP converts a spec to an MCP tool published under name. Specs
// without an input schema get an empty object schema.
func ToolToMCP(name string, spec domain.ToolSpec) *mcp.Tool {
	schema := spec.InputSchema
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	return &mcp.Tool{
		Name:        name,
		Description: spec.Description,
		InputSchema: schema,
	}
}

// ResultToMCP converts a normalized result to its wire form.
func ResultToMCP(result domain.Result) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(result.Content))
	for _, block := range result.Content {
		content = append(content, &mcp.TextContent{Text: block.Text})
	}
	return &mcp.CallToolResult{Content: content, IsError: result.IsError}
}

// IsObjectSchema reports whether schema describes a JSON object, the only
// input schema shape MCP accepts.
func IsObjectSchema(schema any) bool {
	if schema == nil {
		return false
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return false
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	if typ, ok := obj["type"].(string); ok {
		return strings.EqualFold(typ, "object")
	}
	return false
}
