package mcpcodec

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"travelmcp/internal/domain"
)

type city struct{ name string }

func (c city) String() string { return "city:" + c.name }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  domain.Result
	}{
		{name: "nil", value: nil, want: domain.TextResult("")},
		{name: "string", value: "sunny", want: domain.TextResult("sunny")},
		{name: "strings", value: []string{"a", "b"}, want: domain.Result{Content: []domain.TextBlock{{Text: "a"}, {Text: "b"}}}},
		{name: "empty strings", value: []string{}, want: domain.TextResult("")},
		{name: "bytes", value: []byte("raw"), want: domain.TextResult("raw")},
		{name: "block", value: domain.TextBlock{Text: "x"}, want: domain.TextResult("x")},
		{name: "blocks", value: []domain.TextBlock{{Text: "x"}, {Text: "y"}}, want: domain.Result{Content: []domain.TextBlock{{Text: "x"}, {Text: "y"}}}},
		{name: "result keeps error flag", value: domain.ErrorResult("nope"), want: domain.ErrorResult("nope")},
		{name: "stringer", value: city{name: "Rome"}, want: domain.TextResult("city:Rome")},
		{name: "map encoded as json", value: map[string]any{"temp": 21}, want: domain.TextResult(`{"temp":21}`)},
		{name: "number encoded as json", value: 3.5, want: domain.TextResult("3.5")},
		{
			name: "call tool result text",
			value: &mcp.CallToolResult{Content: []mcp.Content{
				&mcp.TextContent{Text: "line 1"},
				&mcp.TextContent{Text: "line 2"},
			}},
			want: domain.Result{Content: []domain.TextBlock{{Text: "line 1"}, {Text: "line 2"}}},
		},
		{
			name:  "call tool result structured",
			value: &mcp.CallToolResult{StructuredContent: map[string]any{"flights": 2}},
			want:  domain.TextResult(`{"flights":2}`),
		},
		{
			name:  "call tool result error",
			value: &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: "quota"}}},
			want:  domain.ErrorResult("quota"),
		},
		{
			name:  "content slice",
			value: []mcp.Content{&mcp.TextContent{Text: "hi"}},
			want:  domain.TextResult("hi"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Normalize(tt.value)); diff != "" {
				t.Fatalf("unexpected result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_NonTextContentIsEncoded(t *testing.T) {
	got := Normalize([]mcp.Content{&mcp.ImageContent{Data: []byte("png"), MIMEType: "image/png"}})
	require.Len(t, got.Content, 1)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(got.Content[0].Text), &decoded))
	require.Equal(t, "image", decoded["type"])
	require.Equal(t, "image/png", decoded["mimeType"])
}

func TestNormalize_UnencodableFallsBackToPrint(t *testing.T) {
	got := Normalize(make(chan int))
	require.Len(t, got.Content, 1)
	require.NotEmpty(t, got.Content[0].Text)
	require.False(t, got.IsError)
}

func TestToolConversions(t *testing.T) {
	spec := ToolFromMCP(&mcp.Tool{Name: "search", Description: "find", InputSchema: map[string]any{"type": "object"}})
	require.Equal(t, "search", spec.Name)
	require.True(t, IsObjectSchema(spec.InputSchema))

	tool := ToolToMCP("flights_search", domain.ToolSpec{Name: "search"})
	require.Equal(t, "flights_search", tool.Name)
	require.True(t, IsObjectSchema(tool.InputSchema))

	require.False(t, IsObjectSchema(nil))
	require.False(t, IsObjectSchema(map[string]any{"type": "string"}))
	require.True(t, IsObjectSchema(&jsonschema.Schema{Type: "object"}))
	require.Equal(t, domain.ToolSpec{}, ToolFromMCP(nil))
}

func TestResultToMCP(t *testing.T) {
	wire := ResultToMCP(domain.ErrorResult("Unknown tool: x"))
	require.True(t, wire.IsError)
	require.Len(t, wire.Content, 1)
	require.Equal(t, "Unknown tool: x", wire.Content[0].(*mcp.TextContent).Text)

	raw, err := json.Marshal(wire)
	require.NoError(t, err)

	var schema jsonschema.Schema
	require.NoError(t, json.Unmarshal([]byte(callToolResultSchema), &schema))
	resolved, err := schema.Resolve(nil)
	require.NoError(t, err)
	var decoded any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NoError(t, resolved.Validate(decoded))
}

const callToolResultSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["content"],
  "properties": {
    "content": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": { "type": "string" },
          "text": { "type": "string" }
        }
      }
    },
    "isError": { "type": "boolean" }
  }
}`
