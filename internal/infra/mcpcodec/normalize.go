package mcpcodec

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"travelmcp/internal/domain"
)

// Normalize turns whatever a tool returned into text blocks. The result is
// never empty; a nil value becomes one empty block.
func Normalize(value any) domain.Result {
	result := normalize(value)
	if len(result.Content) == 0 {
		result.Content = []domain.TextBlock{{Text: ""}}
	}
	return result
}

func normalize(value any) domain.Result {
	switch v := value.(type) {
	case nil:
		return domain.Result{}
	case string:
		return domain.TextResult(v)
	case []string:
		blocks := make([]domain.TextBlock, 0, len(v))
		for _, text := range v {
			blocks = append(blocks, domain.TextBlock{Text: text})
		}
		return domain.Result{Content: blocks}
	case []byte:
		return domain.TextResult(string(v))
	case domain.TextBlock:
		return domain.Result{Content: []domain.TextBlock{v}}
	case []domain.TextBlock:
		return domain.Result{Content: append([]domain.TextBlock(nil), v...)}
	case domain.Result:
		return v
	case *domain.Result:
		if v == nil {
			return domain.Result{}
		}
		return *v
	case *mcp.CallToolResult:
		return fromCallToolResult(v)
	case []mcp.Content:
		return domain.Result{Content: fromContent(v)}
	case mcp.Content:
		return domain.Result{Content: fromContent([]mcp.Content{v})}
	case fmt.Stringer:
		return domain.TextResult(v.String())
	}
	return domain.TextResult(encode(value))
}

func fromCallToolResult(result *mcp.CallToolResult) domain.Result {
	if result == nil {
		return domain.Result{}
	}
	blocks := fromContent(result.Content)
	hasText := false
	for _, content := range result.Content {
		if _, ok := content.(*mcp.TextContent); ok {
			hasText = true
			break
		}
	}
	if !hasText && result.StructuredContent != nil {
		blocks = append(blocks, domain.TextBlock{Text: encode(result.StructuredContent)})
	}
	return domain.Result{Content: blocks, IsError: result.IsError}
}

func fromContent(contents []mcp.Content) []domain.TextBlock {
	blocks := make([]domain.TextBlock, 0, len(contents))
	for _, content := range contents {
		if content == nil {
			continue
		}
		if text, ok := content.(*mcp.TextContent); ok {
			blocks = append(blocks, domain.TextBlock{Text: text.Text})
			continue
		}
		blocks = append(blocks, domain.TextBlock{Text: encode(content)})
	}
	return blocks
}

func encode(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(raw)
}
