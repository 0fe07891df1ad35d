package toolreg

import (
	"encoding/json"
	"fmt"

	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
)

// TextResult wraps plain text in the tool result envelope.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: text}},
	}
}

// JSONResult renders v as indented JSON text and carries it as structured
// content alongside.
func JSONResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Errorf("encode result: %v", err)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.ContentBlock{{Type: "text", Text: string(b)}},
		StructuredContent: v,
	}
}

// Errorf formats a tool-level failure.
func Errorf(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
