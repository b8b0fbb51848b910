package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/app"
)

// AskTool handles the ai_ask MCP tool.
type AskTool struct {
	resolver *app.Resolver
}

// NewAskTool creates an AskTool.
func NewAskTool(resolver *app.Resolver) *AskTool {
	return &AskTool{resolver: resolver}
}

// Definition returns the MCP tool definition for ai_ask.
func (t *AskTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Ask the Kisah Sukses Pro assistant a question."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The question or instruction"),
		),
	}, sessionArgs()...)
	return mcp.NewTool("ai_ask", opts...)
}

// Handle processes the ai_ask tool call.
func (t *AskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := req.GetString("prompt", "")
	if strings.TrimSpace(prompt) == "" {
		return mcp.NewToolResultError("'prompt' is required"), nil
	}

	opts := askOptions(req)
	opts.Prompt = prompt
	ans, err := t.resolver.Ask(ctx, &opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}
	return answerResult(ans), nil
}

// answerResult renders an answer, noting when it did not come from the hosted model.
func answerResult(ans *kspai.Answer) *mcp.CallToolResult {
	if ans.Local() {
		return mcp.NewToolResultText(ans.Text + "\n\n(offline answer)")
	}
	return mcp.NewToolResultText(ans.Text)
}
