package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/app"
)

// HelperTool handles the ai_summarize, ai_analyze_code and ai_motivate tools.
type HelperTool struct {
	resolver *app.Resolver
	kind     string // app.Prefix* constant
}

// NewHelperTool creates the helper tool for kind, one of the app.Prefix* constants.
func NewHelperTool(resolver *app.Resolver, kind string) *HelperTool {
	return &HelperTool{resolver: resolver, kind: kind}
}

func (t *HelperTool) describe() (name, desc, arg string) {
	switch t.kind {
	case app.PrefixSummarize:
		return "ai_summarize", "Summarize a text into 3-4 clear sentences.", "Text to summarize"
	case app.PrefixAnalyze:
		return "ai_analyze_code", "Review a code snippet for bugs and suggest fixes.", "Code snippet to analyze"
	default:
		return "ai_motivate", "Write a short motivational message for a context.", "Context the message should relate to"
	}
}

// Definition returns the MCP tool definition.
func (t *HelperTool) Definition() mcp.Tool {
	name, desc, arg := t.describe()
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(desc),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description(arg),
		),
	}, sessionArgs()...)
	return mcp.NewTool(name, opts...)
}

// Handle processes the tool call.
func (t *HelperTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	opts := askOptions(req)
	var (
		ans *kspai.Answer
		err error
	)
	switch t.kind {
	case app.PrefixSummarize:
		ans, err = t.resolver.Summarize(ctx, text, opts)
	case app.PrefixAnalyze:
		ans, err = t.resolver.AnalyzeCode(ctx, text, opts)
	default:
		ans, err = t.resolver.SuggestMotivation(ctx, text, opts)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", t.kind, err)), nil
	}
	return answerResult(ans), nil
}
