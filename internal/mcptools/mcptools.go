// Package mcptools exposes the AI pipeline as MCP tools over stdio.
//
// Each tool is a struct holding its dependencies, with Definition()
// returning the mcp.Tool schema and Handle() serving calls.
package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/app"
)

// NewServer builds an MCP server with every kspai tool registered.
func NewServer(resolver *app.Resolver, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"kspai",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Kisah Sukses Pro AI assistant. Answers come from a hosted model "+
			"when one is configured and from built-in rules otherwise; repeated questions are cached."),
	)

	ask := NewAskTool(resolver)
	s.AddTool(ask.Definition(), ask.Handle)

	for _, kind := range []string{app.PrefixSummarize, app.PrefixAnalyze, app.PrefixMotivate} {
		helper := NewHelperTool(resolver, kind)
		s.AddTool(helper.Definition(), helper.Handle)
	}

	history := NewHistoryTool(resolver.Sessions())
	s.AddTool(history.Definition(), history.Handle)

	clearTool := NewClearSessionTool(resolver.Sessions())
	s.AddTool(clearTool.Definition(), clearTool.Handle)

	return s
}

// askOptions reads the shared tuning arguments into a request.
func askOptions(req mcp.CallToolRequest) kspai.AskRequest {
	opts := kspai.AskRequest{
		SessionID:    req.GetString("session_id", ""),
		MaxTokens:    intArg(req, "max_tokens", 0),
		ForceRefresh: boolArg(req, "force", false),
	}
	if v, ok := req.GetArguments()["temperature"].(float64); ok {
		opts.Temperature = &v
	}
	return opts
}

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

func sessionArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("session_id",
			mcp.Description("Conversation to record the exchange in (default \"default\")"),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Maximum answer length in tokens (default 400)"),
		),
		mcp.WithNumber("temperature",
			mcp.Description("Sampling temperature between 0 and 1 (default 0.6)"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Bypass the response cache"),
		),
	}
}
