package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kisahsukses/kspai/internal/session"
)

// HistoryTool handles the session_history MCP tool.
type HistoryTool struct {
	sessions *session.Store
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(sessions *session.Store) *HistoryTool {
	return &HistoryTool{sessions: sessions}
}

// Definition returns the MCP tool definition for session_history.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("session_history",
		mcp.WithDescription("Show the recent messages of a conversation, oldest first."),
		mcp.WithString("session_id",
			mcp.Description("Conversation identifier (default \"default\")"),
		),
	)
}

// Handle processes the session_history tool call.
func (t *HistoryTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess := t.sessions.Get(req.GetString("session_id", ""))
	if len(sess.History) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Session %q has no messages.", sess.ID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session %q (%d messages)\n", sess.ID, len(sess.History))
	for _, m := range sess.History {
		fmt.Fprintf(&b, "\n[%s] %s: %s", m.TS.Format("2006-01-02 15:04:05"), m.Role, m.Text)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ClearSessionTool handles the session_clear MCP tool.
type ClearSessionTool struct {
	sessions *session.Store
}

// NewClearSessionTool creates a ClearSessionTool.
func NewClearSessionTool(sessions *session.Store) *ClearSessionTool {
	return &ClearSessionTool{sessions: sessions}
}

// Definition returns the MCP tool definition for session_clear.
func (t *ClearSessionTool) Definition() mcp.Tool {
	return mcp.NewTool("session_clear",
		mcp.WithDescription("Forget every message of a conversation."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Conversation identifier"),
		),
	)
}

// Handle processes the session_clear tool call.
func (t *ClearSessionTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	if !t.sessions.Delete(id) {
		return mcp.NewToolResultError(fmt.Sprintf("session %q not found", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %q cleared", id)), nil
}
