// Package tools exposes the Builder Team over MCP. Each tool is a
// small struct holding its dependencies, with a Definition for
// registration and a Handle for calls. Input validation errors come
// back as tool results; only infrastructure failures return Go errors.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/crewforge/crewforge/internal/team"
)

// SessionStartTool handles crew_session_start: opening a builder
// session for a project definition.
type SessionStartTool struct {
	manager *team.Manager
}

// NewSessionStartTool creates a SessionStartTool.
func NewSessionStartTool(manager *team.Manager) *SessionStartTool {
	return &SessionStartTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *SessionStartTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_session_start",
		mcp.WithDescription(
			"Open a new Builder Team session for defining an AI crew project. "+
				"The session becomes active: subsequent crew_chat calls route into it. "+
				"A change proposal anchoring the project definition is opened in the "+
				"specification workspace.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Project name, e.g. 'Customer Support Crew'"),
		),
		mcp.WithString("description",
			mcp.Description("What the project is about"),
		),
		mcp.WithString("goal",
			mcp.Description("The outcome the project should achieve"),
		),
		mcp.WithString("timeline",
			mcp.Description("Expected timeline, free-form"),
		),
	)
}

// Handle processes the crew_session_start tool call.
func (t *SessionStartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := strings.TrimSpace(req.GetString("name", ""))
	if name == "" {
		return mcp.NewToolResultError("'name' is required — give the project a name"), nil
	}

	sessionID, err := t.manager.CreateSession(team.ProjectDefinition{
		Name:        name,
		Description: req.GetString("description", ""),
		Goal:        req.GetString("goal", ""),
		Timeline:    req.GetString("timeline", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Builder session %s opened for project %q. Use crew_chat to start defining it.",
		sessionID, name,
	)), nil
}

// ChatTool handles crew_chat: routing user input to the relevant team
// members and returning their (possibly combined) response.
type ChatTool struct {
	manager *team.Manager
}

// NewChatTool creates a ChatTool.
func NewChatTool(manager *team.Manager) *ChatTool {
	return &ChatTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *ChatTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_chat",
		mcp.WithDescription(
			"Send user input to the Builder Team. The input is routed by keyword "+
				"relevance: one matching specialist answers directly, several are "+
				"coordinated and their answers combined. Without an active session, "+
				"the input starts a new project definition with the Product Strategist. "+
				"Inputs touching requirements or decisions also leave a change proposal "+
				"in the specification workspace.",
		),
		mcp.WithString("input",
			mcp.Required(),
			mcp.Description("The user's message to the team"),
		),
	)
}

// Handle processes the crew_chat tool call.
func (t *ChatTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input := strings.TrimSpace(req.GetString("input", ""))
	if input == "" {
		return mcp.NewToolResultError("'input' is required — say something to the team"), nil
	}

	response, err := t.manager.ProcessInput(ctx, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("the team could not respond: %v", err)), nil
	}
	return mcp.NewToolResultText(response), nil
}

// SessionStatusTool handles crew_session_status.
type SessionStatusTool struct {
	manager *team.Manager
}

// NewSessionStatusTool creates a SessionStatusTool.
func NewSessionStatusTool(manager *team.Manager) *SessionStatusTool {
	return &SessionStatusTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *SessionStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_session_status",
		mcp.WithDescription(
			"Report on a builder session: project definition, message count, "+
				"and a live snapshot of every team member (status, queue depth, "+
				"completed tasks, error count).",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session to report on, e.g. 'session_20260830_142501'"),
		),
	)
}

// Handle processes the crew_session_status tool call.
func (t *SessionStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := strings.TrimSpace(req.GetString("session_id", ""))
	if sessionID == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}

	report, err := t.manager.SessionStatus(sessionID)
	if err != nil {
		if errors.Is(err, team.ErrSessionNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	return jsonResult(report)
}

// SessionListTool handles crew_session_list.
type SessionListTool struct {
	manager *team.Manager
}

// NewSessionListTool creates a SessionListTool.
func NewSessionListTool(manager *team.Manager) *SessionListTool {
	return &SessionListTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *SessionListTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_session_list",
		mcp.WithDescription("List all builder sessions with project name, status, and message count."),
	)
}

// Handle processes the crew_session_list tool call.
func (t *SessionListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := t.manager.ListSessions()
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No builder sessions yet. Start one with crew_session_start."), nil
	}
	return jsonResult(sessions)
}

// jsonResult renders v as an indented JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
