package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/crewforge/crewforge/internal/team"
)

// GenerateSpecTool handles crew_generate_spec: fanning a final
// specification task out to every team member and assembling the
// result into a system document.
type GenerateSpecTool struct {
	manager *team.Manager
}

// NewGenerateSpecTool creates a GenerateSpecTool.
func NewGenerateSpecTool(manager *team.Manager) *GenerateSpecTool {
	return &GenerateSpecTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *GenerateSpecTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_generate_spec",
		mcp.WithDescription(
			"Generate the complete project specification for a session. Every team "+
				"member contributes a section from its role's perspective, the "+
				"coordinator adds an integration summary, and the assembled document "+
				"is stored in the specification workspace. The session's anchor "+
				"change proposal is approved.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session to generate the specification from"),
		),
	)
}

// Handle processes the crew_generate_spec tool call.
func (t *GenerateSpecTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := strings.TrimSpace(req.GetString("session_id", ""))
	if sessionID == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}

	doc, err := t.manager.GenerateSpecification(ctx, sessionID)
	if err != nil {
		if errors.Is(err, team.ErrSessionNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("generating specification: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Specification %q stored as document %s (version %s, %d sections).",
		doc.Title, doc.ID, doc.Version, len(doc.Content),
	)), nil
}
