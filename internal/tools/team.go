package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/crewforge/crewforge/internal/archive"
	"github.com/crewforge/crewforge/internal/team"
)

// TeamStatusTool handles crew_team_status.
type TeamStatusTool struct {
	manager *team.Manager
}

// NewTeamStatusTool creates a TeamStatusTool.
func NewTeamStatusTool(manager *team.Manager) *TeamStatusTool {
	return &TeamStatusTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *TeamStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_team_status",
		mcp.WithDescription(
			"Snapshot every Builder Team member and the coordinator: status, "+
				"current task, queue depth, tasks completed, average response "+
				"time, error count, and memory size.",
		),
	)
}

// Handle processes the crew_team_status tool call.
func (t *TeamStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.manager.TeamStatus())
}

// ArchiveSearchTool handles crew_archive_search. The archive may be
// nil when archiving is disabled; searches then return nothing.
type ArchiveSearchTool struct {
	archive *archive.Store
}

// NewArchiveSearchTool creates an ArchiveSearchTool.
func NewArchiveSearchTool(arch *archive.Store) *ArchiveSearchTool {
	return &ArchiveSearchTool{archive: arch}
}

// Definition returns the MCP tool definition for registration.
func (t *ArchiveSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_archive_search",
		mcp.WithDescription(
			"Search past session exchanges by text, newest first. Useful for "+
				"recovering context from earlier builder sessions.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for in past exchanges"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return; defaults to 20"),
		),
	)
}

// Handle processes the crew_archive_search tool call.
func (t *ArchiveSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	limit := int(req.GetFloat("limit", 20))

	results, err := t.archive.SearchExchanges(query, limit)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No archived exchanges match."), nil
	}
	return jsonResult(results)
}
