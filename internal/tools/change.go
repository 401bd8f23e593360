package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/crewforge/crewforge/internal/openspec"
)

// ChangeProposeTool handles crew_change_propose.
type ChangeProposeTool struct {
	store *openspec.Store
}

// NewChangeProposeTool creates a ChangeProposeTool.
func NewChangeProposeTool(store *openspec.Store) *ChangeProposeTool {
	return &ChangeProposeTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *ChangeProposeTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_change_propose",
		mcp.WithDescription(
			"Propose a change to the project specification. The proposal enters the "+
				"review queue at status 'proposed' and must be approved before it can "+
				"be implemented. Dependencies must reference existing changes and may "+
				"not form cycles.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short title for the change"),
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("What should change and how"),
		),
		mcp.WithString("rationale",
			mcp.Description("Why the change is needed"),
		),
		mcp.WithString("author",
			mcp.Description("Who proposes the change; defaults to 'user'"),
		),
		mcp.WithString("priority",
			mcp.Description("Urgency of the change"),
			mcp.Enum("low", "medium", "high", "critical"),
		),
		mcp.WithString("dependencies",
			mcp.Description("Comma-separated IDs of changes this one depends on"),
		),
	)
}

// Handle processes the crew_change_propose tool call.
func (t *ChangeProposeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := strings.TrimSpace(req.GetString("title", ""))
	description := strings.TrimSpace(req.GetString("description", ""))
	if title == "" || description == "" {
		return mcp.NewToolResultError("'title' and 'description' are required"), nil
	}

	author := req.GetString("author", "")
	if author == "" {
		author = "user"
	}

	var deps []string
	for _, dep := range strings.Split(req.GetString("dependencies", ""), ",") {
		if dep = strings.TrimSpace(dep); dep != "" {
			deps = append(deps, dep)
		}
	}

	change := &openspec.ChangeProposal{
		Title:        title,
		Description:  description,
		Rationale:    req.GetString("rationale", ""),
		Author:       author,
		Priority:     openspec.Priority(req.GetString("priority", "")),
		Dependencies: deps,
	}
	if err := t.store.CreateChangeProposal(change); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Change %s proposed (%s priority). Review it with crew_change_review.",
		change.ID, change.Priority,
	)), nil
}

// ChangeReviewTool handles crew_change_review: approving, rejecting,
// or implementing a change proposal.
type ChangeReviewTool struct {
	store *openspec.Store
}

// NewChangeReviewTool creates a ChangeReviewTool.
func NewChangeReviewTool(store *openspec.Store) *ChangeReviewTool {
	return &ChangeReviewTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *ChangeReviewTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_change_review",
		mcp.WithDescription(
			"Move a change proposal through its lifecycle: approve or reject a "+
				"proposed change, or mark an approved change implemented. The "+
				"change's file relocates to the partition of its new status. "+
				"Rejected and implemented changes are terminal.",
		),
		mcp.WithString("change_id",
			mcp.Required(),
			mcp.Description("The change to review, e.g. 'change_20260830_142501'"),
		),
		mcp.WithString("verdict",
			mcp.Required(),
			mcp.Description("The lifecycle action to apply"),
			mcp.Enum("approve", "reject", "implement"),
		),
		mcp.WithString("reviewer",
			mcp.Description("Who approves or rejects the change; defaults to 'user'"),
		),
		mcp.WithString("implementer",
			mcp.Description("Who implemented the change; defaults to 'user'"),
		),
		mcp.WithString("reason",
			mcp.Description("Required when rejecting: why the change is declined"),
		),
	)
}

// Handle processes the crew_change_review tool call.
func (t *ChangeReviewTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	changeID := strings.TrimSpace(req.GetString("change_id", ""))
	verdict := req.GetString("verdict", "")
	if changeID == "" {
		return mcp.NewToolResultError("'change_id' is required"), nil
	}

	reviewer := strings.TrimSpace(req.GetString("reviewer", ""))
	if reviewer == "" {
		reviewer = "user"
	}
	implementer := strings.TrimSpace(req.GetString("implementer", ""))
	if implementer == "" {
		implementer = "user"
	}

	var err error
	switch verdict {
	case "approve":
		err = t.store.Approve(changeID, reviewer)
	case "reject":
		reason := strings.TrimSpace(req.GetString("reason", ""))
		if reason == "" {
			return mcp.NewToolResultError("'reason' is required when rejecting a change"), nil
		}
		err = t.store.Reject(changeID, reviewer, reason)
	case "implement":
		err = t.store.Implement(changeID, implementer)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown verdict %q: must be approve, reject, or implement", verdict)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	change, err := t.store.Change(changeID)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(fmt.Sprintf("Change %s is now %s.", change.ID, change.Status)), nil
}

// ChangeListTool handles crew_change_list.
type ChangeListTool struct {
	store *openspec.Store
}

// NewChangeListTool creates a ChangeListTool.
func NewChangeListTool(store *openspec.Store) *ChangeListTool {
	return &ChangeListTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *ChangeListTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_change_list",
		mcp.WithDescription("List change proposals, optionally filtered by lifecycle status."),
		mcp.WithString("status",
			mcp.Description("Only list changes with this status; omit for all"),
			mcp.Enum("proposed", "approved", "rejected", "implemented"),
		),
	)
}

// Handle processes the crew_change_list tool call.
func (t *ChangeListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := openspec.ChangeStatus(req.GetString("status", ""))
	list := t.store.ListChanges(status)
	if len(list) == 0 {
		return mcp.NewToolResultText("No changes match."), nil
	}
	return jsonResult(list)
}

// ChangeGetTool handles crew_change_get.
type ChangeGetTool struct {
	store *openspec.Store
}

// NewChangeGetTool creates a ChangeGetTool.
func NewChangeGetTool(store *openspec.Store) *ChangeGetTool {
	return &ChangeGetTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *ChangeGetTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_change_get",
		mcp.WithDescription("Fetch one change proposal with its full lifecycle record."),
		mcp.WithString("change_id",
			mcp.Required(),
			mcp.Description("The change to fetch"),
		),
	)
}

// Handle processes the crew_change_get tool call.
func (t *ChangeGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	changeID := strings.TrimSpace(req.GetString("change_id", ""))
	if changeID == "" {
		return mcp.NewToolResultError("'change_id' is required"), nil
	}
	change, err := t.store.Change(changeID)
	if err != nil {
		if errors.Is(err, openspec.ErrChangeNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	return jsonResult(change)
}
