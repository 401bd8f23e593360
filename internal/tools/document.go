package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/crewforge/crewforge/internal/openspec"
)

// DocumentCreateTool handles crew_doc_create.
type DocumentCreateTool struct {
	store *openspec.Store
}

// NewDocumentCreateTool creates a DocumentCreateTool.
func NewDocumentCreateTool(store *openspec.Store) *DocumentCreateTool {
	return &DocumentCreateTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *DocumentCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_doc_create",
		mcp.WithDescription(
			"Create a specification document in the workspace. Content is a JSON "+
				"object mapping section names to text.",
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Document type"),
			mcp.Enum("system", "agent", "workflow", "feature", "change"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Document title"),
		),
		mcp.WithString("content",
			mcp.Description(`Sections as a JSON object, e.g. {"overview": "..."}`),
		),
		mcp.WithString("author",
			mcp.Description("Document author; defaults to 'user'"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
	)
}

// Handle processes the crew_doc_create tool call.
func (t *DocumentCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := strings.TrimSpace(req.GetString("title", ""))
	if title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}

	content, err := parseContent(req.GetString("content", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	author := req.GetString("author", "")
	if author == "" {
		author = "user"
	}
	var tags []string
	for _, tag := range strings.Split(req.GetString("tags", ""), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	doc := &openspec.Document{
		Type:    openspec.SpecType(req.GetString("type", "")),
		Title:   title,
		Content: content,
		Author:  author,
		Tags:    tags,
	}
	if err := t.store.CreateDocument(doc); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Document %q created as %s (version %s).", doc.Title, doc.ID, doc.Version,
	)), nil
}

// DocumentUpdateTool handles crew_doc_update.
type DocumentUpdateTool struct {
	store *openspec.Store
}

// NewDocumentUpdateTool creates a DocumentUpdateTool.
func NewDocumentUpdateTool(store *openspec.Store) *DocumentUpdateTool {
	return &DocumentUpdateTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *DocumentUpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_doc_update",
		mcp.WithDescription(
			"Replace a document's content wholesale and bump its patch version. "+
				"A change id, when given, is appended to the document's history.",
		),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("The document to update"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description(`Replacement sections, as a JSON object`),
		),
		mcp.WithString("author",
			mcp.Description("Who authored the revision"),
		),
		mcp.WithString("change_id",
			mcp.Description("Change proposal driving this update"),
		),
	)
}

// Handle processes the crew_doc_update tool call.
func (t *DocumentUpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("document_id", ""))
	if id == "" {
		return mcp.NewToolResultError("'document_id' is required"), nil
	}
	raw := strings.TrimSpace(req.GetString("content", ""))
	if raw == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}
	content, err := parseContent(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := t.store.UpdateDocument(id, content, req.GetString("author", ""), req.GetString("change_id", "")); err != nil {
		if errors.Is(err, openspec.ErrDocumentNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}

	doc, err := t.store.Document(id)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Document %s updated to version %s.", doc.ID, doc.Version,
	)), nil
}

// parseContent decodes the content argument into section map form.
func parseContent(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var content map[string]string
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return nil, fmt.Errorf("'content' must be a JSON object of string sections: %w", err)
	}
	return content, nil
}

// DocumentGetTool handles crew_doc_get.
type DocumentGetTool struct {
	store *openspec.Store
}

// NewDocumentGetTool creates a DocumentGetTool.
func NewDocumentGetTool(store *openspec.Store) *DocumentGetTool {
	return &DocumentGetTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *DocumentGetTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_doc_get",
		mcp.WithDescription("Fetch one specification document with its full content."),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("The document to fetch, e.g. 'system_20260830_142501'"),
		),
	)
}

// Handle processes the crew_doc_get tool call.
func (t *DocumentGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("document_id", ""))
	if id == "" {
		return mcp.NewToolResultError("'document_id' is required"), nil
	}
	doc, err := t.store.Document(id)
	if err != nil {
		if errors.Is(err, openspec.ErrDocumentNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	return jsonResult(doc)
}

// DocumentListTool handles crew_doc_list.
type DocumentListTool struct {
	store *openspec.Store
}

// NewDocumentListTool creates a DocumentListTool.
func NewDocumentListTool(store *openspec.Store) *DocumentListTool {
	return &DocumentListTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *DocumentListTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_doc_list",
		mcp.WithDescription("List specification documents, optionally filtered by type."),
		mcp.WithString("type",
			mcp.Description("Only list documents of this type; omit for all"),
			mcp.Enum("system", "agent", "workflow", "feature", "change"),
		),
	)
}

// Handle processes the crew_doc_list tool call.
func (t *DocumentListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	specType := openspec.SpecType(req.GetString("type", ""))
	if specType != "" {
		if err := openspec.ValidateSpecType(specType); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	list := t.store.ListDocuments(specType)
	if len(list) == 0 {
		return mcp.NewToolResultText("No documents match."), nil
	}
	return jsonResult(list)
}

// DocumentSearchTool handles crew_doc_search.
type DocumentSearchTool struct {
	store *openspec.Store
}

// NewDocumentSearchTool creates a DocumentSearchTool.
func NewDocumentSearchTool(store *openspec.Store) *DocumentSearchTool {
	return &DocumentSearchTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *DocumentSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_doc_search",
		mcp.WithDescription(
			"Search specification documents by text. Matches against titles, "+
				"content sections, and tags, case-insensitively.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for"),
		),
	)
}

// Handle processes the crew_doc_search tool call.
func (t *DocumentSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	results := t.store.SearchDocuments(query)
	if len(results) == 0 {
		return mcp.NewToolResultText("No documents match."), nil
	}
	return jsonResult(results)
}

// DocumentHistoryTool handles crew_doc_history.
type DocumentHistoryTool struct {
	store *openspec.Store
}

// NewDocumentHistoryTool creates a DocumentHistoryTool.
func NewDocumentHistoryTool(store *openspec.Store) *DocumentHistoryTool {
	return &DocumentHistoryTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *DocumentHistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("crew_doc_history",
		mcp.WithDescription(
			"Show the change proposals recorded against a document, oldest first.",
		),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("The document whose change history to show"),
		),
	)
}

// Handle processes the crew_doc_history tool call.
func (t *DocumentHistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("document_id", ""))
	if id == "" {
		return mcp.NewToolResultError("'document_id' is required"), nil
	}
	history, err := t.store.DocumentHistory(id)
	if err != nil {
		if errors.Is(err, openspec.ErrDocumentNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	if len(history) == 0 {
		return mcp.NewToolResultText("No changes recorded against this document."), nil
	}
	return jsonResult(history)
}
