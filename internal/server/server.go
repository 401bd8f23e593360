// Package server wires all crewforge components and creates the MCP
// server instance.
//
// This is the composition root: it creates concrete implementations
// and injects them into the tools that depend on them. No business
// logic lives here — only wiring.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/crewforge/crewforge/internal/archive"
	"github.com/crewforge/crewforge/internal/config"
	"github.com/crewforge/crewforge/internal/openspec"
	"github.com/crewforge/crewforge/internal/provider"
	"github.com/crewforge/crewforge/internal/provider/gemini"
	"github.com/crewforge/crewforge/internal/team"
	"github.com/crewforge/crewforge/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools registered.
// This is the single place where all dependencies are resolved.
//
// The returned cleanup function stops the team, snapshots agent
// memory, and closes database handles. It is always non-nil and safe
// to call even when parts of the wiring were skipped.
func New(cfg *config.Config) (*server.MCPServer, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())

	// --- Providers ---
	//
	// Provider registration is best-effort: without credentials the
	// team still assembles, and every generation call fails with a
	// descriptive error instead of the server refusing to start.

	providers := provider.NewManager()
	var closeProvider func() error
	if cfg.GeminiAPIKey != "" {
		gp, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("gemini provider disabled", "error", err)
		} else {
			providers.Register(gp)
			closeProvider = gp.Close
		}
	} else {
		slog.Warn("no gemini api key configured; generation calls will fail until one is provided")
	}

	// --- Specification workspace ---

	specs, err := openspec.Open(cfg.OpenSpecPath)
	if err != nil {
		cancel()
		return nil, noop, fmt.Errorf("opening specification workspace: %w", err)
	}
	seedSystemDocument(specs)

	// --- Archive ---
	//
	// The archive is an independent subsystem: if it fails to open,
	// the team works without persistence beyond the workspace.

	var arch *archive.Store
	if cfg.ArchivePath != "" {
		arch, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			slog.Warn("session archive disabled", "error", err)
			arch = nil
		}
	}

	// --- Builder team ---

	manager := team.New(providers, specs, arch, team.Options{
		Provider:      cfg.Provider,
		MemoryWindow:  cfg.MemoryWindow,
		QueueCapacity: cfg.QueueCapacity,
	})
	manager.Start(ctx)

	cleanup := func() {
		manager.Shutdown(context.Background())
		cancel()
		if err := arch.Close(); err != nil {
			slog.Warn("closing archive", "error", err)
		}
		if closeProvider != nil {
			if err := closeProvider(); err != nil {
				slog.Warn("closing provider", "error", err)
			}
		}
	}

	// --- MCP server ---

	s := server.NewMCPServer(
		"crewforge",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Session tools ---

	sessionStart := tools.NewSessionStartTool(manager)
	s.AddTool(sessionStart.Definition(), sessionStart.Handle)

	chat := tools.NewChatTool(manager)
	s.AddTool(chat.Definition(), chat.Handle)

	sessionStatus := tools.NewSessionStatusTool(manager)
	s.AddTool(sessionStatus.Definition(), sessionStatus.Handle)

	sessionList := tools.NewSessionListTool(manager)
	s.AddTool(sessionList.Definition(), sessionList.Handle)

	generateSpec := tools.NewGenerateSpecTool(manager)
	s.AddTool(generateSpec.Definition(), generateSpec.Handle)

	teamStatus := tools.NewTeamStatusTool(manager)
	s.AddTool(teamStatus.Definition(), teamStatus.Handle)

	// --- Specification workspace tools ---

	changePropose := tools.NewChangeProposeTool(specs)
	s.AddTool(changePropose.Definition(), changePropose.Handle)

	changeReview := tools.NewChangeReviewTool(specs)
	s.AddTool(changeReview.Definition(), changeReview.Handle)

	changeList := tools.NewChangeListTool(specs)
	s.AddTool(changeList.Definition(), changeList.Handle)

	changeGet := tools.NewChangeGetTool(specs)
	s.AddTool(changeGet.Definition(), changeGet.Handle)

	docCreate := tools.NewDocumentCreateTool(specs)
	s.AddTool(docCreate.Definition(), docCreate.Handle)

	docUpdate := tools.NewDocumentUpdateTool(specs)
	s.AddTool(docUpdate.Definition(), docUpdate.Handle)

	docGet := tools.NewDocumentGetTool(specs)
	s.AddTool(docGet.Definition(), docGet.Handle)

	docList := tools.NewDocumentListTool(specs)
	s.AddTool(docList.Definition(), docList.Handle)

	docSearch := tools.NewDocumentSearchTool(specs)
	s.AddTool(docSearch.Definition(), docSearch.Handle)

	docHistory := tools.NewDocumentHistoryTool(specs)
	s.AddTool(docHistory.Definition(), docHistory.Handle)

	// --- Archive tools (registered unconditionally; nil-safe) ---

	archiveSearch := tools.NewArchiveSearchTool(arch)
	s.AddTool(archiveSearch.Definition(), archiveSearch.Handle)

	return s, cleanup, nil
}

// noop is the default cleanup when wiring fails before any resources
// are held.
func noop() {}

// seedSystemDocument writes the baseline system document the first
// time the workspace is opened, so searches and history have a root to
// hang off.
func seedSystemDocument(specs *openspec.Store) {
	if len(specs.ListDocuments(openspec.SpecSystem)) > 0 {
		return
	}
	doc := &openspec.Document{
		Type:   openspec.SpecSystem,
		Title:  "AI Crew Builder Team",
		Author: "system",
		Content: map[string]string{
			"overview": "Multi-agent advisory team that helps users define AI crew projects " +
				"through conversation, producing reviewable specification documents and " +
				"change proposals.",
			"team": "ProductStrategist, TechnicalArchitect, UXDesigner, QualityEngineer, " +
				"DevOpsSpecialist, coordinated by the Coordinator.",
		},
		Tags: []string{"system", "baseline"},
	}
	if err := specs.CreateDocument(doc); err != nil {
		slog.Warn("seeding system document", "error", err)
	}
}

// serverInstructions returns the instructions that tell a connected AI
// client how to drive the Builder Team.
func serverInstructions() string {
	return `You have access to crewforge, an AI Crew Builder Team MCP server.

The Builder Team is five advisory agents — ProductStrategist,
TechnicalArchitect, UXDesigner, QualityEngineer, DevOpsSpecialist —
plus a Coordinator. They help the user define an AI crew project
through conversation and turn the outcome into reviewable
specification documents.

## Workflow

1. Start a session with crew_session_start (project name, description, goal).
2. Relay the user's thinking with crew_chat. Input is routed to the most
   relevant specialists by keyword; when several are relevant the
   Coordinator fans the question out and combines their answers.
3. Check on the team anytime with crew_team_status or crew_session_status.
4. When the definition feels complete, call crew_generate_spec: every
   member contributes a section and the assembled document lands in the
   specification workspace.

## Specification workspace

Conversation outcomes become change proposals (proposed → approved →
implemented, or rejected) and specification documents. Use
crew_change_list / crew_change_review to drive the review queue, and
crew_doc_search / crew_doc_get / crew_doc_history to read documents,
and crew_doc_create / crew_doc_update to maintain them by hand.
Past sessions are searchable with crew_archive_search.

## Rules

- One thought per crew_chat call — the router scores keywords, so keep
  inputs focused.
- Approve or reject proposals deliberately; rejected and implemented
  are terminal.
- Generate the specification only after the user confirms the
  definition is complete.`
}
