package team

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/crewforge/crewforge/internal/agent"
	"github.com/crewforge/crewforge/internal/archive"
	"github.com/crewforge/crewforge/internal/openspec"
	"github.com/crewforge/crewforge/internal/router"
)

// ErrSessionNotFound is returned for operations on an unknown session.
var ErrSessionNotFound = fmt.Errorf("session not found")

// significantKeywords flag an exchange as one that should leave a
// change proposal behind in the specification workspace.
var significantKeywords = []string{
	"requirement", "feature", "change", "modify", "add", "remove",
	"decision", "approve", "implement", "design", "architecture",
}

// Manager owns the Builder Team: the five advisory members, their
// coordinator, the routing table, the session ledger, and the stores
// the team writes into.
type Manager struct {
	coordinator *agent.Coordinator
	members     map[string]*agent.Agent
	table       router.Table
	specs       *openspec.Store
	archive     *archive.Store

	mu            sync.RWMutex
	sessions      map[string]*Session
	activeSession string
}

// Options configures team construction.
type Options struct {
	Provider      string
	MemoryWindow  int
	QueueCapacity int
}

// New builds the full roster bound to gen. The archive may be nil, in
// which case nothing is persisted beyond the specification workspace.
func New(gen agent.Generator, specs *openspec.Store, arch *archive.Store, opts Options) *Manager {
	m := &Manager{
		coordinator: agent.NewCoordinator(gen, opts.Provider, opts.MemoryWindow, opts.QueueCapacity),
		members:     make(map[string]*agent.Agent),
		table:       KeywordTable(),
		specs:       specs,
		archive:     arch,
		sessions:    make(map[string]*Session),
	}

	for _, def := range Definitions() {
		member := agent.New(def.AgentConfig(opts.Provider, opts.MemoryWindow, opts.QueueCapacity), gen)
		m.members[def.Name] = member
		m.coordinator.AddMember(member)
	}
	return m
}

// Start launches every member's processing loop and restores long-term
// memory from the archive, seeding each member's framework entry when
// no snapshot exists.
func (m *Manager) Start(ctx context.Context) {
	for _, def := range Definitions() {
		member := m.members[def.Name]

		restored, err := m.archive.LoadMemory(def.Name)
		if err != nil {
			slog.Warn("restoring agent memory", "agent", def.Name, "error", err)
		}
		for key, value := range restored {
			member.Remember(key, value)
		}
		frameworkKey := strings.ReplaceAll(string(def.Role), "-", "_") + "_framework"
		if _, ok := member.Recall(frameworkKey); !ok {
			member.Remember(frameworkKey, def.Framework)
		}

		member.Start(ctx)
	}
	m.coordinator.Start(ctx)
	slog.Info("builder team started", "members", len(m.members))
}

// Coordinator returns the team coordinator.
func (m *Manager) Coordinator() *agent.Coordinator { return m.coordinator }

// Member returns a roster member by name.
func (m *Manager) Member(name string) (*agent.Agent, bool) {
	a, ok := m.members[name]
	return a, ok
}

// TeamStatus returns a snapshot of every member plus the coordinator.
func (m *Manager) TeamStatus() map[string]agent.Snapshot {
	out := make(map[string]agent.Snapshot, len(m.members)+1)
	for name, member := range m.members {
		out[name] = member.Snapshot()
	}
	out[m.coordinator.Name()] = m.coordinator.Snapshot()
	return out
}

// CreateSession opens a new session for the given project, makes it the
// active session, and opens the session's anchor change proposal.
func (m *Manager) CreateSession(project ProjectDefinition) (string, error) {
	if project.Name == "" {
		project.Name = "Untitled Project"
	}
	if project.Status == "" {
		project.Status = "defined"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := newSessionID()
	for suffix := 2; ; suffix++ {
		if _, exists := m.sessions[id]; !exists {
			break
		}
		id = fmt.Sprintf("%s-%d", newSessionID(), suffix)
	}

	now := timeNow().UTC()
	session := &Session{
		ID:        id,
		Project:   project,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}

	anchor := &openspec.ChangeProposal{
		Title:       fmt.Sprintf("Define project: %s", project.Name),
		Description: project.Description,
		Rationale:   "New builder session opened for project definition",
		Author:      "BuilderTeam",
		Priority:    openspec.PriorityHigh,
		ImpactAreas: []string{"project-definition"},
	}
	if err := m.specs.CreateChangeProposal(anchor); err != nil {
		return "", fmt.Errorf("opening anchor change: %w", err)
	}
	session.AnchorChangeID = anchor.ID

	m.sessions[id] = session
	m.activeSession = id

	if err := m.archive.RecordSession(id, project.Name); err != nil {
		slog.Warn("archiving session", "session", id, "error", err)
	}
	slog.Info("builder session created", "session", id, "project", project.Name)
	return id, nil
}

// StartProjectDefinition kicks off a fresh definition conversation: a
// new session is created from the raw idea and the Product Strategist
// opens with clarifying questions.
func (m *Manager) StartProjectDefinition(ctx context.Context, userInput string) (string, string, error) {
	sessionID, err := m.CreateSession(ProjectDefinition{
		Name:        "New Project",
		Description: userInput,
	})
	if err != nil {
		return "", "", err
	}

	m.appendMessage(sessionID, TranscriptMessage{Role: "user", Content: userInput, Timestamp: timeNow().UTC()})

	prompt := fmt.Sprintf(`I'd like to build an AI crew project. Here's my initial idea:

%s

Please help me define this project by asking clarifying questions about:
1. Project goals and objectives
2. Target users and use cases
3. Required AI agents and their roles
4. Technical requirements
5. Success metrics

Be conversational and ask one question at a time to help me think through this systematically.`, userInput)

	strategist := m.members[FallbackMember]
	response, err := strategist.Think(ctx, prompt)
	if err != nil {
		return sessionID, "", fmt.Errorf("starting project definition: %w", err)
	}

	m.appendMessage(sessionID, TranscriptMessage{
		Role: "assistant", Agent: FallbackMember, Content: response, Timestamp: timeNow().UTC(),
	})
	if err := m.archive.RecordExchange(sessionID, FallbackMember, userInput, response); err != nil {
		slog.Warn("archiving exchange", "session", sessionID, "error", err)
	}
	return sessionID, response, nil
}

// ProcessInput routes user input to the relevant members and returns
// the team's response. With no active session the input starts a new
// project definition. A single relevant member answers directly; two
// or more are coordinated and their answers combined. Exchanges that
// touch requirements or decisions additionally leave a change proposal
// in the specification workspace.
func (m *Manager) ProcessInput(ctx context.Context, userInput string) (string, error) {
	m.mu.RLock()
	active := m.activeSession
	m.mu.RUnlock()
	if active == "" {
		_, response, err := m.StartProjectDefinition(ctx, userInput)
		return response, err
	}

	m.appendMessage(active, TranscriptMessage{Role: "user", Content: userInput, Timestamp: timeNow().UTC()})

	targets := router.Route(userInput, m.table, FallbackMember)

	var response, responder string
	if len(targets) == 1 {
		member := m.members[targets[0]]
		text, err := member.Think(ctx, userInput)
		if err != nil {
			return "", fmt.Errorf("processing input: %w", err)
		}
		response, responder = text, targets[0]
	} else {
		results, err := m.coordinator.Coordinate(ctx, userInput, targets)
		if err != nil {
			return "", fmt.Errorf("processing input: %w", err)
		}
		response, responder = combineResponses(results), m.coordinator.Name()
	}

	m.appendMessage(active, TranscriptMessage{
		Role: "assistant", Agent: responder, Content: response, Timestamp: timeNow().UTC(),
	})

	if isSignificant(userInput) {
		m.recordSignificantInteraction(active, userInput, responder, targets)
	}
	if err := m.archive.RecordExchange(active, responder, userInput, response); err != nil {
		slog.Warn("archiving exchange", "session", active, "error", err)
	}
	return response, nil
}

// combineResponses merges a coordinated result set into one reply,
// members in name order.
func combineResponses(results map[string]string) string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Here's what the Builder Team thinks:\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "**%s:**\n%s\n\n", name, results[name])
	}
	return b.String()
}

// isSignificant reports whether input should leave a change proposal.
func isSignificant(input string) bool {
	lowered := strings.ToLower(input)
	for _, kw := range significantKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// recordSignificantInteraction opens a change proposal capturing an
// exchange that touched requirements or decisions. Failures are logged,
// never surfaced — the conversation must not stall on bookkeeping.
func (m *Manager) recordSignificantInteraction(sessionID, input, responder string, targets []string) {
	title := truncateRunes(input, 50)
	change := &openspec.ChangeProposal{
		Title:       "Session interaction: " + title,
		Description: input,
		Rationale:   fmt.Sprintf("Captured from builder session %s", sessionID),
		Author:      responder,
		Priority:    openspec.PriorityMedium,
		ImpactAreas: targets,
	}
	if err := m.specs.CreateChangeProposal(change); err != nil {
		slog.Warn("recording significant interaction", "session", sessionID, "error", err)
	}
}

// GenerateSpecification fans a final-specification task out to every
// member, assembles their sections with a coordinator summary into a
// system document, and approves the session's anchor change.
func (m *Manager) GenerateSpecification(ctx context.Context, sessionID string) (*openspec.Document, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrSessionNotFound)
	}
	project := session.Project
	messageCount := len(session.Messages)
	anchorID := session.AnchorChangeID
	createdAt := session.CreatedAt
	m.mu.RUnlock()

	// Fan out before waiting so members work concurrently.
	tasks := make(map[string]*agent.Task, len(m.members))
	taskIDs := make([]string, 0, len(m.members))
	for name, member := range m.members {
		task := agent.NewTask(
			fmt.Sprintf("Generate final specification for %s", project.Name),
			map[string]any{
				"project":       project,
				"message_count": messageCount,
				"agent_role":    member.Role(),
			},
		).WithRequest(agent.KindFinalSpecification, nil)
		taskID, err := member.Assign(task)
		if err != nil {
			return nil, fmt.Errorf("assigning specification task to %s: %w", name, err)
		}
		tasks[name] = task
		taskIDs = append(taskIDs, taskID)
	}
	m.recordSessionTasks(sessionID, taskIDs)

	for name, task := range tasks {
		if err := task.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for %s specification: %w", name, err)
		}
	}

	content := map[string]string{
		"project":         mustJSON(project),
		"session_summary": mustJSON(sessionSummaryContent(sessionID, messageCount, createdAt)),
	}
	for name, task := range tasks {
		if text, ok := task.Result(); ok {
			content["agent_"+name] = text
		}
	}

	summary, err := m.coordinator.Think(ctx, fmt.Sprintf(
		"Please provide a final summary and integration plan for this project specification: %s", project.Name))
	if err != nil {
		return nil, fmt.Errorf("coordinator summary: %w", err)
	}
	content["coordinator_summary"] = summary

	doc := &openspec.Document{
		Type:    openspec.SpecSystem,
		Title:   "Project Specification: " + project.Name,
		Content: content,
		Author:  "BuilderTeam",
		Tags:    []string{"project-specification", sessionID},
	}
	if err := m.specs.CreateDocument(doc); err != nil {
		return nil, fmt.Errorf("storing specification: %w", err)
	}

	if anchorID != "" {
		if err := m.specs.Approve(anchorID, "BuilderTeam"); err != nil {
			slog.Warn("approving anchor change", "session", sessionID, "change", anchorID, "error", err)
		}
	}

	m.mu.Lock()
	if session, ok := m.sessions[sessionID]; ok {
		session.Status = "specified"
		session.UpdatedAt = timeNow().UTC()
	}
	m.mu.Unlock()

	slog.Info("specification generated", "session", sessionID, "document", doc.ID)
	return doc, nil
}

func sessionSummaryContent(id string, messageCount int, createdAt any) map[string]any {
	return map[string]any{
		"id":            id,
		"message_count": messageCount,
		"created_at":    createdAt,
	}
}

func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// SessionStatusReport bundles a session's state with live member
// snapshots.
type SessionStatusReport struct {
	Session SessionSummary            `json:"session"`
	Project ProjectDefinition         `json:"project"`
	Agents  map[string]agent.Snapshot `json:"agents"`
}

// SessionStatus reports on one session and the whole team.
func (m *Manager) SessionStatus(sessionID string) (*SessionStatusReport, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrSessionNotFound)
	}
	report := &SessionStatusReport{
		Session: SessionSummary{
			ID:           session.ID,
			ProjectName:  session.Project.Name,
			Status:       session.Status,
			CreatedAt:    session.CreatedAt,
			MessageCount: len(session.Messages),
			TaskCount:    len(session.TaskIDs),
		},
		Project: session.Project,
	}
	m.mu.RUnlock()

	report.Agents = m.TeamStatus()
	return report, nil
}

// Transcript returns a copy of a session's conversation log.
func (m *Manager) Transcript(sessionID string) ([]TranscriptMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrSessionNotFound)
	}
	return append([]TranscriptMessage(nil), session.Messages...), nil
}

// ListSessions summarizes all sessions, oldest first.
func (m *Manager) ListSessions() []SessionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]SessionSummary, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, SessionSummary{
			ID:           session.ID,
			ProjectName:  session.Project.Name,
			Status:       session.Status,
			CreatedAt:    session.CreatedAt,
			MessageCount: len(session.Messages),
			TaskCount:    len(session.TaskIDs),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Shutdown snapshots every member's long-term memory to the archive
// and closes out open sessions.
func (m *Manager) Shutdown(ctx context.Context) {
	for name, member := range m.members {
		if err := m.archive.SaveMemory(name, member.LongTerm()); err != nil {
			slog.Warn("snapshotting agent memory", "agent", name, "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.sessions {
		if session.Status == "active" {
			if err := m.archive.EndSession(id, "ended"); err != nil {
				slog.Warn("closing session", "session", id, "error", err)
			}
		}
	}
	slog.Info("builder team shut down")
}

// recordSessionTasks appends issued task IDs to the session's record
// under the manager's lock.
func (m *Manager) recordSessionTasks(sessionID string, taskIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[sessionID]; ok {
		session.TaskIDs = append(session.TaskIDs, taskIDs...)
	}
}

// truncateRunes shortens s to at most max runes, never splitting a
// multi-byte character.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// appendMessage adds one transcript entry under the manager's lock.
func (m *Manager) appendMessage(sessionID string, msg TranscriptMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[sessionID]; ok {
		session.Messages = append(session.Messages, msg)
		session.UpdatedAt = timeNow().UTC()
	}
}
