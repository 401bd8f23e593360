package team

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/crewforge/crewforge/internal/agent"
	"github.com/crewforge/crewforge/internal/openspec"
	"github.com/crewforge/crewforge/internal/provider"
)

// stubGen echoes prompts back so tests can assert on what each member
// was asked.
type stubGen struct{}

func (stubGen) Generate(ctx context.Context, name, system string, history []provider.Message, prompt string) (*provider.Response, error) {
	return &provider.Response{Content: "echo: " + prompt, Provider: name, Model: "stub"}, nil
}

func (stubGen) GenerateStream(ctx context.Context, name, system string, history []provider.Message, prompt string) (provider.Stream, error) {
	return nil, errors.New("streaming not supported by stub")
}

var _ agent.Generator = stubGen{}

func newTestManager(t *testing.T) (*Manager, *openspec.Store) {
	t.Helper()
	specs, err := openspec.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening workspace: %v", err)
	}
	m := New(stubGen{}, specs, nil, Options{Provider: "stub"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m.Start(ctx)
	return m, specs
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNew_BuildsFullRoster(t *testing.T) {
	m, _ := newTestManager(t)

	for _, def := range Definitions() {
		if _, ok := m.Member(def.Name); !ok {
			t.Errorf("member %s missing", def.Name)
		}
	}
	if got := len(m.Coordinator().MemberNames()); got != 5 {
		t.Errorf("coordinator has %d members, want 5", got)
	}

	status := m.TeamStatus()
	if len(status) != 6 {
		t.Errorf("TeamStatus has %d entries, want 5 members + coordinator", len(status))
	}
	if _, ok := status["Coordinator"]; !ok {
		t.Error("TeamStatus missing coordinator")
	}
}

func TestStart_SeedsFrameworkMemory(t *testing.T) {
	m, _ := newTestManager(t)

	strategist, _ := m.Member("ProductStrategist")
	value, ok := strategist.Recall("product_strategist_framework")
	if !ok {
		t.Fatal("framework not seeded")
	}
	framework, ok := value.(map[string]string)
	if !ok || framework["vision"] == "" {
		t.Errorf("framework = %v", value)
	}
}

func TestCreateSession_DefaultsAndAnchor(t *testing.T) {
	m, specs := newTestManager(t)

	id, err := m.CreateSession(ProjectDefinition{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	report, err := m.SessionStatus(id)
	if err != nil {
		t.Fatalf("SessionStatus: %v", err)
	}
	if report.Project.Name != "Untitled Project" {
		t.Errorf("project name = %q, want Untitled Project", report.Project.Name)
	}
	if report.Session.Status != "active" {
		t.Errorf("session status = %q, want active", report.Session.Status)
	}

	pending := specs.PendingChanges()
	if len(pending) != 1 {
		t.Fatalf("workspace has %d pending changes, want the anchor", len(pending))
	}
	anchor := pending[0]
	if anchor.Title != "Define project: Untitled Project" {
		t.Errorf("anchor title = %q", anchor.Title)
	}
	if anchor.Priority != openspec.PriorityHigh {
		t.Errorf("anchor priority = %s, want high", anchor.Priority)
	}
	if anchor.Author != "BuilderTeam" {
		t.Errorf("anchor author = %q", anchor.Author)
	}
}

func TestCreateSession_CollidingIDsGetSuffix(t *testing.T) {
	m, _ := newTestManager(t)

	first, err := m.CreateSession(ProjectDefinition{Name: "One"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	second, err := m.CreateSession(ProjectDefinition{Name: "Two"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if second != first+"-2" {
		t.Errorf("second ID = %q, want %q", second, first+"-2")
	}
}

func TestProcessInput_NoSessionStartsDefinition(t *testing.T) {
	m, _ := newTestManager(t)

	response, err := m.ProcessInput(testCtx(t), "A crew that triages support tickets")
	if err != nil {
		t.Fatalf("ProcessInput: %v", err)
	}
	if !strings.Contains(response, "A crew that triages support tickets") {
		t.Errorf("response = %q, want the idea echoed through the kickoff prompt", response)
	}

	sessions := m.ListSessions()
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].ProjectName != "New Project" {
		t.Errorf("project name = %q, want New Project", sessions[0].ProjectName)
	}

	transcript, err := m.Transcript(sessions[0].ID)
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("transcript has %d messages, want user + assistant", len(transcript))
	}
	if transcript[1].Agent != FallbackMember {
		t.Errorf("opening response from %q, want %s", transcript[1].Agent, FallbackMember)
	}
}

func TestProcessInput_SingleRelevantMemberAnswersDirectly(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.CreateSession(ProjectDefinition{Name: "Crew"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	response, err := m.ProcessInput(testCtx(t), "Improve the wireframes for better usability")
	if err != nil {
		t.Fatalf("ProcessInput: %v", err)
	}
	if strings.Contains(response, "Here's what the Builder Team thinks") {
		t.Errorf("single-member input was coordinated: %q", response)
	}

	sessions := m.ListSessions()
	transcript, err := m.Transcript(sessions[0].ID)
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	last := transcript[len(transcript)-1]
	if last.Agent != "UXDesigner" {
		t.Errorf("responder = %q, want UXDesigner", last.Agent)
	}
}

func TestProcessInput_TieIsCoordinated(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.CreateSession(ProjectDefinition{Name: "Crew"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	response, err := m.ProcessInput(testCtx(t), "Compare the roadmap against the database plan")
	if err != nil {
		t.Fatalf("ProcessInput: %v", err)
	}
	if !strings.HasPrefix(response, "Here's what the Builder Team thinks:\n\n") {
		t.Errorf("response = %q, want combined header", response)
	}
	if !strings.Contains(response, "**ProductStrategist:**") || !strings.Contains(response, "**TechnicalArchitect:**") {
		t.Errorf("response missing member sections:\n%s", response)
	}

	sessions := m.ListSessions()
	transcript, _ := m.Transcript(sessions[0].ID)
	last := transcript[len(transcript)-1]
	if last.Agent != "Coordinator" {
		t.Errorf("responder = %q, want Coordinator", last.Agent)
	}
}

func TestProcessInput_DesignAndUXScenarioFansOut(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.CreateSession(ProjectDefinition{Name: "Crew"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	response, err := m.ProcessInput(testCtx(t), "Design the architecture and also plan the UX workflow")
	if err != nil {
		t.Fatalf("ProcessInput: %v", err)
	}
	if !strings.HasPrefix(response, "Here's what the Builder Team thinks:\n\n") {
		t.Errorf("response = %q, want the coordinated composite", response)
	}
	if !strings.Contains(response, "**TechnicalArchitect:**") || !strings.Contains(response, "**UXDesigner:**") {
		t.Errorf("response missing architect and designer sections:\n%s", response)
	}
}

func TestProcessInput_TestingScenarioDelegatesDirectly(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.CreateSession(ProjectDefinition{Name: "Crew"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	response, err := m.ProcessInput(testCtx(t), "We need a testing automation strategy")
	if err != nil {
		t.Fatalf("ProcessInput: %v", err)
	}
	if strings.Contains(response, "Here's what the Builder Team thinks") {
		t.Errorf("single-member input was coordinated: %q", response)
	}

	sessions := m.ListSessions()
	transcript, err := m.Transcript(sessions[0].ID)
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	last := transcript[len(transcript)-1]
	if last.Agent != "QualityEngineer" {
		t.Errorf("responder = %q, want QualityEngineer", last.Agent)
	}
}

func TestProcessInput_SignificantInputLeavesChange(t *testing.T) {
	m, specs := newTestManager(t)
	if _, err := m.CreateSession(ProjectDefinition{Name: "Crew"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := m.ProcessInput(testCtx(t), "The priority decision: ship the roadmap first"); err != nil {
		t.Fatalf("ProcessInput: %v", err)
	}

	var interaction *openspec.ChangeProposal
	for _, change := range specs.PendingChanges() {
		if strings.HasPrefix(change.Title, "Session interaction: ") {
			c := change
			interaction = &c
			break
		}
	}
	if interaction == nil {
		t.Fatal("no change proposal recorded for significant input")
	}
	if interaction.Description != "The priority decision: ship the roadmap first" {
		t.Errorf("description = %q", interaction.Description)
	}
	if len(interaction.ImpactAreas) == 0 {
		t.Error("impact areas empty, want routed members")
	}
}

func TestProcessInput_CasualInputLeavesNoChange(t *testing.T) {
	m, specs := newTestManager(t)
	if _, err := m.CreateSession(ProjectDefinition{Name: "Crew"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := m.ProcessInput(testCtx(t), "Hello team, how is it going"); err != nil {
		t.Fatalf("ProcessInput: %v", err)
	}

	// Only the session anchor should exist.
	if pending := specs.PendingChanges(); len(pending) != 1 {
		t.Errorf("workspace has %d pending changes, want 1", len(pending))
	}
}

func TestGenerateSpecification(t *testing.T) {
	m, specs := newTestManager(t)
	id, err := m.CreateSession(ProjectDefinition{Name: "Support Crew", Goal: "triage tickets"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	doc, err := m.GenerateSpecification(testCtx(t), id)
	if err != nil {
		t.Fatalf("GenerateSpecification: %v", err)
	}

	if doc.Type != openspec.SpecSystem {
		t.Errorf("document type = %s, want system", doc.Type)
	}
	if doc.Title != "Project Specification: Support Crew" {
		t.Errorf("document title = %q", doc.Title)
	}
	for _, key := range []string{"project", "session_summary", "coordinator_summary"} {
		if doc.Content[key] == "" {
			t.Errorf("content missing %s section", key)
		}
	}
	for _, def := range Definitions() {
		if doc.Content["agent_"+def.Name] == "" {
			t.Errorf("content missing agent_%s section", def.Name)
		}
	}
	if !containsString(doc.Tags, id) {
		t.Errorf("tags = %v, want session id", doc.Tags)
	}

	// The anchor change moves to approved.
	approved := specs.ListChanges(openspec.StatusApproved)
	if len(approved) != 1 {
		t.Fatalf("got %d approved changes, want the anchor", len(approved))
	}

	report, err := m.SessionStatus(id)
	if err != nil {
		t.Fatalf("SessionStatus: %v", err)
	}
	if report.Session.Status != "specified" {
		t.Errorf("session status = %q, want specified", report.Session.Status)
	}
	if report.Session.TaskCount != len(Definitions()) {
		t.Errorf("session task count = %d, want one task per member (%d)",
			report.Session.TaskCount, len(Definitions()))
	}
}

func TestGenerateSpecification_UnknownSession(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.GenerateSpecification(testCtx(t), "session_nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStatus_Unknown(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.SessionStatus("session_nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if _, err := m.Transcript("session_nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Transcript err = %v, want ErrSessionNotFound", err)
	}
}

func TestListSessions_Order(t *testing.T) {
	m, _ := newTestManager(t)

	first, _ := m.CreateSession(ProjectDefinition{Name: "One"})
	second, _ := m.CreateSession(ProjectDefinition{Name: "Two"})

	sessions := m.ListSessions()
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].ID != first || sessions[1].ID != second {
		t.Errorf("order = [%s %s], want [%s %s]", sessions[0].ID, sessions[1].ID, first, second)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 50, "short"},
		{strings.Repeat("a", 60), 50, strings.Repeat("a", 50)},
		{strings.Repeat("ü", 60), 50, strings.Repeat("ü", 50)},
		{"日本語のテキスト", 4, "日本語の"},
	}
	for _, tt := range tests {
		got := truncateRunes(tt.in, tt.max)
		if got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateRunes(%q, %d) produced invalid UTF-8", tt.in, tt.max)
		}
	}
}

func TestIsSignificant(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"We should add a new feature", true},
		{"APPROVE the proposal", true},
		{"What about the architecture?", true},
		{"Hello there", false},
		{"Tell me more", false},
	}
	for _, tt := range tests {
		if got := isSignificant(tt.input); got != tt.want {
			t.Errorf("isSignificant(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func containsString(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
