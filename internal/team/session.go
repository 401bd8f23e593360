package team

import (
	"time"
)

// timeNow is stubbed in tests to freeze session identifiers.
var timeNow = time.Now

// ProjectDefinition captures what the user wants to build.
type ProjectDefinition struct {
	Name                  string         `json:"name"`
	Description           string         `json:"description"`
	Goal                  string         `json:"goal"`
	TargetAgents          []string       `json:"target_agents,omitempty"`
	TechnicalRequirements map[string]any `json:"technical_requirements,omitempty"`
	SuccessMetrics        []string       `json:"success_metrics,omitempty"`
	Timeline              string         `json:"timeline,omitempty"`
	Budget                float64        `json:"budget,omitempty"`
	Status                string         `json:"status"`
}

// TranscriptMessage is one entry in a session's conversation log.
// Agent is empty for user messages.
type TranscriptMessage struct {
	Role      string    `json:"role"`
	Agent     string    `json:"agent,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one project-definition conversation with the team. The
// manager's lock guards all mutation; sessions have no lock of their
// own.
type Session struct {
	ID        string              `json:"id"`
	Project   ProjectDefinition   `json:"project"`
	Messages  []TranscriptMessage `json:"messages"`
	Status    string              `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`

	// AnchorChangeID is the change proposal opened when the session was
	// created; it is approved when the session's specification is
	// generated.
	AnchorChangeID string `json:"anchor_change_id,omitempty"`

	// TaskIDs records the tasks issued to members on this session's
	// behalf, in issue order.
	TaskIDs []string `json:"task_ids,omitempty"`
}

// SessionSummary is the compact listing view of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	ProjectName  string    `json:"project_name"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
	TaskCount    int       `json:"task_count"`
}

// newSessionID returns a timestamp-derived session identifier, e.g.
// "session_20260830_142501".
func newSessionID() string {
	return "session_" + timeNow().UTC().Format("20060102_150405")
}
