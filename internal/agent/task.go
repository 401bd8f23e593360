package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus tracks a task through its lifecycle.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskError      TaskStatus = "error"
)

// RequestKind tags a task with the specialization its handler needs.
// Each role's prompt builder switches over the kinds it understands;
// anything else falls back to KindGeneral.
type RequestKind string

const (
	KindGeneral            RequestKind = "general"
	KindFinalSpecification RequestKind = "final-specification"

	// Product strategy.
	KindProjectAnalysis       RequestKind = "project-analysis"
	KindFeaturePrioritization RequestKind = "feature-prioritization"
	KindRoadmap               RequestKind = "roadmap"
	KindMarketAnalysis        RequestKind = "market-analysis"

	// Technical architecture.
	KindSystemDesign         RequestKind = "system-design"
	KindTechnicalReview      RequestKind = "technical-review"
	KindArchitectureDecision RequestKind = "architecture-decision"
	KindTechnologyEvaluation RequestKind = "technology-evaluation"

	// UX design.
	KindUserAnalysis    RequestKind = "user-analysis"
	KindWorkflowDesign  RequestKind = "workflow-design"
	KindInterfaceDesign RequestKind = "interface-design"
	KindUsabilityReview RequestKind = "usability-review"

	// Quality engineering.
	KindTestingStrategy RequestKind = "testing-strategy"
	KindQualityReview   RequestKind = "quality-review"
	KindAutomationPlan  RequestKind = "automation-plan"
	KindQualityMetrics  RequestKind = "quality-metrics"

	// DevOps.
	KindInfrastructureDesign RequestKind = "infrastructure-design"
	KindPipelineDesign       RequestKind = "pipeline-design"
	KindDeploymentPlan       RequestKind = "deployment-plan"
	KindMonitoringSetup      RequestKind = "monitoring-setup"
)

// Request is the tagged payload a task carries for its handler.
type Request struct {
	Kind    RequestKind    `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Task is one unit of work submitted to exactly one agent's queue.
// The owning agent is the only writer once the task is dequeued;
// everyone else observes it through the read accessors and Done.
type Task struct {
	ID          string
	Description string
	Context     map[string]any
	Request     *Request
	Priority    int
	CreatedAt   time.Time

	mu          sync.Mutex
	assignedAt  time.Time
	startedAt   time.Time
	completedAt time.Time
	status      TaskStatus
	result      string
	errMsg      string

	done     chan struct{}
	doneOnce sync.Once
}

// NewTask creates a pending task with a fresh identity.
func NewTask(description string, taskContext map[string]any) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Description: description,
		Context:     taskContext,
		Priority:    1,
		CreatedAt:   time.Now().UTC(),
		status:      TaskPending,
		done:        make(chan struct{}),
	}
}

// WithRequest attaches a tagged request and returns the task.
func (t *Task) WithRequest(kind RequestKind, payload map[string]any) *Task {
	t.Request = &Request{Kind: kind, Payload: payload}
	return t
}

// Status returns the task's current lifecycle status.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Result returns the response text and whether one was produced.
func (t *Task) Result() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.status == TaskCompleted && t.result != ""
}

// Err returns the captured error message, empty unless the task failed.
func (t *Task) Err() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errMsg
}

// Done returns a channel closed exactly once when the task reaches a
// terminal status (completed or error).
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task reaches a terminal status or ctx expires.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) markAssigned() {
	t.mu.Lock()
	t.assignedAt = time.Now().UTC()
	t.mu.Unlock()
}

func (t *Task) markStarted() {
	t.mu.Lock()
	t.startedAt = time.Now().UTC()
	t.status = TaskInProgress
	t.mu.Unlock()
}

func (t *Task) complete(result string) {
	t.mu.Lock()
	t.completedAt = time.Now().UTC()
	t.status = TaskCompleted
	t.result = result
	t.mu.Unlock()
	t.doneOnce.Do(func() { close(t.done) })
}

func (t *Task) fail(msg string) {
	t.mu.Lock()
	t.completedAt = time.Now().UTC()
	t.status = TaskError
	t.errMsg = msg
	t.mu.Unlock()
	t.doneOnce.Do(func() { close(t.done) })
}

// elapsed reports the processing duration for a finished task.
func (t *Task) elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startedAt.IsZero() || t.completedAt.IsZero() {
		return 0
	}
	return t.completedAt.Sub(t.startedAt)
}
