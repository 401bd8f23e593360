// Package agent implements the Builder Team task engine: tasks, the
// per-agent processing loop, and the coordinator that fans work out
// across the team.
//
// Each agent owns a FIFO task queue consumed by a single long-lived
// goroutine, a bounded short-term conversation memory, and an unbounded
// long-term key/value memory. Strict single-concurrency holds per agent;
// parallelism exists only across agents.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/crewforge/crewforge/internal/provider"
)

// Status is an agent's externally visible state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusThinking   Status = "thinking"
	StatusResponding Status = "responding"
	StatusError      Status = "error"
)

const (
	// DefaultMemoryWindow is W: short-term memory is trimmed back to the
	// most recent W entries whenever it exceeds 2W.
	DefaultMemoryWindow = 10

	// DefaultQueueCapacity bounds the task queue. Assign rejects with
	// ErrQueueFull once the queue is at capacity.
	DefaultQueueCapacity = 64
)

// ErrQueueFull is returned by Assign when the agent's task queue is at
// capacity. Callers may retry; the agent never blocks the caller.
var ErrQueueFull = fmt.Errorf("task queue full")

// Generator is the slice of the provider manager an agent needs.
type Generator interface {
	Generate(ctx context.Context, name, system string, history []provider.Message, prompt string) (*provider.Response, error)
	GenerateStream(ctx context.Context, name, system string, history []provider.Message, prompt string) (provider.Stream, error)
}

// Config describes an agent at construction time.
type Config struct {
	Name             string
	Role             string
	Personality      string
	Provider         string
	Responsibilities []string

	// SystemPrompt overrides the generated default when non-empty.
	SystemPrompt string

	// MemoryWindow is W; zero means DefaultMemoryWindow.
	MemoryWindow int

	// QueueCapacity bounds the task queue; zero means DefaultQueueCapacity.
	QueueCapacity int

	// PromptFunc builds the generation prompt for a task. When nil a
	// generic description+context prompt is used.
	PromptFunc func(*Task) string
}

// Agent is a named worker with its own queue, memory, and provider binding.
type Agent struct {
	name             string
	role             string
	personality      string
	providerName     string
	responsibilities []string
	systemPrompt     string
	window           int
	promptFn         func(*Task) string

	gen   Generator
	queue chan *Task

	mu             sync.Mutex
	status         Status
	current        *Task
	shortTerm      []provider.Message
	longTerm       map[string]any
	tasksCompleted int
	totalResponse  time.Duration
	errorCount     int

	startOnce sync.Once
}

// New creates an idle agent. Call Start to launch its processing loop.
func New(cfg Config, gen Generator) *Agent {
	if cfg.MemoryWindow <= 0 {
		cfg.MemoryWindow = DefaultMemoryWindow
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	a := &Agent{
		name:             cfg.Name,
		role:             cfg.Role,
		personality:      cfg.Personality,
		providerName:     cfg.Provider,
		responsibilities: cfg.Responsibilities,
		systemPrompt:     cfg.SystemPrompt,
		window:           cfg.MemoryWindow,
		promptFn:         cfg.PromptFunc,
		gen:              gen,
		queue:            make(chan *Task, cfg.QueueCapacity),
		status:           StatusIdle,
		longTerm:         make(map[string]any),
	}
	if a.systemPrompt == "" {
		a.systemPrompt = defaultSystemPrompt(cfg)
	}
	return a
}

// Name returns the agent's unique name.
func (a *Agent) Name() string { return a.name }

// Role returns the agent's role description.
func (a *Agent) Role() string { return a.role }

// Personality returns the agent's personality tag.
func (a *Agent) Personality() string { return a.personality }

// ProviderName returns the agent's logical provider binding.
func (a *Agent) ProviderName() string { return a.providerName }

// Responsibilities returns the agent's responsibility list.
func (a *Agent) Responsibilities() []string { return a.responsibilities }

// Start launches the processing loop. The loop exits when ctx is
// cancelled; an in-flight generation is not aborted beyond its own
// context, but no further task is started. Start is idempotent.
func (a *Agent) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		slog.Info("starting agent", "agent", a.name, "provider", a.providerName)
		go a.loop(ctx)
	})
}

// Assign enqueues a task and returns its identity immediately. It never
// blocks; when the queue is at capacity it fails with ErrQueueFull.
func (a *Agent) Assign(task *Task) (string, error) {
	task.markAssigned()
	select {
	case a.queue <- task:
		slog.Debug("task assigned", "agent", a.name, "task", task.ID, "description", task.Description)
		return task.ID, nil
	default:
		return "", fmt.Errorf("agent %s: %w", a.name, ErrQueueFull)
	}
}

// loop pulls tasks strictly in FIFO order, one at a time.
func (a *Agent) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-a.queue:
			a.process(ctx, task)
		}
	}
}

// process runs one task to a terminal status. An error marks the task
// and the agent's error state but never halts the loop.
func (a *Agent) process(ctx context.Context, task *Task) {
	a.mu.Lock()
	a.current = task
	a.mu.Unlock()
	task.markStarted()

	result, err := a.Think(ctx, a.promptFor(task))
	if err != nil {
		task.fail(err.Error())
		a.mu.Lock()
		a.errorCount++
		a.status = StatusError
		a.current = nil
		a.mu.Unlock()
		slog.Error("task failed", "agent", a.name, "task", task.ID, "error", err)
		return
	}

	task.complete(result)
	a.mu.Lock()
	a.tasksCompleted++
	a.totalResponse += task.elapsed()
	a.current = nil
	a.mu.Unlock()
	slog.Debug("task completed", "agent", a.name, "task", task.ID)
}

// Think generates one response: system prompt + last W memory entries +
// the new prompt. On success exactly one user and one assistant message
// are appended to short-term memory, in that order.
func (a *Agent) Think(ctx context.Context, prompt string) (string, error) {
	a.setStatus(StatusThinking)

	resp, err := a.gen.Generate(ctx, a.providerName, a.systemPrompt, a.historyWindow(), prompt)
	if err != nil {
		a.setStatus(StatusError)
		return "", fmt.Errorf("agent %s: generation failed: %w", a.name, err)
	}

	a.remember(prompt, resp.Content)
	a.setStatus(StatusIdle)
	return resp.Content, nil
}

// ThinkStream is the incremental variant of Think. Memory is appended
// only once the stream is fully drained; abandoning the stream early
// leaves memory unmodified for that exchange.
func (a *Agent) ThinkStream(ctx context.Context, prompt string) (*ThinkStream, error) {
	a.setStatus(StatusResponding)

	inner, err := a.gen.GenerateStream(ctx, a.providerName, a.systemPrompt, a.historyWindow(), prompt)
	if err != nil {
		a.setStatus(StatusError)
		return nil, fmt.Errorf("agent %s: generation failed: %w", a.name, err)
	}
	return &ThinkStream{agent: a, prompt: prompt, inner: inner}, nil
}

// ThinkStream yields response fragments in arrival order and commits the
// accumulated response to the agent's memory on end-of-stream.
type ThinkStream struct {
	agent    *Agent
	prompt   string
	inner    provider.Stream
	buf      strings.Builder
	finished bool
}

// Recv returns the next fragment, io.EOF once drained.
func (s *ThinkStream) Recv() (string, error) {
	if s.finished {
		return "", io.EOF
	}
	chunk, err := s.inner.Recv()
	if err == io.EOF {
		s.finished = true
		s.agent.remember(s.prompt, s.buf.String())
		s.agent.setStatus(StatusIdle)
		return "", io.EOF
	}
	if err != nil {
		s.finished = true
		s.agent.setStatus(StatusError)
		return "", err
	}
	s.buf.WriteString(chunk)
	return chunk, nil
}

// Close releases the stream. If the stream was not fully drained, the
// exchange is not recorded in memory.
func (s *ThinkStream) Close() error {
	if !s.finished {
		s.finished = true
		s.agent.setStatus(StatusIdle)
	}
	return s.inner.Close()
}

// remember appends one exchange and trims short-term memory back to the
// most recent W entries when it exceeds 2W.
func (a *Agent) remember(prompt, response string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shortTerm = append(a.shortTerm,
		provider.Message{Role: provider.RoleUser, Content: prompt},
		provider.Message{Role: provider.RoleAssistant, Content: response},
	)
	if len(a.shortTerm) > 2*a.window {
		trimmed := a.shortTerm[len(a.shortTerm)-a.window:]
		a.shortTerm = append([]provider.Message(nil), trimmed...)
	}
}

// historyWindow snapshots the last W short-term entries.
func (a *Agent) historyWindow() []provider.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	start := 0
	if len(a.shortTerm) > a.window {
		start = len(a.shortTerm) - a.window
	}
	return append([]provider.Message(nil), a.shortTerm[start:]...)
}

// Remember stores a long-term memory entry. Long-term memory is mutated
// only by explicit calls, never by the processing loop.
func (a *Agent) Remember(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.longTerm[key] = value
}

// Recall returns a long-term memory entry.
func (a *Agent) Recall(key string) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.longTerm[key]
	return v, ok
}

// LongTerm returns a copy of the long-term memory map.
func (a *Agent) LongTerm() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]any, len(a.longTerm))
	for k, v := range a.longTerm {
		out[k] = v
	}
	return out
}

// ClearShortTerm empties short-term memory.
func (a *Agent) ClearShortTerm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shortTerm = nil
}

// Snapshot is a point-in-time view of an agent. It is computed from
// lock-scoped reads and never blocks on the processing loop.
type Snapshot struct {
	Name            string        `json:"name"`
	Role            string        `json:"role"`
	Personality     string        `json:"personality"`
	Provider        string        `json:"provider"`
	Status          Status        `json:"status"`
	CurrentTask     string        `json:"current_task,omitempty"`
	QueueDepth      int           `json:"queue_depth"`
	TasksCompleted  int           `json:"tasks_completed"`
	AverageResponse time.Duration `json:"average_response_time"`
	ErrorCount      int           `json:"error_count"`
	MemorySize      int           `json:"memory_size"`
}

// Snapshot returns the agent's current status view.
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	var current string
	if a.current != nil {
		current = a.current.Description
	}
	var avg time.Duration
	if a.tasksCompleted > 0 {
		avg = a.totalResponse / time.Duration(a.tasksCompleted)
	}
	return Snapshot{
		Name:            a.name,
		Role:            a.role,
		Personality:     a.personality,
		Provider:        a.providerName,
		Status:          a.status,
		CurrentTask:     current,
		QueueDepth:      len(a.queue),
		TasksCompleted:  a.tasksCompleted,
		AverageResponse: avg,
		ErrorCount:      a.errorCount,
		MemorySize:      len(a.shortTerm),
	}
}

func (a *Agent) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

// promptFor builds the generation prompt for a task.
func (a *Agent) promptFor(task *Task) string {
	if a.promptFn != nil {
		return a.promptFn(task)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "As the %s, please help with: %s\n", a.role, task.Description)
	if len(task.Context) > 0 {
		if data, err := json.MarshalIndent(task.Context, "", "  "); err == nil {
			fmt.Fprintf(&b, "\nContext:\n%s\n", data)
		}
	}
	return b.String()
}

// defaultSystemPrompt generates the standing instruction for an agent
// from its configuration.
func defaultSystemPrompt(cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %s AI agent", cfg.Name, cfg.Role)
	if cfg.Personality != "" {
		fmt.Fprintf(&b, " with an %s personality", cfg.Personality)
	}
	b.WriteString(".\n\nYour core responsibilities:\n")
	for _, r := range cfg.Responsibilities {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	b.WriteString("\nYou are part of the Builder Team, helping users define and design software projects. " +
		"Provide clear, structured, actionable guidance from your role's perspective, " +
		"ask clarifying questions when requirements are ambiguous, and consider the overall project success.")
	return b.String()
}
