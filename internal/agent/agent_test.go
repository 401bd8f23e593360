package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crewforge/crewforge/internal/provider"
)

// --- Stub generator ---

// stubGenerator is a deterministic Generator for tests. respond maps a
// prompt to its reply; the default echoes the prompt.
type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
	history [][]provider.Message
	respond func(prompt string) (string, error)
	chunks  []string
}

func (g *stubGenerator) record(history []provider.Message, prompt string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.history = append(g.history, history)
}

func (g *stubGenerator) reply(prompt string) (string, error) {
	if g.respond != nil {
		return g.respond(prompt)
	}
	return "echo: " + prompt, nil
}

func (g *stubGenerator) Generate(ctx context.Context, name, system string, history []provider.Message, prompt string) (*provider.Response, error) {
	g.record(history, prompt)
	content, err := g.reply(prompt)
	if err != nil {
		return nil, err
	}
	return &provider.Response{Content: content, Provider: name, Model: "stub"}, nil
}

func (g *stubGenerator) GenerateStream(ctx context.Context, name, system string, history []provider.Message, prompt string) (provider.Stream, error) {
	g.record(history, prompt)
	if g.respond != nil {
		if _, err := g.respond(prompt); err != nil {
			return nil, err
		}
	}
	return &stubStream{chunks: g.chunks}, nil
}

func (g *stubGenerator) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

type stubStream struct {
	chunks []string
	next   int
}

func (s *stubStream) Recv() (string, error) {
	if s.next >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.next]
	s.next++
	return chunk, nil
}

func (s *stubStream) Close() error { return nil }

// --- Helpers ---

func newTestAgent(t *testing.T, gen Generator, window, queueCap int) *Agent {
	t.Helper()
	a := New(Config{
		Name:          "TestAgent",
		Role:          "Testing",
		Provider:      "stub",
		MemoryWindow:  window,
		QueueCapacity: queueCap,
	}, gen)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	a.Start(ctx)
	return a
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := task.Wait(ctx); err != nil {
		t.Fatalf("task %s did not finish: %v", task.ID, err)
	}
}

// --- Task ---

func TestTask_NewIsPending(t *testing.T) {
	task := NewTask("do something", nil)
	if task.Status() != TaskPending {
		t.Errorf("Status = %s, want %s", task.Status(), TaskPending)
	}
	if task.ID == "" {
		t.Error("ID not generated")
	}
	select {
	case <-task.Done():
		t.Error("Done closed before completion")
	default:
	}
}

func TestTask_WaitHonorsContext(t *testing.T) {
	task := NewTask("never finishes", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := task.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}

func TestTask_WithRequest(t *testing.T) {
	task := NewTask("design", nil).WithRequest(KindSystemDesign, map[string]any{"scale": "large"})
	if task.Request == nil || task.Request.Kind != KindSystemDesign {
		t.Fatalf("Request = %+v, want kind %s", task.Request, KindSystemDesign)
	}
}

// --- Queue and processing loop ---

func TestAgent_ProcessesTasksInFIFOOrder(t *testing.T) {
	gen := &stubGenerator{}
	a := New(Config{Name: "fifo", Provider: "stub", QueueCapacity: 8}, gen)

	// Enqueue before starting so ordering is unambiguous.
	tasks := make([]*Task, 3)
	for i := range tasks {
		tasks[i] = NewTask(fmt.Sprintf("task-%d", i), nil)
		if _, err := a.Assign(tasks[i]); err != nil {
			t.Fatalf("Assign: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)

	for _, task := range tasks {
		waitDone(t, task)
	}

	prompts := gen.recorded()
	if len(prompts) != 3 {
		t.Fatalf("generator saw %d prompts, want 3", len(prompts))
	}
	for i, prompt := range prompts {
		want := fmt.Sprintf("task-%d", i)
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt %d = %q, want it to mention %s", i, prompt, want)
		}
	}
}

func TestAssign_QueueFull(t *testing.T) {
	gen := &stubGenerator{}
	a := New(Config{Name: "bounded", Provider: "stub", QueueCapacity: 1}, gen)

	// Not started: the queue only drains when the loop runs.
	if _, err := a.Assign(NewTask("first", nil)); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	_, err := a.Assign(NewTask("second", nil))
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("second Assign = %v, want ErrQueueFull", err)
	}
}

func TestAgent_ErrorDoesNotHaltLoop(t *testing.T) {
	gen := &stubGenerator{
		respond: func(prompt string) (string, error) {
			if strings.Contains(prompt, "boom") {
				return "", errors.New("provider exploded")
			}
			return "fine", nil
		},
	}
	a := newTestAgent(t, gen, 10, 8)

	failing := NewTask("boom", nil)
	succeeding := NewTask("calm", nil)
	if _, err := a.Assign(failing); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := a.Assign(succeeding); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	waitDone(t, failing)
	waitDone(t, succeeding)

	if failing.Status() != TaskError {
		t.Errorf("failing task status = %s, want %s", failing.Status(), TaskError)
	}
	if failing.Err() == "" {
		t.Error("failing task has no error message")
	}
	if succeeding.Status() != TaskCompleted {
		t.Errorf("succeeding task status = %s, want %s", succeeding.Status(), TaskCompleted)
	}

	snap := a.Snapshot()
	if snap.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", snap.ErrorCount)
	}
	if snap.TasksCompleted != 1 {
		t.Errorf("TasksCompleted = %d, want 1", snap.TasksCompleted)
	}
	if snap.Status != StatusIdle {
		t.Errorf("Status = %s, want %s after recovery", snap.Status, StatusIdle)
	}
}

// --- Think and memory ---

func TestThink_AppendsOneExchange(t *testing.T) {
	gen := &stubGenerator{}
	a := newTestAgent(t, gen, 10, 8)

	result, err := a.Think(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Think: %v", err)
	}
	if result != "echo: hello" {
		t.Errorf("result = %q", result)
	}

	history := a.historyWindow()
	if len(history) != 2 {
		t.Fatalf("memory has %d entries, want 2", len(history))
	}
	if history[0].Role != provider.RoleUser || history[0].Content != "hello" {
		t.Errorf("first entry = %+v, want user/hello", history[0])
	}
	if history[1].Role != provider.RoleAssistant || history[1].Content != "echo: hello" {
		t.Errorf("second entry = %+v, want assistant/echo", history[1])
	}
}

func TestThink_PassesWindowedHistory(t *testing.T) {
	gen := &stubGenerator{}
	a := newTestAgent(t, gen, 2, 8)

	for i := 0; i < 3; i++ {
		if _, err := a.Think(context.Background(), fmt.Sprintf("turn-%d", i)); err != nil {
			t.Fatalf("Think: %v", err)
		}
	}

	gen.mu.Lock()
	last := gen.history[len(gen.history)-1]
	gen.mu.Unlock()
	if len(last) != 2 {
		t.Fatalf("third call saw %d history entries, want window of 2", len(last))
	}
}

func TestMemory_TrimsToWindow(t *testing.T) {
	gen := &stubGenerator{}
	a := newTestAgent(t, gen, 2, 8) // 2W = 4 entries max before trim

	for i := 0; i < 3; i++ {
		if _, err := a.Think(context.Background(), fmt.Sprintf("turn-%d", i)); err != nil {
			t.Fatalf("Think: %v", err)
		}
	}

	// Third exchange pushed the log to 6 > 4, trimming back to 2.
	snap := a.Snapshot()
	if snap.MemorySize != 2 {
		t.Fatalf("MemorySize = %d, want 2 after trim", snap.MemorySize)
	}
	history := a.historyWindow()
	if history[0].Content != "turn-2" {
		t.Errorf("oldest surviving entry = %q, want turn-2", history[0].Content)
	}
}

func TestThink_ErrorSetsStatus(t *testing.T) {
	gen := &stubGenerator{
		respond: func(string) (string, error) { return "", errors.New("quota exceeded") },
	}
	a := newTestAgent(t, gen, 10, 8)

	if _, err := a.Think(context.Background(), "anything"); err == nil {
		t.Fatal("expected error")
	}
	if status := a.Snapshot().Status; status != StatusError {
		t.Errorf("Status = %s, want %s", status, StatusError)
	}
	if size := a.Snapshot().MemorySize; size != 0 {
		t.Errorf("MemorySize = %d, want 0 after failed think", size)
	}
}

// --- Streaming ---

func TestThinkStream_CommitsOnDrain(t *testing.T) {
	gen := &stubGenerator{chunks: []string{"Hello, ", "world"}}
	a := newTestAgent(t, gen, 10, 8)

	stream, err := a.ThinkStream(context.Background(), "greet")
	if err != nil {
		t.Fatalf("ThinkStream: %v", err)
	}
	defer stream.Close()

	var got strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		got.WriteString(chunk)
	}

	if got.String() != "Hello, world" {
		t.Errorf("streamed = %q", got.String())
	}
	history := a.historyWindow()
	if len(history) != 2 {
		t.Fatalf("memory has %d entries, want 2 after drain", len(history))
	}
	if history[1].Content != "Hello, world" {
		t.Errorf("committed response = %q", history[1].Content)
	}
	if status := a.Snapshot().Status; status != StatusIdle {
		t.Errorf("Status = %s, want %s", status, StatusIdle)
	}
}

func TestThinkStream_AbandonLeavesMemoryUnmodified(t *testing.T) {
	gen := &stubGenerator{chunks: []string{"partial", " response"}}
	a := newTestAgent(t, gen, 10, 8)

	stream, err := a.ThinkStream(context.Background(), "abandoned")
	if err != nil {
		t.Fatalf("ThinkStream: %v", err)
	}
	if _, err := stream.Recv(); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if size := a.Snapshot().MemorySize; size != 0 {
		t.Errorf("MemorySize = %d, want 0 after abandoned stream", size)
	}
}

// --- Long-term memory ---

func TestLongTermMemory_RememberRecall(t *testing.T) {
	gen := &stubGenerator{}
	a := newTestAgent(t, gen, 10, 8)

	a.Remember("framework", map[string]string{"vision": "long-term goals"})
	value, ok := a.Recall("framework")
	if !ok {
		t.Fatal("Recall did not find entry")
	}
	if m, ok := value.(map[string]string); !ok || m["vision"] != "long-term goals" {
		t.Errorf("Recall = %v", value)
	}
	if _, ok := a.Recall("missing"); ok {
		t.Error("Recall found an entry that was never stored")
	}

	all := a.LongTerm()
	if len(all) != 1 {
		t.Errorf("LongTerm has %d entries, want 1", len(all))
	}
}
