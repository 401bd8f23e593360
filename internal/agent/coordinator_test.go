package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestCoordinator(t *testing.T, gen Generator, memberNames ...string) *Coordinator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c := NewCoordinator(gen, "stub", 10, 8)
	for _, name := range memberNames {
		member := New(Config{Name: name, Role: name + " duties", Provider: "stub", QueueCapacity: 8}, gen)
		member.Start(ctx)
		c.AddMember(member)
	}
	c.Start(ctx)
	return c
}

func coordinateCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCoordinate_EmptyTargetsAddressesAllMembers(t *testing.T) {
	gen := &stubGenerator{}
	c := newTestCoordinator(t, gen, "Alpha", "Beta", "Gamma")

	results, err := c.Coordinate(coordinateCtx(t), "review the plan", nil)
	if err != nil {
		t.Fatalf("Coordinate: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3: %v", len(results), results)
	}
	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		response, ok := results[name]
		if !ok {
			t.Errorf("no result for %s", name)
			continue
		}
		if !strings.Contains(response, "Coordination task: review the plan") {
			t.Errorf("%s response = %q, want coordination wrapper in echoed prompt", name, response)
		}
	}
}

func TestCoordinate_SkipsUnknownMembers(t *testing.T) {
	gen := &stubGenerator{}
	c := newTestCoordinator(t, gen, "Alpha")

	results, err := c.Coordinate(coordinateCtx(t), "anything", []string{"Alpha", "Nobody"})
	if err != nil {
		t.Fatalf("Coordinate: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: %v", len(results), results)
	}
	if _, ok := results["Nobody"]; ok {
		t.Error("unknown member appeared in results")
	}
}

func TestCoordinate_RecordsMemberError(t *testing.T) {
	gen := &stubGenerator{
		respond: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Beta duties") {
				return "", errors.New("no capacity")
			}
			return "done", nil
		},
	}
	c := newTestCoordinator(t, gen, "Alpha", "Beta")

	results, err := c.Coordinate(coordinateCtx(t), "split the work", nil)
	if err != nil {
		t.Fatalf("Coordinate: %v", err)
	}
	if results["Alpha"] != "done" {
		t.Errorf("Alpha = %q, want done", results["Alpha"])
	}
	if !strings.HasPrefix(results["Beta"], "Error: ") {
		t.Errorf("Beta = %q, want error entry", results["Beta"])
	}
}

func TestCoordinate_PlaceholderForEmptyResult(t *testing.T) {
	gen := &stubGenerator{
		respond: func(string) (string, error) { return "", nil },
	}
	c := newTestCoordinator(t, gen, "Alpha")

	results, err := c.Coordinate(coordinateCtx(t), "anything", nil)
	if err != nil {
		t.Fatalf("Coordinate: %v", err)
	}
	if results["Alpha"] != noResult {
		t.Errorf("Alpha = %q, want %q", results["Alpha"], noResult)
	}
}

func TestCoordinate_ContextExpiry(t *testing.T) {
	gen := &stubGenerator{}
	c := NewCoordinator(gen, "stub", 10, 8)

	// Member is never started, so its task never finishes.
	stalled := New(Config{Name: "Stalled", Provider: "stub", QueueCapacity: 8}, gen)
	c.AddMember(stalled)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Coordinate(ctx, "anything", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Coordinate = %v, want deadline exceeded", err)
	}
}

func TestMemberNames_Sorted(t *testing.T) {
	gen := &stubGenerator{}
	c := newTestCoordinator(t, gen, "Zulu", "Alpha", "Mike")

	got := c.MemberNames()
	want := []string{"Alpha", "Mike", "Zulu"}
	if len(got) != len(want) {
		t.Fatalf("MemberNames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MemberNames = %v, want %v", got, want)
		}
	}
}
