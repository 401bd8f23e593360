package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// noResult is the placeholder recorded for a member that reached a
// terminal status without producing a response.
const noResult = "No result provided"

// Coordinator is an agent that also orchestrates a roster of member
// agents: it fans work out across them and gathers their results.
type Coordinator struct {
	*Agent

	mu      sync.RWMutex
	members map[string]*Agent
}

// NewCoordinator creates the team coordinator bound to gen.
func NewCoordinator(gen Generator, providerName string, window, queueCap int) *Coordinator {
	return &Coordinator{
		Agent: New(Config{
			Name:        "Coordinator",
			Role:        "Team Coordination and Orchestration",
			Personality: "ENTJ",
			Provider:    providerName,
			Responsibilities: []string{
				"Distribute work across team members",
				"Aggregate and synthesize team output",
				"Track team progress and surface blockers",
			},
			MemoryWindow:  window,
			QueueCapacity: queueCap,
		}, gen),
		members: make(map[string]*Agent),
	}
}

// AddMember registers a member under its name, replacing any previous
// member with the same name.
func (c *Coordinator) AddMember(a *Agent) {
	c.mu.Lock()
	c.members[a.Name()] = a
	c.mu.Unlock()
	slog.Debug("member added to coordinator", "member", a.Name())
}

// Member returns the member registered under name.
func (c *Coordinator) Member(name string) (*Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.members[name]
	return a, ok
}

// MemberNames returns the names of all members, sorted.
func (c *Coordinator) MemberNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.members))
	for name := range c.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Members returns all member agents keyed by name.
func (c *Coordinator) Members() map[string]*Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*Agent, len(c.members))
	for name, a := range c.members {
		out[name] = a
	}
	return out
}

// Coordinate fans description out to the named members and gathers
// their results. An empty targets list addresses every member. Unknown
// names are skipped. Each addressed member receives its own task,
// wrapped so the member can see it arrived through coordination; all
// tasks are assigned before any result is awaited, so members work
// concurrently. The returned map holds one entry per member that
// actually received a task: the response text on success, the error
// message on failure, or a placeholder when a finished task carried no
// response. Coordinate fails only when ctx expires before every
// outstanding task finishes.
func (c *Coordinator) Coordinate(ctx context.Context, description string, targets []string) (map[string]string, error) {
	if len(targets) == 0 {
		targets = c.MemberNames()
	}

	type pending struct {
		name string
		task *Task
	}
	var assigned []pending

	for _, name := range targets {
		member, ok := c.Member(name)
		if !ok {
			slog.Warn("skipping unknown member", "coordinator", c.Name(), "member", name)
			continue
		}
		task := NewTask("Coordination task: "+description, map[string]any{
			"coordinator":   c.Name(),
			"original_task": description,
		})
		if _, err := member.Assign(task); err != nil {
			slog.Error("coordination assignment failed", "member", name, "error", err)
			continue
		}
		assigned = append(assigned, pending{name: name, task: task})
	}

	results := make(map[string]string, len(assigned))
	for _, p := range assigned {
		if err := p.task.Wait(ctx); err != nil {
			return nil, fmt.Errorf("coordinating %q: %w", p.name, err)
		}
		switch {
		case p.task.Status() == TaskError:
			results[p.name] = fmt.Sprintf("Error: %s", p.task.Err())
		default:
			if text, ok := p.task.Result(); ok {
				results[p.name] = text
			} else {
				results[p.name] = noResult
			}
		}
	}

	slog.Info("coordination complete", "coordinator", c.Name(), "members", len(results))
	return results, nil
}
