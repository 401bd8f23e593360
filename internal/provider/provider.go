// Package provider abstracts the text-generation services behind the
// Builder Team. Agents never talk to an AI SDK directly — they go through
// a Manager that resolves a logical provider name (the agent's binding)
// to a registered Provider.
//
// Any provider-level failure (rate limit, auth, timeout) surfaces as a
// plain error; callers treat all of them uniformly as "generation failed".
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Message roles within a conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged entry in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the complete result of a generation call.
type Response struct {
	Content  string `json:"content"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Stream yields response text incrementally. Recv returns io.EOF once the
// stream is fully drained; any other error means the generation failed
// mid-stream. Close releases provider resources and is safe to call after
// either outcome.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Provider is a single text-generation backend.
type Provider interface {
	// Name returns the logical provider identifier (e.g. "gemini").
	Name() string

	// Generate produces one complete response for the given system
	// instruction, bounded conversation history, and new user message.
	Generate(ctx context.Context, system string, history []Message, prompt string) (*Response, error)

	// GenerateStream is the incremental variant of Generate.
	GenerateStream(ctx context.Context, system string, history []Message, prompt string) (Stream, error)
}

// ErrProviderNotFound is returned when an agent's provider binding does
// not resolve to a registered provider.
var ErrProviderNotFound = fmt.Errorf("provider not found")

// Manager resolves logical provider names to registered providers.
// Registration happens once at startup; lookups are read-mostly.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewManager creates an empty provider manager.
func NewManager() *Manager {
	return &Manager{providers: make(map[string]Provider)}
}

// Register adds a provider under its own name, replacing any previous
// registration with the same name.
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (m *Manager) Get(name string) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	return p, nil
}

// Generate resolves name and delegates to the provider.
func (m *Manager) Generate(ctx context.Context, name, system string, history []Message, prompt string) (*Response, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return p.Generate(ctx, system, history, prompt)
}

// GenerateStream resolves name and delegates to the provider.
func (m *Manager) GenerateStream(ctx context.Context, name, system string, history []Message, prompt string) (Stream, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return p.GenerateStream(ctx, system, history, prompt)
}

// List returns the names of all registered providers, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
