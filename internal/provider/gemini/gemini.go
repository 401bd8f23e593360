// Package gemini implements provider.Provider using the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/crewforge/crewforge/internal/provider"
)

// Provider wraps a genai client bound to a single model.
type Provider struct {
	client *genai.Client
	model  string
}

// Verify interface compliance.
var _ provider.Provider = (*Provider)(nil)

// New creates a Gemini provider. The model name selects which Gemini
// model serves every call (e.g. "gemini-2.0-flash").
func New(ctx context.Context, apiKey, model string) (*Provider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "gemini" }

// Close releases the underlying client.
func (p *Provider) Close() error { return p.client.Close() }

// Generate produces one complete response.
func (p *Provider) Generate(ctx context.Context, system string, history []provider.Message, prompt string) (*provider.Response, error) {
	cs := p.chatSession(system, history)

	resp, err := cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	return &provider.Response{
		Content:  responseText(resp),
		Provider: p.Name(),
		Model:    p.model,
	}, nil
}

// GenerateStream produces a response as an ordered sequence of text
// fragments.
func (p *Provider) GenerateStream(ctx context.Context, system string, history []provider.Message, prompt string) (provider.Stream, error) {
	cs := p.chatSession(system, history)
	iter := cs.SendMessageStream(ctx, genai.Text(prompt))
	return &stream{iter: iter}, nil
}

// chatSession builds a chat session carrying the system instruction and
// prior conversation turns.
func (p *Provider) chatSession(system string, history []provider.Message) *genai.ChatSession {
	gm := p.client.GenerativeModel(p.model)
	if system != "" {
		gm.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	cs := gm.StartChat()
	for _, msg := range history {
		role := "user"
		if msg.Role == provider.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return cs
}

// responseText concatenates the text parts of all candidates.
func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
	}
	return b.String()
}

// stream adapts the genai response iterator to provider.Stream.
type stream struct {
	iter *genai.GenerateContentResponseIterator
}

func (s *stream) Recv() (string, error) {
	for {
		resp, err := s.iter.Next()
		if err == iterator.Done {
			return "", io.EOF
		}
		if err != nil {
			slog.Debug("gemini stream error", "error", err)
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		if text := responseText(resp); text != "" {
			return text, nil
		}
		// Chunk carried no text (e.g. safety metadata only) — keep reading.
	}
}

func (s *stream) Close() error { return nil }
