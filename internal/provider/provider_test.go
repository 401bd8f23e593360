package provider

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
)

type fakeProvider struct {
	name     string
	lastCall struct {
		system  string
		history []Message
		prompt  string
	}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, system string, history []Message, prompt string) (*Response, error) {
	f.lastCall.system = system
	f.lastCall.history = history
	f.lastCall.prompt = prompt
	return &Response{Content: "from " + f.name, Provider: f.name, Model: "fake"}, nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, system string, history []Message, prompt string) (Stream, error) {
	return &fakeStream{chunks: []string{"from ", f.name}}, nil
}

type fakeStream struct {
	chunks []string
	next   int
}

func (s *fakeStream) Recv() (string, error) {
	if s.next >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.next]
	s.next++
	return chunk, nil
}

func (s *fakeStream) Close() error { return nil }

func TestManager_RegisterAndGet(t *testing.T) {
	m := NewManager()
	p := &fakeProvider{name: "gemini"}
	m.Register(p)

	got, err := m.Get("gemini")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != p {
		t.Error("Get returned a different provider")
	}
}

func TestManager_GetUnknown(t *testing.T) {
	m := NewManager()
	if _, err := m.Get("claude"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("Get = %v, want ErrProviderNotFound", err)
	}
}

func TestManager_RegisterReplaces(t *testing.T) {
	m := NewManager()
	first := &fakeProvider{name: "gemini"}
	second := &fakeProvider{name: "gemini"}
	m.Register(first)
	m.Register(second)

	got, err := m.Get("gemini")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != second {
		t.Error("second registration did not replace the first")
	}
}

func TestManager_GenerateDelegates(t *testing.T) {
	m := NewManager()
	p := &fakeProvider{name: "gemini"}
	m.Register(p)

	history := []Message{{Role: RoleUser, Content: "earlier"}}
	resp, err := m.Generate(context.Background(), "gemini", "be helpful", history, "hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "from gemini" {
		t.Errorf("Content = %q", resp.Content)
	}
	if p.lastCall.system != "be helpful" || p.lastCall.prompt != "hello" {
		t.Errorf("delegated call = %+v", p.lastCall)
	}
	if !reflect.DeepEqual(p.lastCall.history, history) {
		t.Errorf("history = %v, want %v", p.lastCall.history, history)
	}

	if _, err := m.Generate(context.Background(), "missing", "", nil, "x"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("Generate for unknown provider = %v, want ErrProviderNotFound", err)
	}
}

func TestManager_GenerateStreamDelegates(t *testing.T) {
	m := NewManager()
	m.Register(&fakeProvider{name: "gemini"})

	stream, err := m.GenerateStream(context.Background(), "gemini", "", nil, "hello")
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	defer stream.Close()

	var got string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		got += chunk
	}
	if got != "from gemini" {
		t.Errorf("streamed = %q", got)
	}

	if _, err := m.GenerateStream(context.Background(), "missing", "", nil, "x"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("GenerateStream for unknown provider = %v, want ErrProviderNotFound", err)
	}
}

func TestManager_ListSorted(t *testing.T) {
	m := NewManager()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		m.Register(&fakeProvider{name: name})
	}

	got := m.List()
	want := []string{"alpha", "mid", "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}
}
