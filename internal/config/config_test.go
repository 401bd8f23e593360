package config

import (
	"log/slog"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", cfg.Provider)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("GeminiModel = %q", cfg.GeminiModel)
	}
	if cfg.MemoryWindow != 10 {
		t.Errorf("MemoryWindow = %d, want 10", cfg.MemoryWindow)
	}
	if cfg.QueueCapacity != 64 {
		t.Errorf("QueueCapacity = %d, want 64", cfg.QueueCapacity)
	}
	if cfg.OpenSpecPath != "./openspec" {
		t.Errorf("OpenSpecPath = %q", cfg.OpenSpecPath)
	}
	if cfg.ArchivePath == "" {
		t.Error("ArchivePath empty, want a default")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CREWFORGE_MEMORY_WINDOW", "5")
	t.Setenv("CREWFORGE_QUEUE_CAPACITY", "16")
	t.Setenv("CREWFORGE_GEMINI_API_KEY", "test-key")
	t.Setenv("CREWFORGE_LOG_LEVEL", "debug")
	t.Setenv("CREWFORGE_OPENSPEC_PATH", "/tmp/specs")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MemoryWindow != 5 {
		t.Errorf("MemoryWindow = %d, want 5", cfg.MemoryWindow)
	}
	if cfg.QueueCapacity != 16 {
		t.Errorf("QueueCapacity = %d, want 16", cfg.QueueCapacity)
	}
	if cfg.GeminiAPIKey != "test-key" {
		t.Errorf("GeminiAPIKey = %q", cfg.GeminiAPIKey)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.OpenSpecPath != "/tmp/specs" {
		t.Errorf("OpenSpecPath = %q", cfg.OpenSpecPath)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
