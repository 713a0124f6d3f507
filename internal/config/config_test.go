package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Audio.SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("Audio.Channels = %d, want 1", cfg.Audio.Channels)
	}
	if cfg.Features.EmbeddingDim != 2000 {
		t.Errorf("Features.EmbeddingDim = %d, want 2000", cfg.Features.EmbeddingDim)
	}
	if cfg.Features.OverlapFactor != 0.95 {
		t.Errorf("Features.OverlapFactor = %v, want 0.95", cfg.Features.OverlapFactor)
	}
	if cfg.NumClasses() != 3 {
		t.Errorf("NumClasses() = %d, want 3", cfg.NumClasses())
	}
	if cfg.Classes[2].Effect != "none" {
		t.Errorf("Classes[2].Effect = %q, want %q", cfg.Classes[2].Effect, "none")
	}
	if cfg.Train.Epochs != 15 || cfg.Train.BatchSize != 10 {
		t.Errorf("Train = %+v, want epochs 15 batch 10", cfg.Train)
	}
	if cfg.Output.Step != 0.1 {
		t.Errorf("Output.Step = %v, want 0.1", cfg.Output.Step)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "memory")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
audio:
  sample_rate: 44100
  channels: 2
features:
  overlap_factor: 0.5
classes:
  - name: louder
    keys: ["alt", "1"]
    effect: increment
  - name: quieter
    keys: ["alt", "2"]
    effect: decrement
train:
  epochs: 3
storage:
  backend: redis
  addr: redis.local:6379
log_level: debug
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("Audio.SampleRate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 2 {
		t.Errorf("Audio.Channels = %d, want 2", cfg.Audio.Channels)
	}
	if cfg.Features.OverlapFactor != 0.5 {
		t.Errorf("Features.OverlapFactor = %v, want 0.5", cfg.Features.OverlapFactor)
	}
	if cfg.Features.EmbeddingDim != 2000 {
		t.Errorf("Features.EmbeddingDim = %d, want default 2000", cfg.Features.EmbeddingDim)
	}
	if cfg.NumClasses() != 2 || cfg.Classes[0].Name != "louder" {
		t.Errorf("Classes = %+v, want [louder quieter]", cfg.Classes)
	}
	if cfg.Train.Epochs != 3 {
		t.Errorf("Train.Epochs = %d, want 3", cfg.Train.Epochs)
	}
	if cfg.Train.BatchSize != 10 {
		t.Errorf("Train.BatchSize = %d, want default 10", cfg.Train.BatchSize)
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.Addr != "redis.local:6379" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	yamlContent := `
storage:
  backend: badger
  dir: ~/data/slider
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := filepath.Join(home, "data/slider")
	if cfg.Storage.Dir != expected {
		t.Errorf("Storage.Dir = %q, want %q", cfg.Storage.Dir, expected)
	}
}

func TestLoadDefaultsOmittedEffect(t *testing.T) {
	yamlContent := `
classes:
  - name: up
    keys: [ctrl, shift, u]
    effect: increment
  - name: background
    keys: [ctrl, shift, b]
`
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Classes[1].Effect != "none" {
		t.Errorf("Classes[1].Effect = %q, want \"none\"", cfg.Classes[1].Effect)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil for an omitted effect", err)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("classes: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() should return error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero sample rate",
			modify:  func(c *Config) { c.Audio.SampleRate = 0 },
			wantErr: true,
		},
		{
			name:    "zero channels",
			modify:  func(c *Config) { c.Audio.Channels = 0 },
			wantErr: true,
		},
		{
			name:    "window too short",
			modify:  func(c *Config) { c.Features.WindowSamples = 100 },
			wantErr: true,
		},
		{
			name:    "too many bands",
			modify:  func(c *Config) { c.Features.NumBands = 300 },
			wantErr: true,
		},
		{
			name:    "overlap of one",
			modify:  func(c *Config) { c.Features.OverlapFactor = 1 },
			wantErr: true,
		},
		{
			name:    "single class",
			modify:  func(c *Config) { c.Classes = c.Classes[:1] },
			wantErr: true,
		},
		{
			name:    "class without keys",
			modify:  func(c *Config) { c.Classes[1].Keys = nil },
			wantErr: true,
		},
		{
			name:    "invalid effect",
			modify:  func(c *Config) { c.Classes[0].Effect = "sideways" },
			wantErr: true,
		},
		{
			name:    "zero epochs",
			modify:  func(c *Config) { c.Train.Epochs = 0 },
			wantErr: true,
		},
		{
			name:    "zero batch size",
			modify:  func(c *Config) { c.Train.BatchSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero step",
			modify:  func(c *Config) { c.Output.Step = 0 },
			wantErr: true,
		},
		{
			name:    "empty listen hotkey",
			modify:  func(c *Config) { c.Hotkey.Listen = nil },
			wantErr: true,
		},
		{
			name:    "badger without dir",
			modify:  func(c *Config) { c.Storage.Backend = "badger"; c.Storage.Dir = "" },
			wantErr: true,
		},
		{
			name:    "unknown storage backend",
			modify:  func(c *Config) { c.Storage.Backend = "sqlite" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "invalid" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	expectedPath := filepath.Join(tmpHome, ".config", "gostt-slider", "config.yaml")
	if path != expectedPath {
		t.Errorf("WriteDefault() path = %q, want %q", path, expectedPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}

	if !strings.HasPrefix(string(data), "# gostt-slider") {
		t.Error("written config should start with header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.NumClasses() != 3 {
		t.Errorf("written config has %d classes, want 3", cfg.NumClasses())
	}
	if cfg.Train.LearningRate != 0.1 {
		t.Errorf("written config Train.LearningRate = %v, want 0.1", cfg.Train.LearningRate)
	}
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "gostt-slider")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	existingContent := []byte("log_level: debug\n")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, existingContent, 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteDefault() path = %q, want empty string for existing file", path)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != string(existingContent) {
		t.Error("WriteDefault() should not overwrite existing config file")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
