package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Features FeaturesConfig `yaml:"features"`
	Classes  []ClassConfig  `yaml:"classes"`
	Train    TrainConfig    `yaml:"train"`
	Output   OutputConfig   `yaml:"output"`
	Hotkey   HotkeyConfig   `yaml:"hotkey"`
	Storage  StorageConfig  `yaml:"storage"`
	LogLevel string         `yaml:"log_level"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
}

// FeaturesConfig holds embedding front-end settings.
type FeaturesConfig struct {
	WindowSamples int     `yaml:"window_samples"`
	NumBands      int     `yaml:"num_bands"`
	EmbeddingDim  int     `yaml:"embedding_dim"`
	Seed          uint64  `yaml:"seed"`
	OverlapFactor float64 `yaml:"overlap_factor"`
}

// ClassConfig describes one trainable class. Its position in Config.Classes
// is its label.
type ClassConfig struct {
	Name   string   `yaml:"name"`
	Keys   []string `yaml:"keys"`
	Effect string   `yaml:"effect"` // "increment", "decrement" or "none"
}

// TrainConfig holds classifier training settings.
type TrainConfig struct {
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	Seed         uint64  `yaml:"seed"`
}

// OutputConfig holds slider settings.
type OutputConfig struct {
	Step    float64 `yaml:"step"`
	Initial float64 `yaml:"initial"`
	KeyTap  bool    `yaml:"keytap"` // forward increments/decrements as arrow key taps
}

// HotkeyConfig holds the non-class hotkeys.
type HotkeyConfig struct {
	Train  []string `yaml:"train"`
	Listen []string `yaml:"listen"`
}

// StorageConfig selects where collected examples are persisted.
type StorageConfig struct {
	Backend  string `yaml:"backend"` // "memory", "badger" or "redis"
	Dir      string `yaml:"dir"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
	AutoLoad bool   `yaml:"autoload"`
}

// NumClasses returns the number of configured classes.
func (c *Config) NumClasses() int {
	return len(c.Classes)
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-slider")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultDataDir returns the default directory for on-disk storage.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "gostt-slider", "badger")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		Features: FeaturesConfig{
			WindowSamples: 16000,
			NumBands:      64,
			EmbeddingDim:  2000,
			Seed:          1,
			OverlapFactor: 0.95,
		},
		Classes: []ClassConfig{
			{Name: "up", Keys: []string{"ctrl", "shift", "u"}, Effect: "increment"},
			{Name: "down", Keys: []string{"ctrl", "shift", "d"}, Effect: "decrement"},
			{Name: "noise", Keys: []string{"ctrl", "shift", "n"}, Effect: "none"},
		},
		Train: TrainConfig{
			Epochs:       15,
			BatchSize:    10,
			LearningRate: 0.1,
			Seed:         1,
		},
		Output: OutputConfig{
			Step: 0.1,
		},
		Hotkey: HotkeyConfig{
			Train:  []string{"ctrl", "shift", "t"},
			Listen: []string{"ctrl", "shift", "l"},
		},
		Storage: StorageConfig{
			Backend: "memory",
			Dir:     DefaultDataDir(),
			Addr:    "localhost:6379",
			Prefix:  "gostt-slider",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in storage.dir is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Storage.Dir = expandTilde(cfg.Storage.Dir)
	for i := range cfg.Classes {
		if cfg.Classes[i].Effect == "" {
			cfg.Classes[i].Effect = "none"
		}
	}

	return cfg, nil
}

// WriteDefault writes the default config to DefaultConfigPath. If a file
// already exists there it is left untouched and ("", nil) is returned.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# gostt-slider configuration\n")
	buf.WriteString("# Each entry in classes is one label, in order (0, 1, 2, ...).\n\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Features.WindowSamples < 512 {
		return fmt.Errorf("features.window_samples must be >= 512, got %d", c.Features.WindowSamples)
	}

	if c.Features.NumBands <= 0 || c.Features.NumBands > 257 {
		return fmt.Errorf("features.num_bands must be in [1, 257], got %d", c.Features.NumBands)
	}

	if c.Features.EmbeddingDim <= 0 {
		return fmt.Errorf("features.embedding_dim must be > 0")
	}

	if c.Features.OverlapFactor < 0 || c.Features.OverlapFactor >= 1 {
		return fmt.Errorf("features.overlap_factor must be in [0, 1), got %v", c.Features.OverlapFactor)
	}

	if len(c.Classes) < 2 {
		return fmt.Errorf("classes must list at least 2 entries, got %d", len(c.Classes))
	}

	for i, cl := range c.Classes {
		if cl.Name == "" {
			return fmt.Errorf("classes[%d].name must not be empty", i)
		}
		if len(cl.Keys) == 0 {
			return fmt.Errorf("classes[%d].keys must not be empty", i)
		}
		switch cl.Effect {
		case "increment", "decrement", "none":
		default:
			return fmt.Errorf("classes[%d].effect must be \"increment\", \"decrement\" or \"none\", got %q", i, cl.Effect)
		}
	}

	if c.Train.Epochs <= 0 {
		return fmt.Errorf("train.epochs must be > 0")
	}

	if c.Train.BatchSize <= 0 {
		return fmt.Errorf("train.batch_size must be > 0")
	}

	if c.Train.LearningRate <= 0 {
		return fmt.Errorf("train.learning_rate must be > 0")
	}

	if c.Output.Step <= 0 {
		return fmt.Errorf("output.step must be > 0")
	}

	if len(c.Hotkey.Train) == 0 {
		return fmt.Errorf("hotkey.train must not be empty")
	}

	if len(c.Hotkey.Listen) == 0 {
		return fmt.Errorf("hotkey.listen must not be empty")
	}

	switch c.Storage.Backend {
	case "memory":
	case "badger":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir must not be empty for badger backend")
		}
	case "redis":
		if c.Storage.Addr == "" {
			return fmt.Errorf("storage.addr must not be empty for redis backend")
		}
	default:
		return fmt.Errorf("storage.backend must be memory, badger, or redis, got %q", c.Storage.Backend)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a log_level string to a slog.Level. Unknown values map to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
