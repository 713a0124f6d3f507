package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-slider/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gostt-slider",
	Short: "Voice-trained slider control",
	Long: `gostt-slider - teach a small classifier a few spoken words and use it
to move a slider.

Each configured class is one label. Hold a class hotkey while speaking to
collect examples for it, press the train hotkey to fit the classifier, then
press the listen hotkey and speak to move the slider.

Configuration is read from ~/.config/gostt-slider/config.yaml when present.
Use 'gostt-slider config init' to write the defaults there.

Examples:
  # Interactive session with the microphone
  gostt-slider run

  # Offline: collect from recordings, train, then check a clip
  gostt-slider collect --label up --wav up.wav
  gostt-slider collect --label down --wav down.wav
  gostt-slider train
  gostt-slider predict --wav test.wav`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ~/.config/gostt-slider/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults. The result is
// validated.
func loadConfig(path string) (*config.Config, string, error) {
	var (
		cfg    *config.Config
		source string
		err    error
	)
	switch {
	case path != "":
		cfg, err = config.Load(path)
		source = path
	default:
		defaultPath := config.DefaultConfigPath()
		if _, statErr := os.Stat(defaultPath); statErr == nil {
			cfg, err = config.Load(defaultPath)
			source = defaultPath
		} else {
			cfg = config.Default()
			source = "defaults"
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading %s: %w", source, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("config validation: %w", err)
	}
	return cfg, source, nil
}

// newLogger returns a text logger on stderr at the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	level := config.ParseLogLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
