package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
)

// Engine names accepted in settings.
const (
	EngineWhisperCPP = "whispercpp"
	EngineOpenAI     = "openai"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		Engine:    EngineWhisperCPP,
		ModelPath: filepath.Join(homeDir, ".whisper-watch", "models"),
		OutputDir: filepath.Join(homeDir, "Downloads", "WhisperWatch"),
		Language:  "auto",
	}
}

// Normalize trims user inputs and applies defaults for empty fields.
func Normalize(cfg domain.Settings) domain.Settings {
	cfg.Engine = strings.ToLower(strings.TrimSpace(cfg.Engine))
	cfg.ModelPath = strings.TrimSpace(cfg.ModelPath)
	cfg.OutputDir = strings.TrimSpace(cfg.OutputDir)
	cfg.Language = strings.TrimSpace(cfg.Language)

	defaults := DefaultSettings()
	if cfg.Engine == "" {
		cfg.Engine = defaults.Engine
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaults.OutputDir
	}
	if cfg.Language == "" {
		cfg.Language = defaults.Language
	}
	return cfg
}
