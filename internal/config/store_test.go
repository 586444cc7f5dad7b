package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
)

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "settings.json"))

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defaults := DefaultSettings()
	if cfg != defaults {
		t.Fatalf("expected defaults %+v, got %+v", defaults, cfg)
	}
	if cfg.Engine != EngineWhisperCPP {
		t.Fatalf("unexpected default engine %q", cfg.Engine)
	}
	if cfg.Language != "auto" {
		t.Fatalf("unexpected default language %q", cfg.Language)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	store := NewJSONStore(path)

	want := domain.Settings{
		Engine:    EngineOpenAI,
		ModelPath: "/models/ggml-base.bin",
		OutputDir: "/exports",
		Language:  "en",
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
	}
}

func TestLoadNormalizesStoredValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	payload := `{"engine":"  WhisperCPP ","modelPath":" /models ","outputDir":"","language":"  "}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Engine != EngineWhisperCPP {
		t.Fatalf("expected lowercased engine, got %q", cfg.Engine)
	}
	if cfg.ModelPath != "/models" {
		t.Fatalf("expected trimmed model path, got %q", cfg.ModelPath)
	}

	defaults := DefaultSettings()
	if cfg.OutputDir != defaults.OutputDir {
		t.Fatalf("expected default output dir, got %q", cfg.OutputDir)
	}
	if cfg.Language != "auto" {
		t.Fatalf("expected default language, got %q", cfg.Language)
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewJSONStore(path).Load(); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	cfg := Normalize(domain.Settings{
		Engine:    "OPENAI",
		ModelPath: "/models/base.bin",
		OutputDir: "/out",
		Language:  "de",
	})

	if cfg.Engine != EngineOpenAI {
		t.Fatalf("unexpected engine %q", cfg.Engine)
	}
	if cfg.OutputDir != "/out" || cfg.Language != "de" {
		t.Fatalf("explicit values lost: %+v", cfg)
	}
}
