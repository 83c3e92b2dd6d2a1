package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/menta2k/text-behind-image/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if cfg.Isolator.DefaultBlurRadius != 8 || cfg.Segmentation.Threshold != 0.7 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero reference width", func(c *Config) { c.Compositor.ReferenceWidth = 0 }},
		{"unknown font mode", func(c *Config) { c.Compositor.FontMode = "huge" }},
		{"negative blur", func(c *Config) { c.Isolator.DefaultBlurRadius = -1 }},
		{"unknown method", func(c *Config) { c.Isolator.Method = "gaussian" }},
		{"unknown backend", func(c *Config) { c.Segmentation.Backend = "onnx" }},
		{"ollama without model", func(c *Config) { c.Segmentation.Backend = "ollama" }},
		{"threshold above one", func(c *Config) { c.Segmentation.Threshold = 1.5 }},
		{"no subjects", func(c *Config) { c.Segmentation.MaxSubjects = 0 }},
		{"unknown format", func(c *Config) { c.Output.Format = "gif" }},
		{"quality out of range", func(c *Config) { c.Output.Quality = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	cfg := Default()
	cfg.Segmentation.Backend = "llamacpp"
	cfg.Segmentation.Model = "llava"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected llamacpp with a model to validate: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Compositor.FontMode = types.FontModeLarge
	cfg.Isolator.MaskCacheTTL = Duration(90 * time.Second)
	cfg.Output.Format = "webp"

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Compositor.FontMode != types.FontModeLarge || loaded.Output.Format != "webp" {
		t.Errorf("Unexpected loaded config %+v", loaded)
	}
	if time.Duration(loaded.Isolator.MaskCacheTTL) != 90*time.Second {
		t.Errorf("Expected 1m30s TTL, got %v", time.Duration(loaded.Isolator.MaskCacheTTL))
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"isolator": {"default_blur_radius": 12}, "segmentation": {"min_interval": 250000000}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Isolator.DefaultBlurRadius != 12 {
		t.Errorf("Expected blur 12, got %f", cfg.Isolator.DefaultBlurRadius)
	}
	if cfg.Isolator.Method != "bokeh" || cfg.Output.Quality != 90 {
		t.Error("Expected missing fields to keep their defaults")
	}
	if time.Duration(cfg.Segmentation.MinInterval) != 250*time.Millisecond {
		t.Errorf("Expected numeric nanoseconds accepted, got %v", time.Duration(cfg.Segmentation.MinInterval))
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"isolator": {"mask_cache_ttl": "forever"}}`), 0644)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("Expected error for invalid duration")
	}
}

func TestSettings(t *testing.T) {
	cfg := Default()
	cfg.Segmentation.MaxSubjects = 3
	cfg.Segmentation.Backend = "ollama"
	cfg.Segmentation.Model = "llava"

	iso := cfg.IsolatorSettings()
	if iso.MaxSubjects != 3 || iso.Threshold != 0.7 || iso.MaskCacheTTL != 10*time.Minute {
		t.Errorf("Unexpected isolator settings %+v", iso)
	}
	if comp := cfg.CompositorSettings(); comp.ReferenceWidth != 400 || !comp.SoftLightPass {
		t.Errorf("Unexpected compositor settings %+v", comp)
	}
	if b := cfg.BackendSettings(); b.Backend != "ollama" || b.Model != "llava" || b.URL == "" {
		t.Errorf("Unexpected backend settings %+v", b)
	}
}
