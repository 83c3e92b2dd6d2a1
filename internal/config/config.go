package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/text-behind-image/pkg/compositor"
	"github.com/menta2k/text-behind-image/pkg/isolator"
	"github.com/menta2k/text-behind-image/pkg/segmentation"
	"github.com/menta2k/text-behind-image/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Compositor   CompositorConfig   `json:"compositor"`
	Isolator     IsolatorConfig     `json:"isolator"`
	Segmentation SegmentationConfig `json:"segmentation"`
	Output       OutputConfig       `json:"output"`
}

// CompositorConfig holds configuration for text compositing
type CompositorConfig struct {
	ReferenceWidth float64        `json:"reference_width"`
	LargeTextMinPx float64        `json:"large_text_min_px"`
	FontMode       types.FontMode `json:"font_mode"`
	SoftLightPass  bool           `json:"soft_light_pass"`
}

// IsolatorConfig holds configuration for background blur
type IsolatorConfig struct {
	DefaultBlurRadius float64  `json:"default_blur_radius"`
	EdgeBlurMax       float64  `json:"edge_blur_max"`
	Method            string   `json:"method"`
	Mirror            bool     `json:"mirror"`
	MaskCacheTTL      Duration `json:"mask_cache_ttl"`
}

// SegmentationConfig holds configuration for the segmentation backend
type SegmentationConfig struct {
	Backend           string   `json:"backend"`
	URL               string   `json:"url"`
	Model             string   `json:"model"`
	Threshold         float64  `json:"threshold"`
	PortraitThreshold float64  `json:"portrait_threshold"`
	MaxSubjects       int      `json:"max_subjects"`
	MinInterval       Duration `json:"min_interval"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `json:"format"`
	Quality   int    `json:"quality"`
	OutputDir string `json:"output_dir"`
	Prefix    string `json:"prefix"`
}

// Duration is a time.Duration encoded as a string such as "10m" in JSON.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(n)
	return nil
}

// Default returns a configuration with default values
func Default() *Config {
	comp := compositor.DefaultConfig()
	iso := isolator.DefaultConfig()
	return &Config{
		Compositor: CompositorConfig{
			ReferenceWidth: comp.ReferenceWidth,
			LargeTextMinPx: comp.LargeTextMinPx,
			FontMode:       comp.FontMode,
			SoftLightPass:  comp.SoftLightPass,
		},
		Isolator: IsolatorConfig{
			DefaultBlurRadius: iso.DefaultBlurRadius,
			EdgeBlurMax:       iso.EdgeBlurMax,
			Method:            iso.Method,
			Mirror:            iso.Mirror,
			MaskCacheTTL:      Duration(iso.MaskCacheTTL),
		},
		Segmentation: SegmentationConfig{
			Backend:           segmentation.BackendSaliency,
			URL:               "http://localhost:11434",
			Model:             "",
			Threshold:         iso.Threshold,
			PortraitThreshold: iso.PortraitThreshold,
			MaxSubjects:       iso.MaxSubjects,
			MinInterval:       Duration(iso.MinInterval),
		},
		Output: OutputConfig{
			Format:    "png",
			Quality:   90,
			OutputDir: "./output",
			Prefix:    "",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from
// the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Compositor.ReferenceWidth <= 0 {
		return fmt.Errorf("compositor.reference_width must be positive")
	}

	if c.Compositor.LargeTextMinPx < 0 {
		return fmt.Errorf("compositor.large_text_min_px cannot be negative")
	}

	if c.Compositor.FontMode != types.FontModeBase && c.Compositor.FontMode != types.FontModeLarge {
		return fmt.Errorf("compositor.font_mode must be %q or %q", types.FontModeBase, types.FontModeLarge)
	}

	if c.Isolator.DefaultBlurRadius < 0 {
		return fmt.Errorf("isolator.default_blur_radius cannot be negative")
	}

	if c.Isolator.EdgeBlurMax < 0 {
		return fmt.Errorf("isolator.edge_blur_max cannot be negative")
	}

	if c.Isolator.Method != isolator.MethodBokeh && c.Isolator.Method != isolator.MethodMask {
		return fmt.Errorf("isolator.method must be %q or %q", isolator.MethodBokeh, isolator.MethodMask)
	}

	switch c.Segmentation.Backend {
	case segmentation.BackendSaliency:
	case segmentation.BackendOllama, segmentation.BackendLlamaCpp:
		if c.Segmentation.Model == "" {
			return fmt.Errorf("segmentation.model is required for backend %s", c.Segmentation.Backend)
		}
	default:
		return fmt.Errorf("segmentation.backend must be saliency, ollama or llamacpp")
	}

	if c.Segmentation.Threshold < 0 || c.Segmentation.Threshold > 1 {
		return fmt.Errorf("segmentation.threshold must be between 0 and 1")
	}

	if c.Segmentation.PortraitThreshold < 0 || c.Segmentation.PortraitThreshold > 1 {
		return fmt.Errorf("segmentation.portrait_threshold must be between 0 and 1")
	}

	if c.Segmentation.MaxSubjects < 1 {
		return fmt.Errorf("segmentation.max_subjects must be at least 1")
	}

	switch c.Output.Format {
	case "png", "webp", "jpg", "jpeg":
	default:
		return fmt.Errorf("output.format must be png, webp or jpg")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// CompositorSettings converts the compositor section.
func (c *Config) CompositorSettings() compositor.Config {
	return compositor.Config{
		ReferenceWidth: c.Compositor.ReferenceWidth,
		LargeTextMinPx: c.Compositor.LargeTextMinPx,
		FontMode:       c.Compositor.FontMode,
		SoftLightPass:  c.Compositor.SoftLightPass,
	}
}

// IsolatorSettings converts the isolator and segmentation sections.
func (c *Config) IsolatorSettings() isolator.Config {
	return isolator.Config{
		DefaultBlurRadius: c.Isolator.DefaultBlurRadius,
		EdgeBlurMax:       c.Isolator.EdgeBlurMax,
		Method:            c.Isolator.Method,
		Mirror:            c.Isolator.Mirror,
		Threshold:         c.Segmentation.Threshold,
		PortraitThreshold: c.Segmentation.PortraitThreshold,
		MaxSubjects:       c.Segmentation.MaxSubjects,
		MaskCacheTTL:      time.Duration(c.Isolator.MaskCacheTTL),
		MinInterval:       time.Duration(c.Segmentation.MinInterval),
	}
}

// BackendSettings converts the segmentation backend selection.
func (c *Config) BackendSettings() segmentation.BackendConfig {
	return segmentation.BackendConfig{
		Backend: c.Segmentation.Backend,
		URL:     c.Segmentation.URL,
		Model:   c.Segmentation.Model,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "text-behind-image", "config.json")
}
