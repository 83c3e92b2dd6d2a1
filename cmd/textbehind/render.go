package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	textbehind "github.com/menta2k/text-behind-image"
	"github.com/menta2k/text-behind-image/internal/config"
	"github.com/menta2k/text-behind-image/internal/utils"
	"github.com/menta2k/text-behind-image/pkg/codec"
	"github.com/menta2k/text-behind-image/pkg/types"
)

type renderOptions struct {
	in          string
	placements  string
	text        string
	x, y        float64
	fontSize    int
	color       string
	overlay     bool
	blur        float64
	portrait    bool
	large       bool
	model       string
	outDir      string
	format      string
	quality     int
	backend     string
	url         string
	visionModel string
	record      bool
}

var renderOpts renderOptions

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render text placements onto an image",
	Long: `Render loads an image, applies the optional background blur and draws
every placement from --placements (a JSON array) and --text, in order.`,
	Example: `  textbehind render --in photo.jpg --text HELLO --blur 8
  textbehind render --in https://example.com/a.png --placements texts.json --format webp`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRender(cmd.Context(), cmd, renderOpts)
	},
}

func init() {
	addRenderFlags(renderCmd, &renderOpts)
	renderCmd.Flags().BoolVar(&renderOpts.record, "record", false, "also write the history entry as JSON next to the image")
}

func addRenderFlags(cmd *cobra.Command, o *renderOptions) {
	f := cmd.Flags()
	f.StringVarP(&o.in, "in", "i", "", "input image path, data URI or http(s) URL")
	f.StringVarP(&o.placements, "placements", "p", "", "JSON file with an array of text placements")
	f.StringVarP(&o.text, "text", "t", "", "add a single placement with this text")
	f.Float64Var(&o.x, "x", 50, "x position of --text in percent")
	f.Float64Var(&o.y, "y", 50, "y position of --text in percent")
	f.IntVar(&o.fontSize, "font-size", types.DefaultFontSize, "font size of --text")
	f.StringVar(&o.color, "color", types.DefaultColor, "colour of --text")
	f.BoolVar(&o.overlay, "overlay", false, "draw --text in front of the subject")
	f.Float64VarP(&o.blur, "blur", "b", -1, "background blur radius in px (default from config, 0 disables)")
	f.BoolVar(&o.portrait, "portrait", false, "isolate the subject more aggressively")
	f.BoolVar(&o.large, "large", false, "use large-text font sizing")
	f.StringVar(&o.model, "model", "", "strategy id recorded on the result")
	f.StringVarP(&o.outDir, "out", "o", "", "output directory (default from config)")
	f.StringVar(&o.format, "format", "", "output format: png|webp|jpg (default from config)")
	f.IntVar(&o.quality, "quality", 0, "jpg/webp quality 1-100 (default from config)")
	f.StringVar(&o.backend, "backend", "", "segmentation backend: saliency|ollama|llamacpp")
	f.StringVar(&o.url, "url", "", "segmentation server URL")
	f.StringVar(&o.visionModel, "vision-model", "", "vision model name for ollama/llamacpp")
	_ = cmd.MarkFlagRequired("in")
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config, o renderOptions) {
	flags := cmd.Flags()
	if flags.Changed("large") && o.large {
		cfg.Compositor.FontMode = types.FontModeLarge
	}
	if flags.Changed("out") {
		cfg.Output.OutputDir = o.outDir
	}
	if flags.Changed("format") {
		cfg.Output.Format = strings.ToLower(o.format)
	}
	if flags.Changed("quality") {
		cfg.Output.Quality = o.quality
	}
	if flags.Changed("backend") {
		cfg.Segmentation.Backend = o.backend
	}
	if flags.Changed("url") {
		cfg.Segmentation.URL = o.url
	}
	if flags.Changed("vision-model") {
		cfg.Segmentation.Model = o.visionModel
	}
}

func editorConfig(cfg *config.Config) textbehind.Config {
	ec := textbehind.DefaultConfig()
	ec.Compositor = cfg.CompositorSettings()
	ec.Isolator = cfg.IsolatorSettings()
	ec.Segmentation = cfg.BackendSettings()
	return ec
}

// loadPlacements reads a JSON array of placements.
func loadPlacements(path string) ([]types.TextPlacement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read placements: %w", err)
	}
	var ps []types.TextPlacement
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("failed to parse placements %s: %w", path, err)
	}
	return ps, nil
}

func runRender(ctx context.Context, cmd *cobra.Command, o renderOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg, o)
	if err := cfg.Validate(); err != nil {
		return err
	}

	editor, err := textbehind.NewWithConfig(editorConfig(cfg), slog.Default())
	if err != nil {
		return err
	}
	defer editor.Close()

	path, err := renderOnce(ctx, cmd, editor, cfg, o)
	if err != nil {
		return err
	}
	slog.Info("Render saved", slog.String("path", path))
	return nil
}

// renderOnce uploads the input, applies placements and writes the result.
func renderOnce(ctx context.Context, cmd *cobra.Command, editor *textbehind.Editor, cfg *config.Config, o renderOptions) (string, error) {
	ok, err := editor.Upload(ctx, o.in)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s is not an image", o.in)
	}

	s := editor.Session()
	if o.model != "" {
		if err := s.SetModel(o.model); err != nil {
			return "", err
		}
	}
	radius := cfg.Isolator.DefaultBlurRadius
	if cmd.Flags().Changed("blur") {
		radius = o.blur
	}
	s.SetBlurRadius(radius)
	s.SetPortrait(o.portrait)

	if o.placements != "" {
		ps, err := loadPlacements(o.placements)
		if err != nil {
			return "", err
		}
		if _, err := s.Import(ps); err != nil {
			return "", err
		}
	}
	if o.text != "" {
		p, err := s.Add(o.text, o.x, o.y)
		if err != nil {
			return "", err
		}
		behind := !o.overlay
		if _, err := s.Update(p.ID, types.PlacementPatch{
			FontSize:     &o.fontSize,
			Color:        &o.color,
			BehindObject: &behind,
		}); err != nil {
			return "", err
		}
	}
	if len(s.Placements()) == 0 {
		return "", fmt.Errorf("nothing to render: pass --text or --placements")
	}

	if err := os.MkdirAll(cfg.Output.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	name := strings.TrimSuffix(codec.ExportFilename(time.Now()), ".png")
	out := utils.OutputPath(o.in, cfg.Output.OutputDir, cfg.Output.Prefix, name, cfg.Output.Format)

	if o.record {
		result, err := s.Generate(ctx)
		if err != nil {
			return "", err
		}
		frame, _ := s.LastFrame()
		if err := codec.Save(frame.Image, out, cfg.Output.Format, cfg.Output.Quality, false); err != nil {
			return "", err
		}
		return out, writeRecord(out, result)
	}

	frame, err := s.Render(ctx)
	if err != nil {
		return "", err
	}
	if err := codec.Save(frame.Image, out, cfg.Output.Format, cfg.Output.Quality, false); err != nil {
		return "", err
	}
	return out, nil
}

// writeRecord stores the history entry without its inline images.
func writeRecord(imagePath string, result types.ProcessedResult) error {
	result.OriginalImage = ""
	result.ProcessedImage = imagePath
	result.Thumbnail = ""
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	path := strings.TrimSuffix(imagePath, "."+utils.GetFileExtension(imagePath)) + ".json"
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	slog.Info("Record saved", slog.String("path", path), slog.String("prompt", result.Prompt))
	return nil
}
