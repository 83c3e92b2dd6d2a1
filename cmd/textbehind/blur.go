package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	textbehind "github.com/menta2k/text-behind-image"
	"github.com/menta2k/text-behind-image/internal/utils"
	"github.com/menta2k/text-behind-image/pkg/codec"
)

var blurOpts renderOptions

var blurCmd = &cobra.Command{
	Use:   "blur [images or directories...]",
	Short: "Blur the background around the subject",
	Long: `Blur keeps the foreground subject sharp and blurs the rest of each image.
Directories are searched recursively for image files.`,
	Example: `  textbehind blur --blur 10 --portrait photo.jpg
  textbehind blur --backend ollama --vision-model llava ./photos`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg, blurOpts)
		if err := cfg.Validate(); err != nil {
			return err
		}

		radius := cfg.Isolator.DefaultBlurRadius
		if cmd.Flags().Changed("blur") {
			radius = blurOpts.blur
		}

		editor, err := textbehind.NewWithConfig(editorConfig(cfg), slog.Default())
		if err != nil {
			return err
		}
		defer editor.Close()

		var inputs []string
		for _, arg := range args {
			if utils.DirExists(arg) {
				files, err := utils.ListImageFiles(arg)
				if err != nil {
					return fmt.Errorf("failed to list %s: %w", arg, err)
				}
				inputs = append(inputs, files...)
				continue
			}
			inputs = append(inputs, arg)
		}

		if err := os.MkdirAll(cfg.Output.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		for _, in := range inputs {
			img, err := editor.Load(ctx, in)
			if err != nil {
				slog.Warn("Skipping input", slog.String("input", in), slog.Any("error", err))
				continue
			}
			out := editor.IsolateForeground(ctx, img, radius, blurOpts.portrait)
			base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
			path := utils.OutputPath(in, cfg.Output.OutputDir, cfg.Output.Prefix, base+"_blur", cfg.Output.Format)
			if err := codec.Save(out, path, cfg.Output.Format, cfg.Output.Quality, false); err != nil {
				return fmt.Errorf("failed to save %s: %w", path, err)
			}
			attrs := []any{slog.String("input", in), slog.String("output", path)}
			if info, err := os.Stat(path); err == nil {
				attrs = append(attrs, slog.Int64("bytes", info.Size()))
			}
			slog.Info("Blurred", attrs...)
		}
		return nil
	},
}

func init() {
	f := blurCmd.Flags()
	f.Float64VarP(&blurOpts.blur, "blur", "b", 0, "background blur radius in px (default from config)")
	f.BoolVar(&blurOpts.portrait, "portrait", false, "isolate the subject more aggressively")
	f.StringVarP(&blurOpts.outDir, "out", "o", "", "output directory (default from config)")
	f.StringVar(&blurOpts.format, "format", "", "output format: png|webp|jpg (default from config)")
	f.IntVar(&blurOpts.quality, "quality", 0, "jpg/webp quality 1-100 (default from config)")
	f.StringVar(&blurOpts.backend, "backend", "", "segmentation backend: saliency|ollama|llamacpp")
	f.StringVar(&blurOpts.url, "url", "", "segmentation server URL")
	f.StringVar(&blurOpts.visionModel, "vision-model", "", "vision model name for ollama/llamacpp")
}
