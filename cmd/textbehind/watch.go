package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	textbehind "github.com/menta2k/text-behind-image"
	"github.com/menta2k/text-behind-image/internal/config"
)

const watchDebounce = 300 * time.Millisecond

var watchOpts renderOptions

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-render whenever the placements file changes",
	Long: `Watch renders once, then re-renders every time the --placements file is
written. The segmentation model stays loaded between renders.`,
	Example: `  textbehind watch --in photo.jpg --placements texts.json --blur 6`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchOpts.placements == "" {
			return fmt.Errorf("--placements is required")
		}
		return runWatch(cmd.Context(), cmd, watchOpts)
	},
}

func init() {
	addRenderFlags(watchCmd, &watchOpts)
}

func runWatch(ctx context.Context, cmd *cobra.Command, o renderOptions) error {
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

	target, err := filepath.Abs(o.placements)
	if err != nil {
		return fmt.Errorf("bad placements path %q: %w", o.placements, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace files by rename, so watch the directory
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	rerender(ctx, cmd, editor, cfg, o)
	slog.Info("Watching placements", slog.String("path", target))

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if abs, _ := filepath.Abs(event.Name); abs != target {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			rerender(ctx, cmd, editor, cfg, o)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", slog.Any("error", err))
		}
	}
}

func rerender(ctx context.Context, cmd *cobra.Command, editor *textbehind.Editor, cfg *config.Config, o renderOptions) {
	path, err := renderOnce(ctx, cmd, editor, cfg, o)
	if err != nil {
		slog.Warn("Render failed", slog.Any("error", err))
		return
	}
	slog.Info("Render saved", slog.String("path", path))
}
