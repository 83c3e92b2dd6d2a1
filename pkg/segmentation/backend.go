package segmentation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/menta2k/text-behind-image/pkg/client"
	"github.com/menta2k/text-behind-image/pkg/llamacpp"
	"github.com/menta2k/text-behind-image/pkg/ollama"
	"github.com/menta2k/text-behind-image/pkg/vision"
)

// Backend names accepted by NewLoader.
const (
	BackendSaliency = "saliency"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// BackendConfig selects and addresses a segmentation backend.
type BackendConfig struct {
	Backend string
	URL     string
	Model   string
}

// NewLoader returns a Loader constructing the configured backend. Nothing
// is contacted until the loader runs.
func NewLoader(cfg BackendConfig, logger *slog.Logger) (Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case BackendSaliency, "":
		return func(context.Context) (Segmenter, error) {
			return NewSaliencySegmenter(vision.New()), nil
		}, nil
	case BackendOllama, BackendLlamaCpp:
		if cfg.Model == "" {
			return nil, fmt.Errorf("backend %s requires a model name", cfg.Backend)
		}
	default:
		return nil, fmt.Errorf("unsupported segmentation backend %q", cfg.Backend)
	}

	return func(ctx context.Context) (Segmenter, error) {
		var (
			c   client.VisionClient
			err error
		)
		if cfg.Backend == BackendOllama {
			c, err = ollama.NewClient(cfg.URL)
		} else {
			c, err = llamacpp.NewClient(cfg.URL)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", cfg.Backend, err)
		}
		logger.Info("Segmentation backend ready",
			slog.String("backend", cfg.Backend),
			slog.String("model", cfg.Model))
		return NewModelSegmenter(c, cfg.Model, logger), nil
	}, nil
}
