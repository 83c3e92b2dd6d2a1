package segmentation

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/menta2k/text-behind-image/pkg/client"
	"github.com/menta2k/text-behind-image/pkg/codec"
)

// ModelSegmenter asks a vision-language model where the subject is and
// turns the returned box into an elliptical mask.
type ModelSegmenter struct {
	client  client.VisionClient
	model   string
	maxDim  int
	quality int
	logger  *slog.Logger
}

// NewModelSegmenter creates a segmenter backed by a vision model.
func NewModelSegmenter(c client.VisionClient, model string, logger *slog.Logger) *ModelSegmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelSegmenter{client: c, model: model, maxDim: 768, quality: 85, logger: logger}
}

// labels that mean the model saw nothing worth isolating
var emptyLabels = []string{"none", "no subject", "nothing", "background", "unknown"}

// Segment implements Segmenter. MaxSubjects is honoured trivially since the
// model reports a single primary subject.
func (m *ModelSegmenter) Segment(ctx context.Context, img image.Image, opts Options) (*image.Alpha, error) {
	b64, err := codec.EncodeForModel(img, m.maxDim, m.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	result, err := m.client.LocateSubject(ctx, m.model, client.SubjectPrompt, b64)
	if err != nil {
		return nil, fmt.Errorf("subject location failed: %w", err)
	}

	p := result.Primary
	label := strings.ToLower(strings.TrimSpace(p.Label))
	for _, empty := range emptyLabels {
		if label == empty {
			return nil, ErrNoSubject
		}
	}
	if p.Confidence < opts.Threshold {
		m.logger.Debug("Subject below threshold",
			slog.String("label", p.Label),
			slog.Float64("confidence", p.Confidence),
			slog.Float64("threshold", opts.Threshold))
		return nil, ErrNoSubject
	}
	if p.Box.W <= 0 || p.Box.H <= 0 {
		return nil, ErrNoSubject
	}

	bounds := img.Bounds()
	return EllipseMask(bounds.Dx(), bounds.Dy(), p.Box), nil
}
