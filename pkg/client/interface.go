package client

import (
	"context"

	"github.com/menta2k/text-behind-image/pkg/types"
)

// VisionClient is a vision-language model backend able to locate the
// dominant subject of an image.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	LocateSubject(ctx context.Context, model, prompt, imgB64 string) (*types.SubjectResult, error)
}
