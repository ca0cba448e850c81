package compare

import (
	"context"
	"fmt"
	"slices"
)

// Allowed image content types.
var ContentTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

// Image is one uploaded image.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Request asks for a comparison of exactly two images.
type Request struct {
	Images []Image
	Prompt string
}

// Result is the comparison returned by the inference service.
type Result struct {
	Summary     string   `json:"summary"`
	Similarity  float64  `json:"similarity"`
	Differences []string `json:"differences,omitempty"`
	Model       string   `json:"model,omitempty"`
}

// Comparer compares two images.
type Comparer interface {
	Compare(ctx context.Context, req Request) (Result, error)
}

// Validate checks the request shape. maxBytes limits the size of each image.
func Validate(req Request, maxBytes int64) error {
	if len(req.Images) != 2 {
		return fmt.Errorf("%w: expected 2 images, got %d", ErrMalformedInput, len(req.Images))
	}
	for i, img := range req.Images {
		if len(img.Data) == 0 {
			return fmt.Errorf("%w: image %d is empty", ErrMalformedInput, i+1)
		}
		if maxBytes > 0 && int64(len(img.Data)) > maxBytes {
			return fmt.Errorf("%w: image %d exceeds %d bytes", ErrMalformedInput, i+1, maxBytes)
		}
		if !slices.Contains(ContentTypes, img.ContentType) {
			return fmt.Errorf("%w: image %d has unsupported type %q", ErrMalformedInput, i+1, img.ContentType)
		}
	}
	if len(req.Prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt is longer than %d characters", ErrMalformedInput, MaxPromptLength)
	}
	return nil
}

// MaxPromptLength bounds the optional prompt.
const MaxPromptLength = 2000
