package compare

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
)

// Local is an offline Comparer for development. It only compares the raw
// bytes of the two images.
type Local struct{}

func (Local) Compare(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(req.Images) != 2 {
		return Result{}, fmt.Errorf("%w: expected 2 images, got %d", ErrMalformedInput, len(req.Images))
	}
	a, b := req.Images[0], req.Images[1]
	ha, hb := sha256.Sum256(a.Data), sha256.Sum256(b.Data)

	res := Result{Model: "local-bytes"}
	if bytes.Equal(ha[:], hb[:]) {
		res.Similarity = 1
		res.Summary = "The images are byte-for-byte identical."
		return res, nil
	}

	res.Similarity = byteSimilarity(a.Data, b.Data)
	res.Summary = "The images differ."
	if a.ContentType != b.ContentType {
		res.Differences = append(res.Differences, fmt.Sprintf("format: %s vs %s", a.ContentType, b.ContentType))
	}
	if len(a.Data) != len(b.Data) {
		res.Differences = append(res.Differences, fmt.Sprintf("size: %d vs %d bytes", len(a.Data), len(b.Data)))
	}
	return res, nil
}

// byteSimilarity is the share of equal bytes over the longer input.
func byteSimilarity(a, b []byte) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	same := 0
	for i := range min(len(a), len(b)) {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(longest)
}
