package ai

import (
	"context"
	"crypto/md5"
)

// DefaultHashDimensions matches the size of common sentence embedding models.
const DefaultHashDimensions = 384

// HashEmbedder derives a deterministic vector from the MD5 digest of the
// input. Equal texts map to equal vectors but similar texts do not map to
// nearby vectors, so search quality is poor. It is used when no embedding
// endpoint is configured.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimensions
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Dimensions() int { return h.dim }

// GenerateEmbedding cycles through the 16 digest bytes, scaling each byte b
// to (b-128)/128.
func (h *HashEmbedder) GenerateEmbedding(_ context.Context, input []byte) ([]float32, error) {
	sum := md5.Sum(input)
	out := make([]float32, h.dim)
	for i := range out {
		out[i] = (float32(sum[i%len(sum)]) - 128) / 128
	}
	return out, nil
}
