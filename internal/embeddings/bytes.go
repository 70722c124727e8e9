package embeddings

import (
	"context"

	"github.com/fyrsmithlabs/vecsearch/internal/vectorstore"
)

// ProviderBytes selects the ByteEmbedder.
const ProviderBytes = "bytes"

// ByteEmbedder is a placeholder embedding that folds the UTF-8 bytes of the
// input into a fixed number of slots.
//
// Byte b at position i adds b/255 to slot i mod Dimension. There is no
// normalization and no learned weighting, so scores reflect byte
// distribution rather than meaning. Empty text yields the zero vector.
type ByteEmbedder struct{}

// NewByteEmbedder returns a ByteEmbedder.
func NewByteEmbedder() *ByteEmbedder {
	return &ByteEmbedder{}
}

// Embed returns the byte-accumulation vector for text. It never fails.
func (ByteEmbedder) Embed(_ context.Context, text string) (vectorstore.Vector, error) {
	return EmbedBytes(text), nil
}

// Dimension returns vectorstore.Dimension.
func (ByteEmbedder) Dimension() int { return vectorstore.Dimension }

// Name returns ProviderBytes.
func (ByteEmbedder) Name() string { return ProviderBytes }

// EmbedBytes is the pure function behind ByteEmbedder.
func EmbedBytes(text string) vectorstore.Vector {
	v := make(vectorstore.Vector, vectorstore.Dimension)
	for i := 0; i < len(text); i++ {
		v[i%vectorstore.Dimension] += float32(text[i]) / 255.0
	}
	return v
}
