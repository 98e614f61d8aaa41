package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultHashDimensions = 384

// Hash is an offline embedder using signed feature hashing over lowercase
// word tokens. Vectors are L2-normalised so lexical overlap dominates L2
// distance. It needs no model server and is deterministic.
type Hash struct {
	dim int
}

// NewHash creates a hashing embedder. dim <= 0 selects DefaultHashDimensions.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = DefaultHashDimensions
	}
	return &Hash{dim: dim}
}

// Embed never fails unless ctx is already done.
func (h *Hash) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.embed(text)
	}
	return vectors, nil
}

func (h *Hash) embed(text string) []float32 {
	vec := make([]float32, h.dim)
	for _, token := range tokenize(text) {
		hasher := fnv.New32a()
		hasher.Write([]byte(token))
		sum := hasher.Sum32()

		idx := int(sum % uint32(h.dim))
		// top bit picks the sign so collisions tend to cancel
		if sum&0x80000000 != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
