package local

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const defaultDimension = 256

// Embedder is a deterministic, offline bag-of-words embedder. Tokens are
// hashed into a fixed number of buckets and the resulting vector is
// L2-normalized, so overlapping vocabularies produce nonzero cosine
// similarity. It requires no network access and is the default embedder.
type Embedder struct {
	dimension int
	tokenRe   *regexp.Regexp
}

func NewEmbedder() *Embedder {
	return &Embedder{
		dimension: defaultDimension,
		tokenRe:   regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
	}
}

func (e *Embedder) Name() string { return "local" }

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimension)
	for _, tok := range e.tokenRe.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dimension]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
