package semindex

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Embedder generates fixed-dimension text embeddings.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int
}

// bowEmbedder is a deterministic bag-of-words embedder over a fixed
// vocabulary. Vectors are L2-normalized term frequencies, so the dot
// product of two embeddings is their cosine similarity.
//
// Slot 0 is reserved for out-of-vocabulary tokens: corpus documents never
// use it, so fully unknown queries score 0 against every document instead
// of producing a zero-norm vector.
type bowEmbedder struct {
	vocab map[string]int
	dim   int
}

// NewBagOfWordsEmbedder builds an embedder whose vocabulary is the token
// set of the corpus. The corpus should be the same documents that will be
// indexed; queries may contain unseen tokens.
func NewBagOfWordsEmbedder(corpus []string) Embedder {
	vocab := make(map[string]int)
	next := 1 // slot 0 reserved for unknown tokens
	for _, doc := range corpus {
		for _, token := range Tokenize(doc) {
			if _, ok := vocab[token]; !ok {
				vocab[token] = next
				next++
			}
		}
	}
	return &bowEmbedder{vocab: vocab, dim: next}
}

// Tokenize lowercases text and splits it on any rune that is neither a
// letter nor a digit. Hangul syllables count as letters.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (e *bowEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty text")
	}

	vec := make([]float32, e.dim)
	for _, token := range tokens {
		idx, ok := e.vocab[token]
		if !ok {
			idx = 0
		}
		vec[idx]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (e *bowEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *bowEmbedder) Dimensions() int { return e.dim }
