package domain

import "context"

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Generator produces a completion for a prompt. Calls are blocking network
// requests and must honor the context deadline.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Chunker splits extracted document pages into chunks suitable for indexing.
type Chunker interface {
	Chunk(text, documentID string, page int) []Chunk
}

// Extractor turns an uploaded file into pages of plain text.
type Extractor interface {
	Extract(filename string, data []byte) ([]Page, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
