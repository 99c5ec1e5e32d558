package retriever

import (
	"context"
	"log"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Retriever returns the chunks nearest to a query vector, ordered by
// ascending distance. Store failures are logged and swallowed: degrading
// to "no context" is deliberate, the pipeline must keep going.
type Retriever struct {
	chunks vectorstore.Storage
}

func New(chunks vectorstore.Storage) *Retriever {
	return &Retriever{chunks: chunks}
}

// TopChunks fetches up to k chunks, optionally restricted by a payload
// filter (e.g. document_id). Distance is 1 - cosine similarity, clamped
// at zero.
func (r *Retriever) TopChunks(ctx context.Context, vector []float64, k int, filter map[string]any) []domain.ScoredChunk {
	if k <= 0 {
		k = 5
	}
	matches, err := r.chunks.Query(ctx, vector, k, filter)
	if err != nil {
		log.Printf("retriever: chunk search failed: %v", err)
		return nil
	}
	out := make([]domain.ScoredChunk, 0, len(matches))
	for _, m := range matches {
		distance := 1 - m.Score
		if distance < 0 {
			distance = 0
		}
		out = append(out, domain.ScoredChunk{
			Chunk: domain.Chunk{
				ID:         m.ID,
				DocumentID: stringField(m.Payload, "document_id"),
				Page:       intField(m.Payload, "page"),
				Seq:        intField(m.Payload, "seq"),
				Content:    stringField(m.Payload, "content"),
				Strategy:   stringField(m.Payload, "strategy"),
			},
			Distance: distance,
		})
	}
	return out
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func intField(payload map[string]any, key string) int {
	switch n := payload[key].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
