package memory

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// LongTerm is the cross-session archive of high-confidence Q&A pairs,
// indexed by embedding for nearest-neighbor lookup.
type LongTerm struct {
	store     vectorstore.Storage
	embedder  domain.Embedder
	threshold float64
}

func NewLongTerm(store vectorstore.Storage, embedder domain.Embedder, threshold float64) *LongTerm {
	if threshold == 0 {
		threshold = 0.8
	}
	return &LongTerm{store: store, embedder: embedder, threshold: threshold}
}

// Threshold returns the promotion confidence bound.
func (m *LongTerm) Threshold() float64 { return m.threshold }

// Promote stores the exchange as a QAPair when confidence strictly
// exceeds the threshold. Returns whether a pair was created.
func (m *LongTerm) Promote(ctx context.Context, question, answer, topic string, confidence float64) bool {
	if confidence <= m.threshold {
		return false
	}
	vector, err := m.embedder.Embed(ctx, question+" "+answer)
	if err != nil {
		log.Printf("long-term memory: embedding failed, storing pair without vector: %v", err)
		vector = nil
	}
	rec := vectorstore.Record{
		ID:     uuid.NewString(),
		Vector: vector,
		Payload: map[string]any{
			"question":    question,
			"answer":      answer,
			"topic":       topic,
			"confidence":  confidence,
			"usage_count": 1,
			"created_at":  time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if err := m.store.Upsert(ctx, []vectorstore.Record{rec}); err != nil {
		log.Printf("long-term memory: store failed: %v", err)
		return false
	}
	return true
}

// SearchSimilar returns up to limit QAPairs near the query, optionally
// restricted to a topic. When embedding fails it degrades to a plain
// metadata filter. Each hit's usage count is bumped best-effort.
func (m *LongTerm) SearchSimilar(ctx context.Context, query, topic string, limit int) []domain.QAPair {
	if limit <= 0 {
		limit = 3
	}
	var filter map[string]any
	if topic != "" {
		filter = map[string]any{"topic": topic}
	}

	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("long-term memory: query embedding failed, falling back to filter scan: %v", err)
		records, err := m.store.Get(ctx, filter, limit)
		if err != nil {
			log.Printf("long-term memory: search failed: %v", err)
			return nil
		}
		return m.collect(ctx, records)
	}

	matches, err := m.store.Query(ctx, vector, limit, filter)
	if err != nil {
		log.Printf("long-term memory: search failed: %v", err)
		return nil
	}
	records := make([]vectorstore.Record, len(matches))
	for i, match := range matches {
		records[i] = match.Record
	}
	return m.collect(ctx, records)
}

func (m *LongTerm) collect(ctx context.Context, records []vectorstore.Record) []domain.QAPair {
	pairs := make([]domain.QAPair, 0, len(records))
	for _, r := range records {
		pair := domain.QAPair{
			ID:         r.ID,
			Question:   asString(r.Payload["question"]),
			Answer:     asString(r.Payload["answer"]),
			Topic:      asString(r.Payload["topic"]),
			Confidence: asFloat(r.Payload["confidence"]),
			UsageCount: asInt(r.Payload["usage_count"]),
			CreatedAt:  asTime(r.Payload["created_at"]),
		}
		pairs = append(pairs, pair)
		m.bumpUsage(ctx, r, pair.UsageCount+1)
	}
	return pairs
}

// bumpUsage rewrites the record with an incremented usage count; content
// stays immutable. Failures are logged and ignored.
func (m *LongTerm) bumpUsage(ctx context.Context, r vectorstore.Record, count int) {
	payload := make(map[string]any, len(r.Payload))
	for k, v := range r.Payload {
		payload[k] = v
	}
	payload["usage_count"] = count
	if err := m.store.Upsert(ctx, []vectorstore.Record{{ID: r.ID, Vector: r.Vector, Payload: payload}}); err != nil {
		log.Printf("long-term memory: usage count update failed for %s: %v", r.ID, err)
	}
}

// Count reports the number of stored QAPairs.
func (m *LongTerm) Count(ctx context.Context) int {
	n, err := m.store.Count(ctx)
	if err != nil {
		return 0
	}
	return n
}
