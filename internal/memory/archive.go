package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Archive persists interactions and feedback. The query pipeline never
// touches the stores directly; it goes through these methods.
type Archive struct {
	interactions vectorstore.Storage
	feedback     vectorstore.Storage
	embedder     domain.Embedder
}

func NewArchive(interactions, feedback vectorstore.Storage, embedder domain.Embedder) *Archive {
	return &Archive{interactions: interactions, feedback: feedback, embedder: embedder}
}

// RecordInteraction persists one exchange and returns its id. It always
// succeeds from the caller's point of view: on storage failure the
// locally generated id is returned so the pipeline never blocks on
// persistence.
func (a *Archive) RecordInteraction(ctx context.Context, sessionID, query, answer string) string {
	id := uuid.NewString()
	vector, err := a.embedder.Embed(ctx, query+" "+answer)
	if err != nil {
		log.Printf("archive: interaction embedding failed: %v", err)
		vector = nil
	}
	rec := vectorstore.Record{
		ID:     id,
		Vector: vector,
		Payload: map[string]any{
			"interaction_id": id,
			"session_id":     sessionID,
			"query":          query,
			"answer":         answer,
			"created_at":     time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if err := a.interactions.Upsert(ctx, []vectorstore.Record{rec}); err != nil {
		log.Printf("archive: storing interaction failed: %v", err)
	}
	return id
}

// Interaction fetches one interaction by id.
func (a *Archive) Interaction(ctx context.Context, id string) (domain.Interaction, bool) {
	records, err := a.interactions.Get(ctx, map[string]any{"interaction_id": id}, 1)
	if err != nil || len(records) == 0 {
		return domain.Interaction{}, false
	}
	return decodeInteraction(records[0]), true
}

// History returns the session's persisted exchanges ordered by time.
func (a *Archive) History(ctx context.Context, sessionID string, limit int) []domain.Interaction {
	records, err := a.interactions.Get(ctx, map[string]any{"session_id": sessionID}, limit)
	if err != nil {
		log.Printf("archive: history lookup failed: %v", err)
		return nil
	}
	history := make([]domain.Interaction, 0, len(records))
	for _, r := range records {
		history = append(history, decodeInteraction(r))
	}
	sort.Slice(history, func(i, j int) bool { return history[i].CreatedAt.Before(history[j].CreatedAt) })
	return history
}

// RecordFeedback attaches a rating or correction to an interaction.
func (a *Archive) RecordFeedback(ctx context.Context, interactionID, feedbackType string, rating int, corrected string) error {
	if feedbackType != domain.FeedbackRating && feedbackType != domain.FeedbackCorrection {
		return fmt.Errorf("unknown feedback type %q", feedbackType)
	}
	rec := vectorstore.Record{
		ID: uuid.NewString(),
		Payload: map[string]any{
			"interaction_id":   interactionID,
			"feedback_type":    feedbackType,
			"rating":           rating,
			"corrected_answer": corrected,
			"created_at":       time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	return a.feedback.Upsert(ctx, []vectorstore.Record{rec})
}

// PendingFeedback returns all feedback not yet consumed by the learning
// batch.
func (a *Archive) PendingFeedback(ctx context.Context) ([]domain.Feedback, error) {
	records, err := a.feedback.Get(ctx, nil, 0)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Feedback, 0, len(records))
	for _, r := range records {
		out = append(out, domain.Feedback{
			ID:            r.ID,
			InteractionID: asString(r.Payload["interaction_id"]),
			Type:          asString(r.Payload["feedback_type"]),
			Rating:        asInt(r.Payload["rating"]),
			Corrected:     asString(r.Payload["corrected_answer"]),
			CreatedAt:     asTime(r.Payload["created_at"]),
		})
	}
	return out, nil
}

// DeleteFeedback removes exactly the given feedback records, leaving any
// feedback submitted concurrently in place.
func (a *Archive) DeleteFeedback(ctx context.Context, ids []string) error {
	return a.feedback.Delete(ctx, ids)
}

// InteractionCount reports the number of persisted interactions.
func (a *Archive) InteractionCount(ctx context.Context) int {
	n, err := a.interactions.Count(ctx)
	if err != nil {
		return 0
	}
	return n
}

func decodeInteraction(r vectorstore.Record) domain.Interaction {
	return domain.Interaction{
		ID:        asString(r.Payload["interaction_id"]),
		SessionID: asString(r.Payload["session_id"]),
		Query:     asString(r.Payload["query"]),
		Answer:    asString(r.Payload["answer"]),
		CreatedAt: asTime(r.Payload["created_at"]),
	}
}
