package domain

import "time"

// Chunking strategies recorded on each chunk.
const (
	StrategyParagraph      = "paragraph"
	StrategySentenceWindow = "sentence-window"
)

// Page is one page of extracted document text. Formats without a page
// concept (txt, markdown, html) yield a single page numbered 1.
type Page struct {
	Number int
	Text   string
}

// Chunk is a bounded fragment of document text, the unit of retrieval.
// The ID is derived deterministically from (DocumentID, Page, Seq) so
// re-processing unchanged input names the same chunks.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Seq        int    `json:"seq"`
	Content    string `json:"content"`
	Strategy   string `json:"strategy"`
}

// ScoredChunk is a retrieved chunk with its distance to the query vector.
// Lower distance means more similar.
type ScoredChunk struct {
	Chunk    Chunk
	Distance float64
}

// Exchange is one query/answer pair held in a session's short-term buffer.
type Exchange struct {
	Query         string    `json:"query"`
	Answer        string    `json:"answer"`
	InteractionID string    `json:"interaction_id"`
	At            time.Time `json:"at"`
}

// QAPair is a high-confidence exchange promoted to long-term memory.
// Content is immutable after creation; only UsageCount changes.
type QAPair struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Topic      string    `json:"topic"`
	Confidence float64   `json:"confidence"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Interaction is one persisted query/answer exchange, the target of feedback.
type Interaction struct {
	ID        string    `json:"interaction_id"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"timestamp"`
}

// Feedback types accepted by the feedback endpoint.
const (
	FeedbackRating     = "rating"
	FeedbackCorrection = "correction"
)

// Feedback is a rating or correction attached to an interaction. Records
// live until the learning batch consumes and archives them.
type Feedback struct {
	ID            string    `json:"id"`
	InteractionID string    `json:"interaction_id"`
	Type          string    `json:"feedback_type"`
	Rating        int       `json:"rating,omitempty"`
	Corrected     string    `json:"corrected_answer,omitempty"`
	CreatedAt     time.Time `json:"timestamp"`
}

// Source identifies the origin of a retrieved chunk in a query response.
type Source struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	ChunkID    string `json:"chunk_id"`
	Snippet    string `json:"snippet"`
}

// QueryResult is the outcome of one pipeline run. Degraded marks a result
// produced by the error path rather than a genuine low-confidence answer;
// Err carries the operator-facing detail in that case.
type QueryResult struct {
	Answer         string   `json:"answer"`
	Confidence     float64  `json:"confidence"`
	Sources        []Source `json:"sources"`
	SimilarQA      []QAPair `json:"similar_qa"`
	ProcessingTime float64  `json:"processing_time"`
	SessionID      string   `json:"session_id"`
	InteractionID  string   `json:"interaction_id"`
	Degraded       bool     `json:"degraded,omitempty"`
	Err            string   `json:"error,omitempty"`
}
