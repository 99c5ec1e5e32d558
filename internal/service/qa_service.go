package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqa/internal/cache"
	"docqa/internal/domain"
	"docqa/internal/memory"
	"docqa/internal/retriever"
	"docqa/internal/vectorstore"
)

// Canned answers for the pipeline's failure modes. The query endpoint
// never returns an error to the caller; it degrades instead.
const (
	degradedAnswer  = "I apologize, but I encountered an error processing your query. Please try again."
	generatorDown   = "I apologize, but I'm having trouble generating an answer right now."
	emptyGeneration = "I cannot generate an answer at the moment."
	answerPrompt    = `Based on the following context, please answer the question. If the answer cannot be found in the context, say "I cannot find the answer in the provided documents."

Context:
%s

Question: %s

Answer:`
	expansionPrompt = `Given the conversation history and the current question, rewrite the question to be self-contained, resolving any pronouns or references. Return only the rewritten question.

Conversation:
%s
Current question: %s

Rewritten question:`
)

// Topics recognized when routing promoted pairs. Anything else is filed
// under general.
var knownTopics = []string{"technology", "science", "history", "business", "health", "education"}

// QAService runs the full query pipeline: cache lookup, query expansion,
// retrieval, context assembly, generation, scoring and memory updates.
// It also owns document ingestion and deletion.
type QAService struct {
	chunker    domain.Chunker
	extractor  domain.Extractor
	embedder   domain.Embedder
	generator  domain.Generator
	summarizer domain.Summarizer

	chunks    vectorstore.Storage
	retriever *retriever.Retriever
	shortTerm *memory.ShortTerm
	longTerm  *memory.LongTerm
	archive   *memory.Archive
	cache     *cache.ResultCache

	topK         int
	similarLimit int
	maxSentences int
}

// Options bound the retrieval fan-out and summary length. Zero values
// fall back to the pipeline defaults.
type Options struct {
	TopK            int
	SimilarLimit    int
	SummarySentence int
}

func NewQAService(
	chunker domain.Chunker,
	extractor domain.Extractor,
	embedder domain.Embedder,
	generator domain.Generator,
	summarizer domain.Summarizer,
	chunks vectorstore.Storage,
	shortTerm *memory.ShortTerm,
	longTerm *memory.LongTerm,
	archive *memory.Archive,
	resultCache *cache.ResultCache,
	opts Options,
) *QAService {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.SimilarLimit <= 0 {
		opts.SimilarLimit = 3
	}
	if opts.SummarySentence <= 0 {
		opts.SummarySentence = 3
	}
	return &QAService{
		chunker:      chunker,
		extractor:    extractor,
		embedder:     embedder,
		generator:    generator,
		summarizer:   summarizer,
		chunks:       chunks,
		retriever:    retriever.New(chunks),
		shortTerm:    shortTerm,
		longTerm:     longTerm,
		archive:      archive,
		cache:        resultCache,
		topK:         opts.TopK,
		similarLimit: opts.SimilarLimit,
		maxSentences: opts.SummarySentence,
	}
}

// Answer runs the query pipeline for one question. It never returns an
// error: any panic in a collaborator is converted into a degraded result
// so a single bad query cannot take the endpoint down.
func (s *QAService) Answer(ctx context.Context, query, sessionID string, filter map[string]any) (result domain.QueryResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("qa: pipeline panic for session %s: %v", sessionID, r)
			result = degraded(start, sessionID, fmt.Sprintf("pipeline panic: %v", r))
		}
	}()

	key := cache.Key(query, sessionID)
	if cached, ok := s.cache.Get(key); ok {
		log.Printf("qa: cache hit (session %s)", sessionID)
		return cached
	}

	expanded := s.expandQuery(ctx, query, sessionID)

	vector, err := s.embedder.Embed(ctx, expanded)
	if err != nil {
		log.Printf("qa: query embedding failed, retrieving with zero vector: %v", err)
		vector = make([]float64, s.embedder.Dimension())
	}

	chunks := s.retriever.TopChunks(ctx, vector, s.topK, filter)
	similar := s.longTerm.SearchSimilar(ctx, expanded, "", s.similarLimit)

	answer := s.generateAnswer(ctx, query, s.assembleContext(chunks, similar, sessionID))
	confidence := confidenceScore(answer, chunks)

	interactionID := s.archive.RecordInteraction(ctx, sessionID, query, answer)
	s.shortTerm.Append(sessionID, query, answer, interactionID)

	result = domain.QueryResult{
		Answer:         answer,
		Confidence:     confidence,
		Sources:        sources(chunks),
		SimilarQA:      similar,
		ProcessingTime: time.Since(start).Seconds(),
		SessionID:      sessionID,
		InteractionID:  interactionID,
	}
	s.cache.Set(key, result)

	if confidence > s.longTerm.Threshold() {
		s.longTerm.Promote(ctx, query, answer, ExtractTopic(query), confidence)
	}
	return result
}

// expandQuery rewrites a follow-up question into a self-contained one
// using the last few exchanges of the session. On any failure the
// original query is used unchanged.
func (s *QAService) expandQuery(ctx context.Context, query, sessionID string) string {
	recent := s.shortTerm.RecentContext(sessionID)
	if len(recent) == 0 {
		return query
	}
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	var b strings.Builder
	for _, ex := range recent {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", ex.Query, ex.Answer)
	}
	rewritten, err := s.generator.Generate(ctx, fmt.Sprintf(expansionPrompt, b.String(), query))
	if err != nil {
		log.Printf("qa: query expansion failed, using original: %v", err)
		return query
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return query
	}
	return rewritten
}

// assembleContext builds the generation context: document chunks first,
// then similar past answers, then the tail of the conversation.
func (s *QAService) assembleContext(chunks []domain.ScoredChunk, similar []domain.QAPair, sessionID string) string {
	var parts []string

	if len(chunks) > 0 {
		parts = append(parts, "Relevant Document Content:")
		for i, c := range chunks {
			parts = append(parts, fmt.Sprintf("[Source %d]: %s", i+1, c.Chunk.Content))
		}
	}

	if len(similar) > 0 {
		parts = append(parts, "\nRelated Previous Questions and Answers:")
		for _, qa := range similar {
			parts = append(parts, fmt.Sprintf("Q: %s", qa.Question), fmt.Sprintf("A: %s", qa.Answer))
		}
	}

	recent := s.shortTerm.RecentContext(sessionID)
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}
	if len(recent) > 0 {
		parts = append(parts, "\nRecent Conversation:")
		for _, ex := range recent {
			parts = append(parts, fmt.Sprintf("User: %s", ex.Query), fmt.Sprintf("Assistant: %s", ex.Answer))
		}
	}

	return strings.Join(parts, "\n")
}

func (s *QAService) generateAnswer(ctx context.Context, query, contextBlock string) string {
	answer, err := s.generator.Generate(ctx, fmt.Sprintf(answerPrompt, contextBlock, query))
	if err != nil {
		log.Printf("qa: generation failed: %v", err)
		return generatorDown
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return emptyGeneration
	}
	return answer
}

// confidenceScore averages an answer-length signal with the retrieval
// proximity signal. No retrieved chunks means zero confidence: an answer
// without document grounding is never promoted or trusted.
func confidenceScore(answer string, chunks []domain.ScoredChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	lengthScore := math.Min(float64(len(answer))/100, 1)
	var sum float64
	for _, c := range chunks {
		sum += c.Distance
	}
	proximity := math.Max(0, 1-sum/float64(len(chunks)))
	return (lengthScore + proximity) / 2
}

// ExtractTopic files a question under one of the known topics by keyword
// match, defaulting to general.
func ExtractTopic(query string) string {
	lower := strings.ToLower(query)
	for _, topic := range knownTopics {
		if strings.Contains(lower, topic) {
			return topic
		}
	}
	return "general"
}

func sources(chunks []domain.ScoredChunk) []domain.Source {
	out := make([]domain.Source, 0, len(chunks))
	for _, c := range chunks {
		snippet := c.Chunk.Content
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		out = append(out, domain.Source{
			DocumentID: c.Chunk.DocumentID,
			Page:       c.Chunk.Page,
			ChunkID:    c.Chunk.ID,
			Snippet:    snippet,
		})
	}
	return out
}

func degraded(start time.Time, sessionID, detail string) domain.QueryResult {
	return domain.QueryResult{
		Answer:         degradedAnswer,
		Confidence:     0,
		Sources:        []domain.Source{},
		SimilarQA:      []domain.QAPair{},
		ProcessingTime: time.Since(start).Seconds(),
		SessionID:      sessionID,
		Degraded:       true,
		Err:            detail,
	}
}

// IngestResult reports what a document upload produced.
type IngestResult struct {
	DocumentID      string `json:"document_id"`
	Filename        string `json:"filename"`
	ChunksProcessed int    `json:"chunks_processed"`
	Status          string `json:"status"`
	Summary         string `json:"summary,omitempty"`
}

// IngestDocument extracts, chunks, embeds and stores one document.
// Unsupported formats and embedding failures surface as errors; summary
// failures do not.
func (s *QAService) IngestDocument(ctx context.Context, filename string, data []byte) (*IngestResult, error) {
	pages, err := s.extractor.Extract(filename, data)
	if err != nil {
		return nil, err
	}

	documentID := uuid.NewString()
	var chunks []domain.Chunk
	var fullText strings.Builder
	for _, page := range pages {
		chunks = append(chunks, s.chunker.Chunk(page.Text, documentID, page.Number)...)
		fullText.WriteString(page.Text)
		fullText.WriteString("\n")
	}

	records := make([]vectorstore.Record, 0, len(chunks))
	for _, c := range chunks {
		vector, err := s.embedder.Embed(ctx, c.Content)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %s: %w", c.ID, err)
		}
		records = append(records, vectorstore.Record{
			ID:     c.ID,
			Vector: vector,
			Payload: map[string]any{
				"document_id": c.DocumentID,
				"page":        c.Page,
				"seq":         c.Seq,
				"content":     c.Content,
				"strategy":    c.Strategy,
				"filename":    filename,
			},
		})
	}
	if len(records) > 0 {
		if err := s.chunks.Upsert(ctx, records); err != nil {
			return nil, fmt.Errorf("storing chunks: %w", err)
		}
	}

	summary := ""
	if s.summarizer != nil {
		summary, err = s.summarizer.Summarize(fullText.String(), s.maxSentences)
		if err != nil {
			log.Printf("qa: summarizing %s failed: %v", filename, err)
			summary = ""
		}
	}

	log.Printf("qa: ingested %s as %s (%d chunks)", filename, documentID, len(records))
	return &IngestResult{
		DocumentID:      documentID,
		Filename:        filename,
		ChunksProcessed: len(records),
		Status:          "success",
		Summary:         summary,
	}, nil
}

// DeleteDocument removes every chunk of the document and reports how
// many were deleted.
func (s *QAService) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	records, err := s.chunks.Get(ctx, map[string]any{"document_id": documentID}, 0)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if err := s.chunks.Delete(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// SubmitFeedback validates and persists one feedback record. A
// correction with replacement text flags the interaction for the next
// learning batch.
func (s *QAService) SubmitFeedback(ctx context.Context, interactionID, feedbackType string, rating int, corrected string) error {
	if interactionID == "" {
		return fmt.Errorf("missing interaction id")
	}
	if err := s.archive.RecordFeedback(ctx, interactionID, feedbackType, rating, corrected); err != nil {
		return err
	}
	if feedbackType == domain.FeedbackCorrection && strings.TrimSpace(corrected) != "" {
		log.Printf("qa: correction received for interaction %s, queued for learning", interactionID)
	}
	return nil
}

// History returns the persisted exchanges of a session, oldest first.
func (s *QAService) History(ctx context.Context, sessionID string, limit int) []domain.Interaction {
	return s.archive.History(ctx, sessionID, limit)
}

// Metrics is a point-in-time snapshot of service state.
type Metrics struct {
	DocumentsProcessed int `json:"documents_processed"`
	TotalInteractions  int `json:"total_interactions"`
	ActiveSessions     int `json:"active_sessions"`
	LongTermPairs      int `json:"long_term_pairs"`
	CacheSize          int `json:"cache_size"`
}

func (s *QAService) Metrics(ctx context.Context) Metrics {
	chunkCount, err := s.chunks.Count(ctx)
	if err != nil {
		chunkCount = 0
	}
	return Metrics{
		DocumentsProcessed: chunkCount,
		TotalInteractions:  s.archive.InteractionCount(ctx),
		ActiveSessions:     s.shortTerm.ActiveSessions(),
		LongTermPairs:      s.longTerm.Count(ctx),
		CacheSize:          s.cache.Len(),
	}
}
