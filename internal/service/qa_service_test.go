package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"docqa/internal/cache"
	"docqa/internal/chunker"
	"docqa/internal/extract"
	"docqa/internal/memory"
	vsmemory "docqa/internal/vectorstore/memory"
)

type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) Name() string   { return "fake" }
func (f *fakeEmbedder) Dimension() int { return 4 }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if f.fail {
		return nil, errors.New("embedder down")
	}
	vec := make([]float64, 4)
	for i, b := range []byte(text) {
		vec[i%4] += float64(b)
	}
	return vec, nil
}

type fakeGenerator struct {
	fail      bool
	panicking bool
	reply     string
	prompts   []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if g.panicking {
		panic("generator wedged")
	}
	g.prompts = append(g.prompts, prompt)
	if g.fail {
		return "", errors.New("llm down")
	}
	return g.reply, nil
}

type harness struct {
	svc      *QAService
	chunks   *vsmemory.Storage
	pairs    *vsmemory.Storage
	feedback *vsmemory.Storage
	longTerm *memory.LongTerm
	archive  *memory.Archive
	emb      *fakeEmbedder
}

func newHarness(t *testing.T, gen *fakeGenerator) *harness {
	t.Helper()
	emb := &fakeEmbedder{}

	chunks := vsmemory.NewStorage()
	pairs := vsmemory.NewStorage()
	interactions := vsmemory.NewStorage()
	feedback := vsmemory.NewStorage()
	for _, s := range []*vsmemory.Storage{chunks, pairs, interactions, feedback} {
		if err := s.Init(context.Background(), emb.Dimension()); err != nil {
			t.Fatal(err)
		}
	}

	longTerm := memory.NewLongTerm(pairs, emb, 0.8)
	archive := memory.NewArchive(interactions, feedback, emb)
	svc := NewQAService(
		chunker.NewParagraphChunker(1000),
		extract.NewFileExtractor(),
		emb,
		gen,
		nil,
		chunks,
		memory.NewShortTerm(20),
		longTerm,
		archive,
		cache.NewResultCache(16, time.Hour),
		Options{},
	)
	return &harness{svc: svc, chunks: chunks, pairs: pairs, feedback: feedback, longTerm: longTerm, archive: archive, emb: emb}
}

const policyText = "The company vacation policy grants every full-time employee fifteen paid days off per calendar year, accrued monthly and approved by the direct manager."

func TestAnswer_EndToEnd(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "Employees receive fifteen paid vacation days per year, accrued monthly."}
	h := newHarness(t, gen)

	ingested, err := h.svc.IngestDocument(ctx, "policy.txt", []byte(policyText))
	if err != nil {
		t.Fatal(err)
	}

	res := h.svc.Answer(ctx, "What is the vacation policy?", "s1", nil)
	if res.Degraded {
		t.Fatalf("unexpected degraded result: %+v", res)
	}
	if res.Answer != gen.reply {
		t.Fatalf("answer = %q", res.Answer)
	}
	if res.Confidence <= 0 || res.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", res.Confidence)
	}
	if len(res.Sources) != 1 || res.Sources[0].DocumentID != ingested.DocumentID {
		t.Fatalf("sources wrong: %+v", res.Sources)
	}
	if res.SessionID != "s1" {
		t.Fatalf("session id not echoed: %+v", res)
	}
	if res.InteractionID == "" {
		t.Fatal("interaction not recorded")
	}
	if _, ok := h.archive.Interaction(ctx, res.InteractionID); !ok {
		t.Fatal("interaction id not resolvable in archive")
	}
	if got := h.svc.History(ctx, "s1", 0); len(got) != 1 || got[0].Query != "What is the vacation policy?" {
		t.Fatalf("history wrong: %+v", got)
	}
}

func TestAnswer_CacheHitIsVerbatim(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "Fifteen days."}
	h := newHarness(t, gen)
	if _, err := h.svc.IngestDocument(ctx, "policy.txt", []byte(policyText)); err != nil {
		t.Fatal(err)
	}

	first := h.svc.Answer(ctx, "How many vacation days?", "s1", nil)
	calls := len(gen.prompts)

	second := h.svc.Answer(ctx, "How many vacation days?", "s1", nil)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cache hit must return the stored result verbatim:\nfirst  %+v\nsecond %+v", first, second)
	}
	if len(gen.prompts) != calls {
		t.Fatal("cache hit re-ran the generator")
	}

	// Same query from another session misses the cache.
	h.svc.Answer(ctx, "How many vacation days?", "s2", nil)
	if len(gen.prompts) == calls {
		t.Fatal("other session unexpectedly hit the cache")
	}
}

func TestAnswer_NoChunksMeansZeroConfidence(t *testing.T) {
	gen := &fakeGenerator{reply: "A long confident-sounding answer that still has no document grounding behind it whatsoever, none at all."}
	h := newHarness(t, gen)

	res := h.svc.Answer(context.Background(), "anything", "s1", nil)
	if res.Confidence != 0 {
		t.Fatalf("expected zero confidence without retrieved chunks, got %f", res.Confidence)
	}
	if len(res.Sources) != 0 {
		t.Fatalf("expected no sources, got %+v", res.Sources)
	}
	if h.longTerm.Count(context.Background()) != 0 {
		t.Fatal("ungrounded answer was promoted")
	}
}

func TestAnswer_GeneratorFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{fail: true}
	h := newHarness(t, gen)
	if _, err := h.svc.IngestDocument(ctx, "policy.txt", []byte(policyText)); err != nil {
		t.Fatal(err)
	}
	res := h.svc.Answer(ctx, "How many days?", "s1", nil)
	if res.Degraded {
		t.Fatal("generator failure must not mark the result degraded")
	}
	if res.Answer != generatorDown {
		t.Fatalf("answer = %q", res.Answer)
	}
	if res.InteractionID == "" {
		t.Fatal("fallback answer must still be recorded")
	}
}

func TestAnswer_PanicYieldsDegradedResult(t *testing.T) {
	gen := &fakeGenerator{panicking: true}
	h := newHarness(t, gen)
	if _, err := h.svc.IngestDocument(context.Background(), "policy.txt", []byte(policyText)); err != nil {
		t.Fatal(err)
	}

	res := h.svc.Answer(context.Background(), "How many days?", "s1", nil)
	if !res.Degraded {
		t.Fatal("expected degraded result")
	}
	if res.Answer != degradedAnswer {
		t.Fatalf("answer = %q", res.Answer)
	}
	if res.Confidence != 0 {
		t.Fatalf("degraded confidence = %f", res.Confidence)
	}
	if !strings.Contains(res.Err, "generator wedged") {
		t.Fatalf("error detail lost: %q", res.Err)
	}
	if res.SessionID != "s1" {
		t.Fatalf("degraded result lost session id: %+v", res)
	}
}

func TestAnswer_PromotesOnlyHighConfidence(t *testing.T) {
	ctx := context.Background()

	// Query identical to the stored chunk gives distance 0; a reply over
	// 100 characters maxes the length signal, so confidence reaches 1.
	longReply := strings.Repeat("Every employee gets fifteen paid vacation days. ", 3)
	gen := &fakeGenerator{reply: longReply}
	h := newHarness(t, gen)
	if _, err := h.svc.IngestDocument(ctx, "policy.txt", []byte(policyText)); err != nil {
		t.Fatal(err)
	}

	res := h.svc.Answer(ctx, policyText, "s1", nil)
	if res.Confidence <= 0.8 {
		t.Fatalf("test setup expected confidence above threshold, got %f", res.Confidence)
	}
	if h.longTerm.Count(ctx) != 1 {
		t.Fatalf("expected promotion, long-term count = %d", h.longTerm.Count(ctx))
	}

	// A short reply halves the confidence below the threshold.
	gen.reply = "Yes."
	h.svc.Answer(ctx, policyText, "s2", nil)
	if h.longTerm.Count(ctx) != 1 {
		t.Fatal("low-confidence answer was promoted")
	}
}

func TestAnswer_FollowUpExpandsQuery(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "Fifteen days per year."}
	h := newHarness(t, gen)
	if _, err := h.svc.IngestDocument(ctx, "policy.txt", []byte(policyText)); err != nil {
		t.Fatal(err)
	}

	h.svc.Answer(ctx, "What is the vacation policy?", "s1", nil)
	firstCalls := len(gen.prompts)
	if firstCalls != 1 {
		t.Fatalf("fresh session must not expand, generator calls = %d", firstCalls)
	}

	h.svc.Answer(ctx, "How do I request it?", "s1", nil)
	if len(gen.prompts) != firstCalls+2 {
		t.Fatalf("follow-up should expand then answer, generator calls = %d", len(gen.prompts))
	}
	expansion := gen.prompts[firstCalls]
	if !strings.Contains(expansion, "Rewritten question:") ||
		!strings.Contains(expansion, "What is the vacation policy?") {
		t.Fatalf("expansion prompt missing conversation: %q", expansion)
	}
	answering := gen.prompts[firstCalls+1]
	if !strings.Contains(answering, "Recent Conversation:") ||
		!strings.Contains(answering, "User: What is the vacation policy?") {
		t.Fatalf("answer prompt missing recent conversation: %q", answering)
	}
}

func TestAnswer_EmbedderFailureStillAnswers(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "Some answer."}
	h := newHarness(t, gen)
	if _, err := h.svc.IngestDocument(ctx, "policy.txt", []byte(policyText)); err != nil {
		t.Fatal(err)
	}

	h.emb.fail = true
	res := h.svc.Answer(ctx, "How many days?", "s1", nil)
	if res.Degraded {
		t.Fatal("embedding failure must degrade retrieval, not the endpoint")
	}
	if res.Answer != "Some answer." {
		t.Fatalf("answer = %q", res.Answer)
	}
}

func TestIngestDocument(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &fakeGenerator{})

	text := "First paragraph about systems.\n\nSecond paragraph about storage."
	res, err := h.svc.IngestDocument(ctx, "notes.txt", []byte(text))
	if err != nil {
		t.Fatal(err)
	}
	if res.ChunksProcessed != 1 {
		t.Fatalf("expected both paragraphs in one chunk, got %d", res.ChunksProcessed)
	}
	records, err := h.chunks.Get(ctx, map[string]any{"document_id": res.DocumentID}, 0)
	if err != nil || len(records) != res.ChunksProcessed {
		t.Fatalf("stored chunks = %d, err = %v", len(records), err)
	}
	if records[0].Payload["filename"] != "notes.txt" {
		t.Fatalf("filename missing from payload: %+v", records[0].Payload)
	}

	if _, err := h.svc.IngestDocument(ctx, "binary.exe", []byte("x")); err == nil {
		t.Fatal("expected unsupported type error")
	} else {
		var unsupported *extract.ErrUnsupportedType
		if !errors.As(err, &unsupported) {
			t.Fatalf("wrong error type: %v", err)
		}
	}
}

func TestDeleteDocument_RemovesOnlyThatDocument(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &fakeGenerator{})

	a, err := h.svc.IngestDocument(ctx, "a.txt", []byte("Document about alpha."))
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.svc.IngestDocument(ctx, "b.txt", []byte("Document about beta."))
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := h.svc.DeleteDocument(ctx, a.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != a.ChunksProcessed {
		t.Fatalf("deleted %d, expected %d", deleted, a.ChunksProcessed)
	}
	left, _ := h.chunks.Get(ctx, nil, 0)
	if len(left) != b.ChunksProcessed {
		t.Fatalf("expected only the other document's chunks, got %d", len(left))
	}

	if n, err := h.svc.DeleteDocument(ctx, "no-such-doc"); err != nil || n != 0 {
		t.Fatalf("missing document: n=%d err=%v", n, err)
	}
}

func TestSubmitFeedback(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &fakeGenerator{})

	if err := h.svc.SubmitFeedback(ctx, "i1", "rating", 5, ""); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.SubmitFeedback(ctx, "i1", "applause", 0, ""); err == nil {
		t.Fatal("expected error for unknown feedback type")
	}
	if err := h.svc.SubmitFeedback(ctx, "", "rating", 5, ""); err == nil {
		t.Fatal("expected error for missing interaction id")
	}

	pending, err := h.archive.PendingFeedback(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Rating != 5 {
		t.Fatalf("pending feedback wrong: %+v", pending)
	}
}

func TestExtractTopic(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"What does modern science say about sleep?", "science"},
		{"History of the Roman empire", "history"},
		{"our business travel policy", "business"},
		{"What is the vacation policy?", "general"},
		{"", "general"},
	}
	for _, tc := range cases {
		if got := ExtractTopic(tc.query); got != tc.want {
			t.Errorf("ExtractTopic(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "An answer."}
	h := newHarness(t, gen)
	if _, err := h.svc.IngestDocument(ctx, "policy.txt", []byte(policyText)); err != nil {
		t.Fatal(err)
	}
	h.svc.Answer(ctx, "q1", "s1", nil)
	h.svc.Answer(ctx, "q2", "s2", nil)

	m := h.svc.Metrics(ctx)
	if m.DocumentsProcessed != 1 {
		t.Fatalf("chunks = %d", m.DocumentsProcessed)
	}
	if m.TotalInteractions != 2 {
		t.Fatalf("interactions = %d", m.TotalInteractions)
	}
	if m.ActiveSessions != 2 {
		t.Fatalf("sessions = %d", m.ActiveSessions)
	}
	if m.CacheSize != 2 {
		t.Fatalf("cached = %d", m.CacheSize)
	}
}
