package summarizer

import (
	"strings"
	"testing"
)

func TestSummarize_PicksDominantSentences(t *testing.T) {
	text := "The vacation policy grants fifteen days. Vacation days accrue monthly under the policy. Lunch is served at noon. The vacation policy requires manager approval."

	s := NewFrequencySummarizer()
	got, err := s.Summarize(text, 2)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "Lunch") {
		t.Fatalf("off-topic sentence selected: %q", got)
	}
	if !strings.Contains(got, "vacation") {
		t.Fatalf("dominant theme missing from summary: %q", got)
	}
}

func TestSummarize_PreservesOriginalOrder(t *testing.T) {
	text := "Alpha systems run nightly. Beta systems run weekly. Alpha and beta systems share storage."

	s := NewFrequencySummarizer()
	got, err := s.Summarize(text, 3)
	if err != nil {
		t.Fatal(err)
	}
	alpha := strings.Index(got, "Alpha systems")
	shared := strings.Index(got, "share storage")
	if alpha == -1 || shared == -1 || alpha > shared {
		t.Fatalf("sentence order not preserved: %q", got)
	}
}

func TestSummarize_NoSentenceBoundaries(t *testing.T) {
	s := NewFrequencySummarizer()
	got, err := s.Summarize("  just a fragment without punctuation  ", 2)
	if err != nil {
		t.Fatal(err)
	}
	if got != "just a fragment without punctuation" {
		t.Fatalf("expected trimmed passthrough, got %q", got)
	}
}
