package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"docqa/internal/domain"
)

// ParagraphChunker accumulates paragraphs greedily up to chunkSize.
// Paragraphs that alone exceed chunkSize are re-split on sentence
// boundaries and emitted as sentence-window chunks.
type ParagraphChunker struct {
	chunkSize int
	paraSplit *regexp.Regexp
	sentSplit *regexp.Regexp
}

func NewParagraphChunker(chunkSize int) *ParagraphChunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &ParagraphChunker{
		chunkSize: chunkSize,
		paraSplit: regexp.MustCompile(`\n\s*\n`),
		sentSplit: regexp.MustCompile(`[.!?]+`),
	}
}

// Chunk splits one page of text into ordered chunks. Whitespace-only
// paragraphs are skipped and do not count toward length.
func (c *ParagraphChunker) Chunk(text, documentID string, page int) []domain.Chunk {
	var chunks []domain.Chunk
	var buf strings.Builder

	flush := func(strategy string) {
		content := strings.TrimSpace(buf.String())
		buf.Reset()
		if content == "" {
			return
		}
		chunks = append(chunks, domain.Chunk{
			ID:         ChunkID(documentID, page, len(chunks)),
			DocumentID: documentID,
			Page:       page,
			Seq:        len(chunks),
			Content:    content,
			Strategy:   strategy,
		})
	}

	for _, para := range c.paraSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sep := 0
		if buf.Len() > 0 {
			sep = 2 // "\n\n" joining paragraphs inside one chunk
		}
		if buf.Len()+sep+len(para) <= c.chunkSize {
			if sep > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(para)
			continue
		}
		flush(domain.StrategyParagraph)
		if len(para) > c.chunkSize {
			for _, piece := range c.splitSentences(para) {
				buf.WriteString(piece)
				flush(domain.StrategySentenceWindow)
			}
			continue
		}
		buf.WriteString(para)
	}
	flush(domain.StrategyParagraph)
	return chunks
}

// splitSentences greedily packs sentences into pieces no longer than
// chunkSize. A single sentence longer than chunkSize is a leaf fragment
// and becomes a piece on its own.
func (c *ParagraphChunker) splitSentences(paragraph string) []string {
	var pieces []string
	var buf strings.Builder
	for _, sent := range c.sentSplit.Split(paragraph, -1) {
		sent = strings.TrimSpace(sent)
		if sent == "" {
			continue
		}
		sent += "."
		sep := 0
		if buf.Len() > 0 {
			sep = 1 // space between sentences
		}
		if buf.Len()+sep+len(sent) > c.chunkSize && buf.Len() > 0 {
			pieces = append(pieces, buf.String())
			buf.Reset()
			sep = 0
		}
		if sep > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(sent)
	}
	if buf.Len() > 0 {
		pieces = append(pieces, buf.String())
	}
	return pieces
}

// ChunkID derives a stable chunk identifier from the document id, page
// number and ordinal, so repeated processing of unchanged input is
// idempotent in naming. The MD5-based UUID form keeps ids usable as
// vector-store point ids.
func ChunkID(documentID string, page, seq int) string {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s_%d_%d", documentID, page, seq))).String()
}
