package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"docqa/internal/domain"
	"docqa/internal/memory"
)

const stampLayout = "20060102_150405"

// Pipeline turns accumulated feedback into training artifacts. Each
// batch drains the feedback it saw; feedback submitted while a batch
// runs survives for the next one.
type Pipeline struct {
	archive     *memory.Archive
	artifactDir string
	now         func() time.Time
}

func NewPipeline(archive *memory.Archive, artifactDir string) *Pipeline {
	if artifactDir == "" {
		artifactDir = "./data/feedback"
	}
	return &Pipeline{archive: archive, artifactDir: artifactDir, now: time.Now}
}

// BatchReport summarizes one learning run.
type BatchReport struct {
	Processed   int      `json:"processed"`
	Corrections int      `json:"corrections"`
	HighRated   int      `json:"high_rated"`
	LowRated    int      `json:"low_rated"`
	Artifacts   []string `json:"artifacts,omitempty"`
}

type correctionEntry struct {
	InteractionID string    `json:"interaction_id"`
	Corrected     string    `json:"corrected_answer"`
	CreatedAt     time.Time `json:"timestamp"`
}

type ratingSample struct {
	InteractionID string `json:"interaction_id"`
	Rating        int    `json:"rating"`
}

type ratingPatterns struct {
	HighRated       int            `json:"high_rated_count"`
	LowRated        int            `json:"low_rated_count"`
	HighRatedSample []ratingSample `json:"high_rated_samples"`
	LowRatedSample  []ratingSample `json:"low_rated_samples"`
}

// ProcessBatch drains pending feedback into timestamped artifact files:
// corrections, rating patterns and the raw processed records. Only the
// records read at the start of the batch are deleted afterwards.
func (p *Pipeline) ProcessBatch(ctx context.Context) (*BatchReport, error) {
	pending, err := p.archive.PendingFeedback(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading pending feedback: %w", err)
	}
	report := &BatchReport{Processed: len(pending)}
	if len(pending) == 0 {
		return report, nil
	}

	var corrections []correctionEntry
	patterns := ratingPatterns{
		HighRatedSample: []ratingSample{},
		LowRatedSample:  []ratingSample{},
	}
	ids := make([]string, 0, len(pending))
	for _, fb := range pending {
		ids = append(ids, fb.ID)
		switch {
		case fb.Type == domain.FeedbackCorrection && fb.Corrected != "":
			corrections = append(corrections, correctionEntry{
				InteractionID: fb.InteractionID,
				Corrected:     fb.Corrected,
				CreatedAt:     fb.CreatedAt,
			})
		case fb.Type == domain.FeedbackRating && fb.Rating >= 4:
			patterns.HighRated++
			if len(patterns.HighRatedSample) < 5 {
				patterns.HighRatedSample = append(patterns.HighRatedSample, ratingSample{fb.InteractionID, fb.Rating})
			}
		case fb.Type == domain.FeedbackRating && fb.Rating <= 2:
			patterns.LowRated++
			if len(patterns.LowRatedSample) < 5 {
				patterns.LowRatedSample = append(patterns.LowRatedSample, ratingSample{fb.InteractionID, fb.Rating})
			}
		}
	}
	report.Corrections = len(corrections)
	report.HighRated = patterns.HighRated
	report.LowRated = patterns.LowRated

	if err := os.MkdirAll(p.artifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	stamp := p.now().UTC().Format(stampLayout)

	if len(corrections) > 0 {
		path, err := p.writeArtifact(fmt.Sprintf("corrections_%s.json", stamp), corrections)
		if err != nil {
			return nil, err
		}
		report.Artifacts = append(report.Artifacts, path)
	}
	if patterns.HighRated > 0 || patterns.LowRated > 0 {
		path, err := p.writeArtifact(fmt.Sprintf("rating_patterns_%s.json", stamp), patterns)
		if err != nil {
			return nil, err
		}
		report.Artifacts = append(report.Artifacts, path)
	}
	path, err := p.writeArtifact(fmt.Sprintf("processed_feedback_%s.json", stamp), pending)
	if err != nil {
		return nil, err
	}
	report.Artifacts = append(report.Artifacts, path)

	if err := p.archive.DeleteFeedback(ctx, ids); err != nil {
		// Artifacts are written; a failed delete means the batch may be
		// reprocessed, which is the safer direction.
		log.Printf("learning: deleting processed feedback failed: %v", err)
	}

	log.Printf("learning: processed %d feedback records (%d corrections, %d high, %d low)",
		report.Processed, report.Corrections, report.HighRated, report.LowRated)
	return report, nil
}

func (p *Pipeline) writeArtifact(name string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", name, err)
	}
	path := filepath.Join(p.artifactDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}
