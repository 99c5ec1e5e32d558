package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"docqa/internal/vectorstore"
)

// Storage is an in-memory collection using brute-force cosine similarity.
// It is the default backend and the one the tests run against.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]vectorstore.Record
	order     []string
}

func NewStorage() *Storage {
	return &Storage{records: make(map[string]vectorstore.Record)}
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, records []vectorstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			return errors.New("record without id")
		}
		if len(r.Vector) > 0 && s.dimension > 0 && len(r.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
		if _, ok := s.records[r.ID]; !ok {
			s.order = append(s.order, r.ID)
		}
		s.records[r.ID] = r
	}
	return nil
}

func (s *Storage) Query(_ context.Context, vector []float64, limit int, filter map[string]any) ([]vectorstore.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 5
	}
	matches := make([]vectorstore.Match, 0, len(s.records))
	for _, id := range s.order {
		r := s.records[id]
		if len(r.Vector) == 0 || !payloadMatches(r.Payload, filter) {
			continue
		}
		matches = append(matches, vectorstore.Match{Record: r, Score: cosine(r.Vector, vector)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > len(matches) {
		limit = len(matches)
	}
	return matches[:limit], nil
}

func (s *Storage) Get(_ context.Context, filter map[string]any, limit int) ([]vectorstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []vectorstore.Record
	for _, id := range s.order {
		r := s.records[id]
		if !payloadMatches(r.Payload, filter) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Storage) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		delete(s.records, id)
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.order = kept
	return nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func payloadMatches(payload, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := payload[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
