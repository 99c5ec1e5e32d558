package vectorstore

import "context"

// Record is one stored point: an id, an optional embedding vector and a
// flat metadata payload. Records without vectors are reachable through
// Get but never through Query.
type Record struct {
	ID      string
	Vector  []float64
	Payload map[string]any
}

// Match is a query hit. Score is cosine similarity; higher means closer.
type Match struct {
	Record
	Score float64
}

// Storage persists one logical collection of records and supports
// similarity search and metadata filtering. Filters are exact-match on
// payload fields; a nil filter matches everything.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float64, limit int, filter map[string]any) ([]Match, error)
	Get(ctx context.Context, filter map[string]any, limit int) ([]Record, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}
