package vector

import "context"

// Record is one (id, vector, payload) tuple stored in a collection.
type Record struct {
	ID         string
	Vector     []float32
	Text       string
	DocID      string
	ChunkIndex int
	Filename   string
}

// Hit is one similarity-search result. Score is similarity: higher is
// more relevant. Tie order is not guaranteed by the index.
type Hit struct {
	ChunkID    string
	Text       string
	DocID      string
	ChunkIndex int
	Score      float32
}

// Index is the named-collection vector store contract the pipeline
// depends on. Upsert overwrites by id, which is what makes re-ingestion
// idempotent.
type Index interface {
	// EnsureCollection creates the collection if absent; when it exists
	// it verifies the stored dimension and returns
	// examerr.ErrSchemaMismatch on conflict.
	EnsureCollection(ctx context.Context, name string, dim int) error

	Upsert(ctx context.Context, collection string, records []Record) error

	// Search returns up to topK hits ordered by descending similarity.
	// The optional filter restricts by payload fields (e.g. doc_id).
	Search(ctx context.Context, collection string, queryVector []float32, topK int, filter map[string]string) ([]Hit, error)

	// Ping is the liveness probe used by the service controller.
	Ping(ctx context.Context) error
}
