package model

// Chunk is a contiguous span of a document's text with its own embedding.
// Chunks are created in bulk at ingestion time and are immutable; they are
// only removed when the parent document is deleted or re-ingested.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Position   int       `json:"position"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"-"`
	Ctime      int64     `json:"ctime"`
}

// ChunkMatch is a retrieval candidate: a chunk plus its similarity to the
// query, ordered most similar first.
type ChunkMatch struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Position   int     `json:"position"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}
