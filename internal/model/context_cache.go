package model

// ContextCacheEntry holds one previously computed retrieval result set keyed
// by the request fingerprint. DocumentIDs duplicates the parent ids of the
// cached matches so invalidation can match entries by document without
// decoding every result blob.
type ContextCacheEntry struct {
	Fingerprint string       `json:"fingerprint"`
	Results     []ChunkMatch `json:"results"`
	DocumentIDs []string     `json:"document_ids"`
	Ctime       int64        `json:"ctime"`
}
