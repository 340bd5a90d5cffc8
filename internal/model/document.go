package model

import "time"

// StoredFile is the metadata record for an uploaded file staged on the
// backing store. The backing bytes are owned by the file store and deleted
// together with this record.
// This is a pure domain model with no storage-specific dependencies or tags.
type StoredFile struct {
	ID         string    `json:"file_id"`
	Filename   string    `json:"filename"`
	BackingKey string    `json:"-"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// StoredFileSummary is the read-only view of a stored file exposed by stats.
type StoredFileSummary struct {
	ID         string    `json:"file_id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
	AgeSeconds int64     `json:"age_seconds"`
}

// FileStoreStats reports the current state of the upload store.
type FileStoreStats struct {
	TotalFiles int                 `json:"total_files"`
	TTLSeconds int64               `json:"ttl_seconds"`
	Backend    string              `json:"backend"`
	Files      []StoredFileSummary `json:"files"`
}

// CachedDocumentSummary is the read-only view of a cache entry exposed by
// stats and API responses. The parsed handle itself is never exposed.
type CachedDocumentSummary struct {
	ID               string    `json:"doc_id"`
	SourceName       string    `json:"source_name"`
	Formats          []string  `json:"formats"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int64     `json:"time_remaining"`
}

// DocumentCacheStats reports the current state of the document cache.
type DocumentCacheStats struct {
	Size       int                     `json:"size"`
	MaxSize    int                     `json:"max_size"`
	TTLSeconds int64                   `json:"default_ttl_seconds"`
	Documents  []CachedDocumentSummary `json:"documents"`
}

// PipelineStats aggregates the store and cache views for observability.
type PipelineStats struct {
	FileStore FileStoreStats     `json:"file_store"`
	Cache     DocumentCacheStats `json:"document_cache"`
}
