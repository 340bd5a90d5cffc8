package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"docpipe/internal/model"
	"docpipe/internal/storage"
)

// ErrNotFound is returned when a file id is unknown or its entry has expired.
var ErrNotFound = errors.New("filestore: file not found")

// FileStore stages uploaded bytes on a blob backend with a fixed per-instance
// TTL. Expiry is lazy: entries are dropped when a lookup or a new Store call
// touches them, never by a background sweeper. Metadata and backing bytes are
// owned together and deleted together.
//
// The mutex guards only the metadata map; backend I/O happens outside the
// critical section so a slow write never blocks unrelated lookups.
type FileStore struct {
	backend storage.Storage
	ttl     time.Duration

	mu    sync.Mutex
	files map[string]model.StoredFile

	now   func() time.Time
	newID func() string
}

// New constructs a FileStore over the given backend. ttl must be positive.
func New(backend storage.Storage, ttl time.Duration) *FileStore {
	return &FileStore{
		backend: backend,
		ttl:     ttl,
		files:   make(map[string]model.StoredFile),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Store writes content to a uniquely named backing object, records metadata
// and returns the generated file id. An opportunistic expiry sweep runs
// before the insert to bound growth. Empty content is valid.
func (s *FileStore) Store(ctx context.Context, content []byte, filename string) (string, error) {
	id := s.newID()
	key := id + filepath.Ext(filename)

	_, err := s.backend.Put(ctx, key, bytes.NewReader(content), storage.PutObjectOptions{
		Size:     int64(len(content)),
		Metadata: map[string]string{"original-filename": filename},
	})
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	s.mu.Lock()
	expired := s.takeExpiredLocked()
	s.files[id] = model.StoredFile{
		ID:         id,
		Filename:   filename,
		BackingKey: key,
		Size:       int64(len(content)),
		UploadedAt: s.now(),
	}
	s.mu.Unlock()

	s.releaseBacking(ctx, expired)
	return id, nil
}

// Get returns file metadata, or ErrNotFound if the id is unknown or the
// entry has expired. An expired entry is deleted as a side effect.
func (s *FileStore) Get(ctx context.Context, id string) (*model.StoredFile, error) {
	s.mu.Lock()
	f, ok := s.files[id]
	if ok && s.expiredLocked(f) {
		delete(s.files, id)
		s.mu.Unlock()
		s.releaseBacking(ctx, []model.StoredFile{f})
		return nil, ErrNotFound
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

// Read resolves metadata via Get and then reads the backing bytes. If the
// backing object was deleted externally, the stale metadata is dropped and
// ErrNotFound is returned.
func (s *FileStore) Read(ctx context.Context, id string) ([]byte, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rc, _, err := s.backend.Get(ctx, f.BackingKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.mu.Lock()
			delete(s.files, id)
			s.mu.Unlock()
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read backing object: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read backing object: %w", err)
	}
	return content, nil
}

// Delete removes the metadata and best-effort deletes the backing bytes.
// Returns false if the id was not present.
func (s *FileStore) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	f, ok := s.files[id]
	if ok {
		delete(s.files, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.releaseBacking(ctx, []model.StoredFile{f})
	return true
}

// CleanupExpired removes every expired entry. Idempotent.
func (s *FileStore) CleanupExpired(ctx context.Context) {
	s.mu.Lock()
	expired := s.takeExpiredLocked()
	s.mu.Unlock()
	s.releaseBacking(ctx, expired)
}

// Stats sweeps expired entries and reports the current store state.
func (s *FileStore) Stats(ctx context.Context) model.FileStoreStats {
	s.mu.Lock()
	expired := s.takeExpiredLocked()
	stats := model.FileStoreStats{
		TotalFiles: len(s.files),
		TTLSeconds: int64(s.ttl / time.Second),
		Backend:    s.backend.Name(),
		Files:      make([]model.StoredFileSummary, 0, len(s.files)),
	}
	now := s.now()
	for _, f := range s.files {
		stats.Files = append(stats.Files, model.StoredFileSummary{
			ID:         f.ID,
			Filename:   f.Filename,
			Size:       f.Size,
			UploadedAt: f.UploadedAt,
			AgeSeconds: int64(now.Sub(f.UploadedAt) / time.Second),
		})
	}
	s.mu.Unlock()

	s.releaseBacking(ctx, expired)
	return stats
}

func (s *FileStore) expiredLocked(f model.StoredFile) bool {
	return s.now().Sub(f.UploadedAt) > s.ttl
}

// takeExpiredLocked removes expired entries from the map and hands them back
// so backing deletion can happen outside the lock.
func (s *FileStore) takeExpiredLocked() []model.StoredFile {
	var expired []model.StoredFile
	for id, f := range s.files {
		if s.expiredLocked(f) {
			expired = append(expired, f)
			delete(s.files, id)
		}
	}
	return expired
}

// releaseBacking deletes backing objects best-effort. Cleanup must never fail
// the logical operation, so errors are swallowed.
func (s *FileStore) releaseBacking(ctx context.Context, files []model.StoredFile) {
	for _, f := range files {
		_ = s.backend.Delete(ctx, f.BackingKey)
	}
}
