package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// localStorage implements Storage on a directory of the local filesystem.
// Keys are namespaced file names generated by the caller, so no two callers
// collide on the same path.
type localStorage struct {
	dir string
}

// NewLocal creates a local-disk storage backend rooted at dir.
// The directory is created if it does not exist.
func NewLocal(dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &localStorage{dir: dir}, nil
}

// pathFor rejects keys that would escape the storage directory.
func (l *localStorage) pathFor(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || filepath.IsAbs(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.dir, filepath.FromSlash(key)), nil
}

func (l *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	path, err := l.pathFor(key)
	if err != nil {
		return ObjectInfo{}, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create backing file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// Best-effort removal of the partial write.
		_ = os.Remove(path)
		return ObjectInfo{}, fmt.Errorf("write backing file: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat backing file: %w", err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: st.ModTime(),
		Metadata:     opt.Metadata,
	}, nil
}

func (l *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	path, err := l.pathFor(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	// Read fully before returning: files are small (bounded by upload limit)
	// and this avoids holding an open handle across the caller's lifetime.
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("read backing file: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("stat backing file: %w", err)
	}
	info := ObjectInfo{
		Key:          key,
		Size:         int64(len(content)),
		LastModified: st.ModTime(),
	}
	return io.NopCloser(bytes.NewReader(content)), info, nil
}

func (l *localStorage) Delete(ctx context.Context, key string) error {
	path, err := l.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *localStorage) Name() string { return "local" }
