package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/harvest/core"
)

// FileStore keeps uploaded files under root/user_<owner>/<unix>_<name>.
type FileStore struct {
	root string
	now  func() time.Time
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrRootRequired
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileStore{root: dir, now: time.Now}, nil
}

// Save validates and stores an upload. The returned FileInfo's StoragePath is
// relative to the store root.
func (s *FileStore) Save(owner, filename string, r io.Reader) (core.FileInfo, error) {
	if strings.TrimSpace(owner) == "" {
		return core.FileInfo{}, core.ErrEmptyOwner
	}
	if err := Validate(filename, 1); err != nil {
		return core.FileInfo{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return core.FileInfo{}, fmt.Errorf("read upload: %w", err)
	}
	if err := Validate(filename, int64(len(data))); err != nil {
		return core.FileInfo{}, err
	}

	digest := core.ContentDigest(data)
	dir := "user_" + SafeName(owner)
	if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
		return core.FileInfo{}, fmt.Errorf("create owner dir: %w", err)
	}

	name := fmt.Sprintf("%d_%s", s.now().Unix(), SafeName(filename))
	f, err := os.OpenFile(filepath.Join(s.root, dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		name = fmt.Sprintf("%d_%s_%s", s.now().Unix(), digest[:8], SafeName(filename))
		f, err = os.OpenFile(filepath.Join(s.root, dir, name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	}
	if err != nil {
		return core.FileInfo{}, fmt.Errorf("create stored file: %w", err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		return core.FileInfo{}, fmt.Errorf("write stored file: %w", err)
	}
	if err := f.Close(); err != nil {
		return core.FileInfo{}, fmt.Errorf("close stored file: %w", err)
	}

	return core.FileInfo{
		Name:        filename,
		Size:        int64(len(data)),
		ContentType: ContentType(filename),
		StoragePath: filepath.ToSlash(filepath.Join(dir, name)),
		Digest:      digest,
	}, nil
}

// Path resolves a StoragePath to a file on disk.
func (s *FileStore) Path(storagePath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storagePath))
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: bad storage path %q", core.ErrInvalidRequest, storagePath)
	}
	return filepath.Join(s.root, clean), nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *FileStore) Remove(storagePath string) error {
	path, err := s.Path(storagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stored file: %w", err)
	}
	return nil
}
