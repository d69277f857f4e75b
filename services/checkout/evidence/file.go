package evidence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"
)

// FileStore keeps proofs under a local directory, for development without a bucket.
type FileStore struct {
	dir string
	now func() time.Time
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

// Put writes p below the store directory and returns its relative path.
func (s *FileStore) Put(ctx context.Context, p *Proof) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := newKey(s.now(), p)
	dst := filepath.Join(s.dir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("failed to create proof directory: %w", err)
	}

	if err := os.WriteFile(dst, p.Data, 0o640); err != nil {
		return "", fmt.Errorf("failed to write proof: %w", err)
	}

	return key, nil
}

// Delete removes the file written for ref; a missing file is not an error.
func (s *FileStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := filepath.Join(s.dir, filepath.FromSlash(path.Clean("/" + ref)))

	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete proof: %w", err)
	}

	return nil
}
