package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mfafio/mfaf/pkg/mfaf"
)

// LocalSource is a mfaf.ByteSource backed by an open local file handle.
type LocalSource struct {
	f    *os.File
	size int64
}

// OpenLocal opens path for random-access reads. The returned source
// satisfies mfaf.ByteSource; callers are responsible for calling
// Close once they are done with it, including after closing any
// Archive loaded lazily from it.
func OpenLocal(path string) (*LocalSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &LocalSource{f: f, size: fi.Size()}, nil
}

func (s *LocalSource) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *LocalSource) Size() int64 { return s.size }

// Close releases the underlying file handle.
func (s *LocalSource) Close() error { return s.f.Close() }

// SaveLocal writes a's encoded form to path, taking an advisory file
// lock on path+".lock" for the duration of the write so two local
// writers targeting the same path don't interleave. The write lands
// in a uuid-suffixed temp file in the same directory and is renamed
// into place only on success, so a failed Save never leaves a partial
// file at path.
func SaveLocal(path string, a *mfaf.Archive) error {
	lockPath := path + ".lock"
	fileLock := flock.New(lockPath)
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("mfaf: acquire lock for %q: %w", path, err)
	}
	defer fileLock.Unlock()
	defer os.Remove(lockPath)

	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New().String()[:8]))

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("mfaf: create temp file %q: %w", tmpPath, err)
	}

	if err := a.Save(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("mfaf: encode archive: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("mfaf: close temp file %q: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("mfaf: rename %q to %q: %w", tmpPath, path, err)
	}
	return nil
}
