package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"doordashboard/internal/log"
)

var (
	// ErrStoreUnavailable means the backing file is missing or unparseable.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrWriteConflict means the write lock could not be taken in time or the
	// file changed between load and save. Callers may retry.
	ErrWriteConflict = errors.New("concurrent write conflict")
	// ErrSkipWrite may be returned by an Update callback to leave the file
	// untouched. Update then returns nil.
	ErrSkipWrite = errors.New("skip write")
)

// Marker identifies one version of the backing file.
type Marker struct {
	ModTime time.Time
	Size    int64
	Exists  bool
}

func (m Marker) Equal(o Marker) bool {
	return m.Exists == o.Exists && m.Size == o.Size && m.ModTime.Equal(o.ModTime)
}

// FileStore is the flat JSON file holding every session. Writers are
// serialized; readers never take the lock.
type FileStore struct {
	path        string
	lockTimeout time.Duration
	sem         chan struct{}
	logger      *log.Logger
}

func NewFileStore(path string, lockTimeout time.Duration, logger *log.Logger) *FileStore {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &FileStore{
		path:        path,
		lockTimeout: lockTimeout,
		sem:         make(chan struct{}, 1),
		logger:      logger.WithComponent(log.ComponentStorage),
	}
}

func (s *FileStore) Path() string {
	return s.path
}

// Marker reports the current file version. A missing file is not an error.
func (s *FileStore) Marker() (Marker, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Marker{}, nil
	}
	if err != nil {
		return Marker{}, fmt.Errorf("%w: stat %s: %v", ErrStoreUnavailable, s.path, err)
	}
	return Marker{ModTime: info.ModTime(), Size: info.Size(), Exists: true}, nil
}

// Load reads the whole document along with the marker it was read at.
func (s *FileStore) Load(ctx context.Context) (Document, Marker, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, Marker{}, err
	}
	marker, err := s.Marker()
	if err != nil {
		return Document{}, Marker{}, err
	}
	if !marker.Exists {
		return Document{}, marker, fmt.Errorf("%w: %s does not exist", ErrStoreUnavailable, s.path)
	}
	doc, err := s.read()
	if err != nil {
		return Document{}, marker, err
	}
	return doc, marker, nil
}

// Update runs fn on the current document and saves the result atomically.
// A missing file starts from an empty document; an unparseable one is left
// untouched and the update fails.
func (s *FileStore) Update(ctx context.Context, fn func(doc *Document) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	marker, err := s.Marker()
	if err != nil {
		return err
	}
	doc := Document{}
	if marker.Exists {
		if doc, err = s.read(); err != nil {
			return err
		}
	}

	if err := fn(&doc); err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		return err
	}

	current, err := s.Marker()
	if err != nil {
		return err
	}
	if !current.Equal(marker) {
		s.logger.WarnContext(ctx, "Backing file changed during update", log.FieldDataFile, s.path)
		return fmt.Errorf("%w: %s modified by another writer", ErrWriteConflict, s.path)
	}
	return s.write(doc)
}

// Backup copies the current file to path+".bak" under the write lock and
// returns the backup path.
func (s *FileStore) Backup(ctx context.Context) (string, error) {
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.release()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrStoreUnavailable, s.path, err)
	}
	backup := s.path + ".bak"
	if err := WriteFileAtomic(backup, data); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	s.logger.InfoContext(ctx, "Backup written", log.FieldDataFile, backup)
	return backup, nil
}

func (s *FileStore) acquire(ctx context.Context) error {
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrWriteConflict, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: write lock not acquired within %s", ErrWriteConflict, s.lockTimeout)
	}
}

func (s *FileStore) release() {
	<-s.sem
}

func (s *FileStore) read() (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: read %s: %v", ErrStoreUnavailable, s.path, err)
	}
	doc, err := DecodeDocument(bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, s.path, err)
	}
	return doc, nil
}

func (s *FileStore) write(doc Document) error {
	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return WriteFileAtomic(s.path, buf.Bytes())
}

// WriteFileAtomic replaces path with data via a temp file and rename so a
// reader never sees a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
