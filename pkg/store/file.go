package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/atomicdeploy/form-receipts/pkg/submission"
)

// FileStore keeps submissions in a JSON file holding an array in insertion
// order. Every write replaces the file atomically.
type FileStore struct {
	path string
	opts options

	mu          sync.RWMutex
	items       []submission.Submission
	byID        map[string]int
	fingerprint [sha256.Size]byte
}

// NewFileStore opens the JSON file at path, creating its directory if
// needed. A missing file is an empty store.
func NewFileStore(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	fs := &FileStore{
		path: path,
		opts: buildOptions(opts),
		byID: make(map[string]int),
	}
	if _, err := fs.Reload(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Path returns the file backing the store.
func (fs *FileStore) Path() string {
	return fs.path
}

// Reload re-reads the file and reports whether its content differs from
// what the store last read or wrote.
// The file is read under the write lock so a concurrent Create cannot be
// replaced by an older snapshot.
func (fs *FileStore) Reload() (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		data = nil
	} else if err != nil {
		return false, fmt.Errorf("failed to read store file: %w", err)
	}

	sum := sha256.Sum256(data)
	if sum == fs.fingerprint && fs.items != nil {
		return false, nil
	}

	var items []submission.Submission
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &items); err != nil {
			return false, fmt.Errorf("failed to parse store file: %w", err)
		}
	}
	if items == nil {
		items = []submission.Submission{}
	}

	fs.items = items
	fs.byID = make(map[string]int, len(items))
	for i, s := range items {
		fs.byID[s.ID] = i
	}
	fs.fingerprint = sum
	return true, nil
}

// Create implements Store.
func (fs *FileStore) Create(ctx context.Context, in submission.Input) (submission.Submission, error) {
	in, err := prepare(in)
	if err != nil {
		return submission.Submission{}, err
	}

	sub := submission.New(fs.opts.newID(), in, fs.opts.now())

	fs.mu.Lock()
	defer fs.mu.Unlock()

	items := append(fs.items[:len(fs.items):len(fs.items)], sub)
	sum, err := fs.write(items)
	if err != nil {
		return submission.Submission{}, err
	}

	fs.items = items
	fs.byID[sub.ID] = len(items) - 1
	fs.fingerprint = sum
	return sub, nil
}

// write replaces the store file with items through a temp file and rename.
func (fs *FileStore) write(items []submission.Submission) ([sha256.Size]byte, error) {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("failed to encode JSON: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), "."+filepath.Base(fs.path)+".*")
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return [sha256.Size]byte{}, fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("failed to replace store file: %w", err)
	}

	return sha256.Sum256(data), nil
}

// List implements Store.
func (fs *FileStore) List(ctx context.Context) ([]submission.Submission, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return newestFirst(fs.items), nil
}

// Get implements Store.
func (fs *FileStore) Get(ctx context.Context, id string) (submission.Submission, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	idx, ok := fs.byID[id]
	if !ok {
		return submission.Submission{}, ErrNotFound
	}
	return fs.items[idx], nil
}

// Close implements Store.
func (fs *FileStore) Close() error {
	return nil
}
