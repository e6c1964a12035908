// Package watcher reports content changes of individual files, such as the
// JSON submission store edited by another process.
package watcher

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches files for content changes. The parent directory of
// every file is watched, so files replaced by rename are still followed.
type FileWatcher struct {
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	fileHashes map[string]string
	callbacks  map[string]func(string)
	debounce   map[string]time.Duration
	timers     map[string]*time.Timer
	dirs       map[string]int
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &FileWatcher{
		watcher:    watcher,
		fileHashes: make(map[string]string),
		callbacks:  make(map[string]func(string)),
		debounce:   make(map[string]time.Duration),
		timers:     make(map[string]*time.Timer),
		dirs:       make(map[string]int),
	}, nil
}

// Watch calls callback with the file path whenever the content of path
// changes. Bursts of events are coalesced over debounceDuration. The file
// does not need to exist yet.
func (fw *FileWatcher) Watch(path string, callback func(string), debounceDuration time.Duration) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	hash, err := fileHash(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to get initial hash: %w", err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	dir := filepath.Dir(path)
	if _, watched := fw.callbacks[path]; !watched {
		if fw.dirs[dir] == 0 {
			if err := fw.watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch directory: %w", err)
			}
		}
		fw.dirs[dir]++
	}

	fw.fileHashes[path] = hash
	fw.callbacks[path] = callback
	fw.debounce[path] = debounceDuration
	return nil
}

// Start begins watching for file changes
func (fw *FileWatcher) Start() {
	go fw.watchLoop()
}

func (fw *FileWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			// writes, creates and renames onto the path all change content
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			fw.schedule(filepath.Clean(event.Name))

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  Watcher error: %v", err)
		}
	}
}

// schedule runs the change check for path, after its debounce delay.
func (fw *FileWatcher) schedule(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, watched := fw.callbacks[path]; !watched {
		return
	}

	delay := fw.debounce[path]
	if delay == 0 {
		go fw.handleFileChange(path)
		return
	}

	if timer, exists := fw.timers[path]; exists {
		timer.Stop()
	}
	fw.timers[path] = time.AfterFunc(delay, func() {
		fw.mu.Lock()
		delete(fw.timers, path)
		fw.mu.Unlock()
		fw.handleFileChange(path)
	})
}

// handleFileChange checks if file has actually changed and calls callback
func (fw *FileWatcher) handleFileChange(path string) {
	newHash, err := fileHash(path)
	if errors.Is(err, os.ErrNotExist) {
		newHash, err = "", nil
	}
	if err != nil {
		log.Printf("⚠️  Failed to get hash for %s: %v", path, err)
		return
	}

	fw.mu.Lock()
	callback, hasCallback := fw.callbacks[path]
	changed := hasCallback && newHash != fw.fileHashes[path]
	if changed {
		fw.fileHashes[path] = newHash
	}
	fw.mu.Unlock()

	if changed {
		callback(path)
	}
}

// fileHash calculates the SHA-256 hash of a file
func fileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// Close stops the file watcher and any pending debounced checks.
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	for path, timer := range fw.timers {
		timer.Stop()
		delete(fw.timers, path)
	}
	fw.mu.Unlock()

	return fw.watcher.Close()
}

// Unwatch stops watching a specific file
func (fw *FileWatcher) Unwatch(path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, watched := fw.callbacks[path]; !watched {
		return nil
	}

	if timer, exists := fw.timers[path]; exists {
		timer.Stop()
		delete(fw.timers, path)
	}
	delete(fw.fileHashes, path)
	delete(fw.callbacks, path)
	delete(fw.debounce, path)

	dir := filepath.Dir(path)
	fw.dirs[dir]--
	if fw.dirs[dir] > 0 {
		return nil
	}
	delete(fw.dirs, dir)
	return fw.watcher.Remove(dir)
}
