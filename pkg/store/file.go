package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/clientauth/sessionkit/pkg/authenticator"
	"github.com/clientauth/sessionkit/pkg/events"
	"github.com/clientauth/sessionkit/pkg/logging"
)

// fileDebounce coalesces the burst of fsnotify events a single save
// produces.
const fileDebounce = 100 * time.Millisecond

// File persists the session content as a JSON file and watches it with
// fsnotify. When another process rewrites the file, subscribers receive the
// new content; the store's own writes are recognized by content hash and
// suppressed.
type File struct {
	path    string
	logger  logging.Logger
	updates events.Signal[authenticator.Data]

	mu       sync.Mutex
	lastHash string
	closed   bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFile creates a file store at cfg.Path and starts watching the file's
// directory for external changes.
func NewFile(cfg FileConfig, logger logging.Logger) (*File, error) {
	if cfg.Path == "" {
		return nil, errors.New("store: file store requires a path")
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: failed to resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: failed to create directory: %w", err)
	}

	// Watch the directory, not the file: atomic saves replace the inode and
	// a direct file watch would go stale after the first rename.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("store: failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("store: failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	f := &File{
		path:    absPath,
		logger:  logger.WithModule("store/file"),
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go f.watch()

	return f, nil
}

// Restore reads the session file. A missing file yields an empty snapshot.
func (f *File) Restore(ctx context.Context) (authenticator.Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return authenticator.Data{}, nil
		}
		return nil, fmt.Errorf("store: failed to read %s: %w", f.path, err)
	}

	var data authenticator.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("store: failed to parse %s: %w", f.path, err)
	}

	f.lastHash = hashContent(raw)
	return data, nil
}

// Persist writes the content atomically (temp file + rename) and records its
// hash so the resulting fsnotify events are not reported back as an external
// change.
func (f *File) Persist(ctx context.Context, data authenticator.Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("store: failed to marshal session data: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("store: failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("store: failed to replace %s: %w", f.path, err)
	}

	f.lastHash = hashContent(raw)
	return nil
}

// OnUpdate subscribes to externally written session file changes.
func (f *File) OnUpdate(fn func(authenticator.Data)) func() {
	return f.updates.Subscribe(fn)
}

// Close stops the watcher. Pending notifications are dropped.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.closed = true
	f.mu.Unlock()

	err := f.watcher.Close()
	<-f.done
	return err
}

func (f *File) watch() {
	defer close(f.done)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(fileDebounce, f.reload)

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("Session file watch error", "error", err)
		}
	}
}

// reload re-reads the file after a change event and publishes the content
// unless it matches the last write this store made itself.
func (f *File) reload() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		f.mu.Unlock()
		f.logger.Warn("Failed to re-read session file", "error", err)
		return
	}

	hash := hashContent(raw)
	if hash == f.lastHash {
		f.mu.Unlock()
		return
	}

	var data authenticator.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		f.mu.Unlock()
		f.logger.Warn("Session file changed but is not valid JSON", "error", err)
		return
	}

	f.lastHash = hash
	f.mu.Unlock()

	f.logger.Debug("Session file changed externally")
	f.updates.Publish(data)
}

func hashContent(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
