package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/clientauth/sessionkit/pkg/authenticator"
)

// sessionKey is the single key the session content lives under.
var sessionKey = []byte("session")

// LevelDB persists the session content in a local LevelDB database. It is
// durable across restarts but has no cross-process broadcast channel, so
// OnUpdate never fires.
type LevelDB struct {
	mu     sync.Mutex
	db     *leveldb.DB
	closed bool
}

// NewLevelDB opens (or creates) the database at cfg.Path, attempting
// recovery when it is corrupted.
func NewLevelDB(cfg LevelDBConfig) (*LevelDB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: leveldb store requires a path")
	}

	opts := &opt.Options{
		Strict:      opt.DefaultStrict,
		Compression: opt.SnappyCompression,
	}

	db, err := leveldb.OpenFile(cfg.Path, opts)
	if err != nil {
		if _, corrupted := err.(*ldberrors.ErrCorrupted); corrupted {
			db, err = leveldb.RecoverFile(cfg.Path, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("store: failed to open leveldb at %s: %w", cfg.Path, err)
		}
	}

	return &LevelDB{db: db}, nil
}

// Restore reads the persisted content. An empty database yields an empty
// snapshot.
func (l *LevelDB) Restore(ctx context.Context) (authenticator.Data, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}

	raw, err := l.db.Get(sessionKey, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return authenticator.Data{}, nil
		}
		return nil, fmt.Errorf("store: leveldb get failed: %w", err)
	}

	var data authenticator.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("store: failed to parse persisted session data: %w", err)
	}
	return data, nil
}

// Persist writes the content with a synced write.
func (l *LevelDB) Persist(ctx context.Context, data authenticator.Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("store: failed to marshal session data: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	if err := l.db.Put(sessionKey, raw, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("store: leveldb put failed: %w", err)
	}
	return nil
}

// OnUpdate never fires; LevelDB has no change broadcast. The returned cancel
// function is a no-op.
func (l *LevelDB) OnUpdate(fn func(authenticator.Data)) func() {
	return func() {}
}

// Close closes the database.
func (l *LevelDB) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.closed = true
	return l.db.Close()
}
