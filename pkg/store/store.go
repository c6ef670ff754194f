// Package store provides session.Store implementations: a volatile
// in-process store, a JSON file store with cross-process change broadcast
// via fsnotify, a LevelDB store, and a Redis store with pub/sub change
// broadcast.
//
// All stores suppress notifications for their own writes: an update only
// reaches subscribers when it originated in another process or execution
// context.
package store

import (
	"errors"
	"io"

	"github.com/clientauth/sessionkit/pkg/logging"
	"github.com/clientauth/sessionkit/pkg/session"
)

// Store is a session.Store that owns resources and must be closed.
type Store interface {
	session.Store
	io.Closer
}

// ErrClosed is returned when an operation is attempted on a closed store.
var ErrClosed = errors.New("store: store is closed")

// Config selects and configures a store backend.
type Config struct {
	// Type specifies the backend: "memory" (default), "file", "leveldb" or
	// "redis".
	Type string `yaml:"type"`

	// File configures the file backend.
	File FileConfig `yaml:"file"`

	// LevelDB configures the LevelDB backend.
	LevelDB LevelDBConfig `yaml:"leveldb"`

	// Redis configures the Redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// FileConfig configures the JSON file store.
type FileConfig struct {
	// Path is the session file path.
	Path string `yaml:"path"`
}

// LevelDBConfig configures the LevelDB store.
type LevelDBConfig struct {
	// Path is the database directory.
	Path string `yaml:"path"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr"`

	// Password is the Redis password (optional).
	Password string `yaml:"password"`

	// DB is the Redis database number.
	DB int `yaml:"db"`

	// Key is the key the session content is stored under.
	// Default: "sessionkit:session".
	Key string `yaml:"key"`

	// Channel is the pub/sub channel change broadcasts go out on.
	// Default: Key + ":updates".
	Channel string `yaml:"channel"`
}

// New creates a store for the configured backend type.
func New(cfg Config, logger logging.Logger) (Store, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	switch cfg.Type {
	case "memory", "":
		return NewEphemeral(), nil
	case "file":
		return NewFile(cfg.File, logger)
	case "leveldb":
		return NewLevelDB(cfg.LevelDB)
	case "redis":
		return NewRedis(cfg.Redis, logger)
	default:
		return nil, errors.New("store: unsupported store type: " + cfg.Type)
	}
}
