// Package config loads the sessionkit CLI configuration from a YAML or JSON
// file.
package config

import (
	"errors"
	"fmt"

	"github.com/clientauth/sessionkit/pkg/store"
)

// Config is the top-level configuration.
type Config struct {
	Logging        LoggingConfig        `yaml:"logging" json:"logging"`
	Store          store.Config         `yaml:"store" json:"store"`
	Authenticators AuthenticatorsConfig `yaml:"authenticators" json:"authenticators"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level" json:"level"`

	// Color enables colored console output (TTY only).
	Color bool `yaml:"color" json:"color"`

	// File enables additional rotated file output when set.
	File *FileLoggingConfig `yaml:"file" json:"file"`
}

// FileLoggingConfig configures rotated log files.
type FileLoggingConfig struct {
	Path       string `yaml:"path" json:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// AuthenticatorsConfig configures the available authenticator strategies.
type AuthenticatorsConfig struct {
	OAuth2Password *OAuth2PasswordConfig `yaml:"oauth2_password" json:"oauth2_password"`
}

// OAuth2PasswordConfig configures the password-grant strategy.
type OAuth2PasswordConfig struct {
	ClientID                     string `yaml:"client_id" json:"client_id"`
	TokenEndpoint                string `yaml:"token_endpoint" json:"token_endpoint"`
	RevocationEndpoint           string `yaml:"revocation_endpoint" json:"revocation_endpoint"`
	RefreshAccessTokens          *bool  `yaml:"refresh_access_tokens" json:"refresh_access_tokens"`
	RefreshAccessTokensWithScope bool   `yaml:"refresh_access_tokens_with_scope" json:"refresh_access_tokens_with_scope"`
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "", "memory", "leveldb", "redis", "file":
	default:
		return fmt.Errorf("store.type must be one of memory, file, leveldb, redis (got %q)", c.Store.Type)
	}

	if c.Store.Type == "file" && c.Store.File.Path == "" {
		return errors.New("store.file.path is required for the file store")
	}
	if c.Store.Type == "leveldb" && c.Store.LevelDB.Path == "" {
		return errors.New("store.leveldb.path is required for the leveldb store")
	}
	if c.Store.Type == "redis" && c.Store.Redis.Addr == "" {
		return errors.New("store.redis.addr is required for the redis store")
	}

	if c.Authenticators.OAuth2Password == nil {
		return errors.New("authenticators.oauth2_password must be configured")
	}
	if c.Authenticators.OAuth2Password.TokenEndpoint == "" {
		return errors.New("authenticators.oauth2_password.token_endpoint is required")
	}

	return nil
}
