// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the tasksync
// client. It aggregates all sub-configurations and is populated by merging
// values from environment variables, command-line flags, and an optional JSON
// file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings such as the client identity and
	// log file location.
	App App `envPrefix:"APP_"`

	// Storage holds configuration for the local operation-log database.
	Storage Storage `envPrefix:"STORAGE_"`

	// Adapter holds network address and timeout settings for the remote sync
	// transport.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Sync holds tuning knobs for the sync engine itself.
	Sync Sync `envPrefix:"SYNC_"`

	// Workers holds configuration for background worker processes.
	Workers Workers `envPrefix:"WORKERS_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// ClientID is this device's stable sync identity. When empty a UUIDv7 is
	// generated on first run and persisted in the local store.
	// Env: APP_CLIENT_ID
	ClientID string `env:"CLIENT_ID"`

	// LogPath is the rotated client log file location.
	// Env: APP_LOG_PATH
	LogPath string `env:"LOG_PATH"`

	// Version is the semantic version string of the running application.
	// Env: APP_VERSION
	Version string `env:"VERSION"`
}

// Storage groups the configuration for the local persistence backend.
type Storage struct {
	// DB holds the local database connection settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the local SQLite operation log.
type DB struct {
	// DSN is the SQLite data source name, typically a file path
	// (e.g. "file:tasksync.db?_journal_mode=WAL").
	// Env: STORAGE_DB_DSN
	DSN string `env:"DSN"`
}

// Adapter holds network settings for the outbound sync transport.
type Adapter struct {
	// HTTPAddress is the sync server endpoint (e.g. "https://sync.example.com").
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout is the maximum duration allowed for a single outbound
	// request before the client cancels it (e.g. "30s", "1m").
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Sync holds tuning knobs for the sync engine.
type Sync struct {
	// DownloadPageLimit is the maximum number of operations requested per
	// download page. Zero means the server default.
	// Env: SYNC_DOWNLOAD_PAGE_LIMIT
	DownloadPageLimit int `env:"DOWNLOAD_PAGE_LIMIT"`

	// RestoreAttempts is the total attempt count for timeout-classified
	// restore failures.
	// Env: SYNC_RESTORE_ATTEMPTS
	RestoreAttempts int `env:"RESTORE_ATTEMPTS"`

	// RestoreBackoffBase is the first exponential backoff delay between
	// restore attempts (doubled each retry).
	// Env: SYNC_RESTORE_BACKOFF_BASE
	RestoreBackoffBase time.Duration `env:"RESTORE_BACKOFF_BASE"`
}

// Workers holds configuration for background worker processes.
type Workers struct {
	// SyncInterval defines how often the background sync job runs.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (last source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
