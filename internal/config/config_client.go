package config

import (
	"fmt"
	"time"
)

// Defaults applied by [GetClientConfig] when the merged sources leave a sync
// tuning knob unset.
const (
	defaultRestoreAttempts    = 4
	defaultRestoreBackoffBase = 2 * time.Second
)

// ClientApp holds client-side application settings derived from the shared
// structured config.
type ClientApp struct {
	// ClientID is this device's stable sync identity; empty means "generate
	// and persist one on first run".
	ClientID string
	// LogPath is the rotated client log file location.
	LogPath string
	// Version is the application version string.
	Version string
}

// ClientAdapter holds network settings used by the client transport layer.
type ClientAdapter struct {
	// HTTPAddress is the sync server endpoint used by the client.
	HTTPAddress string
	// RequestTimeout is the default timeout for outbound client requests.
	RequestTimeout time.Duration
}

// ClientDB contains local database connection settings for the client.
type ClientDB struct {
	// DSN is the SQLite connection string for the local operation log.
	DSN string
}

// ClientStorage groups client storage backend settings.
type ClientStorage struct {
	// DB holds local database settings.
	DB ClientDB
}

// ClientSync groups sync engine tuning knobs.
type ClientSync struct {
	// DownloadPageLimit is the maximum operations per download page.
	DownloadPageLimit int
	// RestoreAttempts is the total attempt count for restore retries.
	RestoreAttempts int
	// RestoreBackoffBase is the first exponential backoff delay.
	RestoreBackoffBase time.Duration
}

// ClientWorkers contains client background worker settings.
type ClientWorkers struct {
	// SyncInterval defines how often the background sync job runs.
	SyncInterval time.Duration
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	// App contains application-level client settings.
	App ClientApp
	// Adapter contains client transport addresses and timeouts.
	Adapter ClientAdapter
	// Storage contains client storage settings.
	Storage ClientStorage
	// Sync contains sync engine tuning knobs.
	Sync ClientSync
	// Workers contains background job settings.
	Workers ClientWorkers
}

// GetClientConfig builds and validates a client-specific config view from the
// merged structured configuration.
//
// It loads the base config via [GetStructuredConfig], maps only the fields
// relevant to the client runtime, applies sync defaults, and validates the
// resulting [ClientConfig].
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := &ClientConfig{
		App: ClientApp{
			ClientID: cfg.App.ClientID,
			LogPath:  cfg.App.LogPath,
			Version:  cfg.App.Version,
		},
		Adapter: ClientAdapter{
			HTTPAddress:    cfg.Adapter.HTTPAddress,
			RequestTimeout: cfg.Adapter.RequestTimeout,
		},
		Storage: ClientStorage{
			DB: ClientDB{
				DSN: cfg.Storage.DB.DSN,
			},
		},
		Sync: ClientSync{
			DownloadPageLimit:  cfg.Sync.DownloadPageLimit,
			RestoreAttempts:    cfg.Sync.RestoreAttempts,
			RestoreBackoffBase: cfg.Sync.RestoreBackoffBase,
		},
		Workers: ClientWorkers{SyncInterval: cfg.Workers.SyncInterval},
	}

	if clientCfg.Sync.RestoreAttempts <= 0 {
		clientCfg.Sync.RestoreAttempts = defaultRestoreAttempts
	}
	if clientCfg.Sync.RestoreBackoffBase <= 0 {
		clientCfg.Sync.RestoreBackoffBase = defaultRestoreBackoffBase
	}

	return clientCfg, clientCfg.validate()
}
