package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a sync server address (e.g. "https://sync.example.com")
//	-d local database DSN (SQLite path)
//	-c/-config json file path with configs
//	-client-id stable sync client identity
//	-log-path rotated client log file path
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-sync-interval background sync interval (e.g., "5m")
//	-download-page-limit max operations per download page
func ParseFlags() *StructuredConfig {
	var serverAddress string
	var databaseDSN string
	var jsonConfigPath string
	var clientID string
	var logPath string
	var requestTimeout time.Duration
	var syncInterval time.Duration
	var downloadPageLimit int

	flag.StringVar(&serverAddress, "a", "", "Sync server address")
	flag.StringVar(&databaseDSN, "d", "", "Local database DSN")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&clientID, "client-id", "", "Stable sync client identity")
	flag.StringVar(&logPath, "log-path", "", "Client log file path")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Background sync interval (e.g., 5m)")
	flag.IntVar(&downloadPageLimit, "download-page-limit", 0, "Max operations per download page")

	flag.Parse()

	return &StructuredConfig{
		App: App{
			ClientID: clientID,
			LogPath:  logPath,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Adapter: Adapter{
			HTTPAddress:    serverAddress,
			RequestTimeout: requestTimeout,
		},
		Sync: Sync{
			DownloadPageLimit: downloadPageLimit,
		},
		Workers: Workers{
			SyncInterval: syncInterval,
		},
		JSONFilePath: jsonConfigPath,
	}
}
