package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func writeTempJSONConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

// ── build ─────────────────────────────────────────────────────────────────────

func TestBuild_EmptyBuilder(t *testing.T) {
	cfg, err := newConfigBuilder().build()
	require.NoError(t, err)
	assert.Equal(t, &StructuredConfig{}, cfg)
}

func TestBuild_PropagatesBuilderError(t *testing.T) {
	b := newConfigBuilder()
	b.err = assert.AnError

	cfg, err := b.build()
	assert.Nil(t, cfg)
	require.ErrorIs(t, err, assert.AnError)
}

func TestBuild_MergePrefersEarlierNonZeroValues(t *testing.T) {
	b := newConfigBuilder()
	b.layers = append(b.layers,
		&StructuredConfig{App: App{ClientID: "from-env"}},
		&StructuredConfig{
			App:     App{ClientID: "from-json", LogPath: "/var/log/tasksync.log"},
			Adapter: Adapter{HTTPAddress: "localhost:8080"},
		},
	)

	cfg, err := b.build()
	require.NoError(t, err)
	// mergo keeps the first non-zero value and fills the gaps from later
	// sources.
	assert.Equal(t, "from-env", cfg.App.ClientID)
	assert.Equal(t, "/var/log/tasksync.log", cfg.App.LogPath)
	assert.Equal(t, "localhost:8080", cfg.Adapter.HTTPAddress)
}

// ── env source ────────────────────────────────────────────────────────────────

func TestWithEnv_ReadsPrefixedVariables(t *testing.T) {
	t.Setenv("APP_CLIENT_ID", "env-client")
	t.Setenv("STORAGE_DB_DSN", "file:env.db")
	t.Setenv("ADAPTER_REQUEST_TIMEOUT", "45s")
	t.Setenv("SYNC_DOWNLOAD_PAGE_LIMIT", "250")

	b := newConfigBuilder().withEnv()
	require.NoError(t, b.err)
	require.Len(t, b.layers, 1)

	cfg := b.layers[0]
	assert.Equal(t, "env-client", cfg.App.ClientID)
	assert.Equal(t, "file:env.db", cfg.Storage.DB.DSN)
	assert.Equal(t, 45*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, 250, cfg.Sync.DownloadPageLimit)
}

// ── json source ───────────────────────────────────────────────────────────────

func TestWithJSON_SkippedWhenNoPathConfigured(t *testing.T) {
	b := newConfigBuilder().withJSON()
	require.NoError(t, b.err)
	assert.Empty(t, b.layers)
}

func TestWithJSON_LoadsFileFromEarlierSource(t *testing.T) {
	path := writeTempJSONConfig(t, `{
		"app": {"client_id": "json-client"},
		"adapter": {"address": "sync.example.com", "request_timeout": "30s"},
		"sync": {"restore_attempts": 6, "restore_backoff_base": "2s"},
		"workers": {"sync_interval": "5m"}
	}`)

	b := newConfigBuilder()
	b.layers = append(b.layers, &StructuredConfig{JSONFilePath: path})
	b = b.withJSON()
	require.NoError(t, b.err)
	require.Len(t, b.layers, 2)

	cfg := b.layers[1]
	assert.Equal(t, "json-client", cfg.App.ClientID)
	assert.Equal(t, "sync.example.com", cfg.Adapter.HTTPAddress)
	assert.Equal(t, 30*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, 6, cfg.Sync.RestoreAttempts)
	assert.Equal(t, 2*time.Second, cfg.Sync.RestoreBackoffBase)
	assert.Equal(t, 5*time.Minute, cfg.Workers.SyncInterval)
}

func TestWithJSON_MissingFileSetsError(t *testing.T) {
	b := newConfigBuilder()
	b.layers = append(b.layers, &StructuredConfig{JSONFilePath: "/does/not/exist.json"})
	b = b.withJSON()
	require.Error(t, b.err)
}

// ── Duration wrapper ──────────────────────────────────────────────────────────

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Duration
	}{
		{"string form", `"1h30m"`, 90 * time.Minute},
		{"raw nanoseconds", `1000000000`, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			require.NoError(t, json.Unmarshal([]byte(tt.in), &d))
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}

	var d Duration
	require.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
}

// ── client view ───────────────────────────────────────────────────────────────

func TestClientConfig_Validate(t *testing.T) {
	valid := func() *ClientConfig {
		return &ClientConfig{
			Adapter: ClientAdapter{HTTPAddress: "localhost:8080", RequestTimeout: 30 * time.Second},
			Storage: ClientStorage{DB: ClientDB{DSN: "file:test.db"}},
			Workers: ClientWorkers{SyncInterval: time.Minute},
		}
	}

	require.NoError(t, valid().validate())

	noDSN := valid()
	noDSN.Storage.DB.DSN = ""
	assert.ErrorIs(t, noDSN.validate(), ErrInvalidStorageConfigs)

	noAddr := valid()
	noAddr.Adapter.HTTPAddress = ""
	assert.ErrorIs(t, noAddr.validate(), ErrInvalidAdapterConfigs)

	noInterval := valid()
	noInterval.Workers.SyncInterval = 0
	assert.ErrorIs(t, noInterval.validate(), ErrInvalidWorkerConfigs)
}
