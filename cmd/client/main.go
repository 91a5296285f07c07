package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/mkarpushin/tasksync/internal/adapter"
	"github.com/mkarpushin/tasksync/internal/config"
	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/internal/service"
	"github.com/mkarpushin/tasksync/internal/store"
	"github.com/mkarpushin/tasksync/internal/workers"
	"github.com/mkarpushin/tasksync/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	cfg, err := config.GetClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting configs: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)

	clientID := cfg.App.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
		log.Warn().Str("client_id", clientID).Msg("no client id configured, generated a new one; persist it in the config to keep a stable sync identity")
	}

	transport, err := adapter.NewHTTPTransport(cfg.Adapter, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create transport")
	}

	opLog, err := store.NewOperationLog(cfg.Storage.DB.DSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open local operation log")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = opLog.AddProtectedClientID(ctx, clientID); err != nil {
		log.Fatal().Err(err).Msg("protect client id")
	}

	engine := service.NewEngine(opLog, transport, loggingDecisions{log}, service.DefaultEntityKeyExtractor{}, clientID, cfg.Sync, log)
	engine.Sync.SetOnStatusChange(func(status models.SyncStatus) {
		log.Info().Str("status", string(status)).Msg("sync status changed")
	})

	// Two processes pointed at the same database must not sync concurrently;
	// the store-level lock serializes them per cycle.
	syncer := workers.WithProcessLock(engine.Sync, opLog, clientID, log)
	job := workers.NewSyncJob(syncer, log)
	job.Start(ctx, cfg.Workers.SyncInterval)
	defer job.Stop()

	log.Info().Str("client_id", clientID).Msg("sync client started")
	<-ctx.Done()
	log.Info().Msg("shutting down")
}

func newLogger(cfg *config.ClientConfig) *logger.Logger {
	if cfg.App.LogPath != "" {
		return logger.NewClientLogger("tasksync-client", cfg.App.LogPath)
	}
	return logger.NewLogger("tasksync-client")
}

// loggingDecisions is the headless decision policy: whole-state conflicts are
// never resolved automatically, they are logged and cancelled so no data is
// destroyed without a human in the loop. A UI replaces this with interactive
// prompts.
type loggingDecisions struct {
	log *logger.Logger
}

func (d loggingDecisions) ResolveConflict(_ context.Context, conflict models.WholeStateConflict) (models.ConflictDecision, error) {
	d.log.Warn().
		Int("unsynced_at_risk", conflict.UnsyncedCount).
		Int("incoming", conflict.IncomingOpCount).
		Bool("sync_import_filtered", conflict.SyncImportFiltered).
		Msg("whole-state conflict requires a decision, cancelling this cycle")
	return models.DecisionCancel, nil
}

func (d loggingDecisions) ConfirmFreshDownload(_ context.Context, incomingCount int) (bool, error) {
	d.log.Info().Int("incoming", incomingCount).Msg("fresh client, accepting remote history")
	return true, nil
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
