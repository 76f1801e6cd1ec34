package main

import (
	"log"

	"github.com/joho/godotenv"
	infra "github.com/studylane/sync-agent/internal/infrastructure"
	"github.com/studylane/sync-agent/internal/infrastructure/auth"
	"github.com/studylane/sync-agent/internal/infrastructure/driver"
	"github.com/studylane/sync-agent/internal/infrastructure/logging"
	"github.com/studylane/sync-agent/internal/infrastructure/uuid"
	ihttp "github.com/studylane/sync-agent/internal/interfaces/http"
	"github.com/studylane/sync-agent/internal/lesson"
	"github.com/studylane/sync-agent/internal/netmon"
	"github.com/studylane/sync-agent/internal/notify"
	"github.com/studylane/sync-agent/internal/platform"
	"github.com/studylane/sync-agent/internal/progress"
	"github.com/studylane/sync-agent/internal/submission"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	godotenv.Load()
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	logger = logger.With(
		zap.String("service.id", option.AppID),
	)
	defer logger.Sync()

	store, err := newStateStore(option, logger)
	if err != nil {
		log.Fatalf("Failed to open state storage: %s\n", err)
	}
	defer store.Close()
	logger.Debug("Open state storage", zap.String("storage.driver", option.Storage.Driver),
		zap.String("storage.path", option.Storage.Path),
	)

	session, err := auth.NewSession(option.Platform.SessionToken)
	if err != nil {
		log.Fatalf("Failed to decode session token: %s\n", err)
	}
	if session.Expired() {
		logger.Warn("session token is already expired, platform calls will be rejected until it is replaced")
	}

	client, err := platform.NewClient(&platform.Config{
		BaseURL:    option.Platform.BaseURL,
		HealthPath: option.Platform.HealthPath,
		Timeout:    option.Platform.Timeout,
	}, session, logger)
	if err != nil {
		log.Fatalf("Failed to create platform client: %s\n", err)
	}

	hub := notify.NewHub(logger)
	notifier := notify.Multi(notify.NewZapNotifier(logger), hub)

	monitor := netmon.NewMonitor(client, option.Sync.ProbeSettleDelay, logger)
	defer monitor.Close()

	queue := progress.NewQueue(store, logger)
	syncer := progress.NewSyncer(queue, client, monitor, notifier, option.Sync.AutoSyncDelay, logger)
	defer syncer.Close()
	monitor.Subscribe(syncer)
	monitor.Subscribe(netmon.ListenerFuncs{
		Online: func() {
			hub.Notify(notify.NewEvent(notify.TypeConnectivity, "Back online", ""))
		},
		Offline: func() {
			hub.Notify(notify.NewEvent(notify.TypeConnectivity, "Connection lost", "answers will be queued locally"))
		},
	})

	service := submission.NewService(client, queue, monitor, logger)
	orchestrator := submission.NewOrchestrator(service, option.Sync.SuccessRevertDelay, logger)
	defer orchestrator.Close()

	IDGenerator := uuid.NewNanoIDGenerator(option.Security.IDLength)
	registry := submission.NewRegistry(store, IDGenerator, logger)

	views := lesson.NewViewCache(store, option.Sync.ViewCacheTTL, logger)
	reconciler := lesson.NewReconciler(client, views, notifier, logger)

	ihttp.Serve(store, option, monitor, queue, syncer, orchestrator, registry, reconciler, hub, logger)
}

func newStateStore(option *infra.AppConfig, logger *zap.Logger) (driver.KeyValueDB, error) {
	switch option.Storage.Driver {
	case "redis":
		return driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password), nil
	case "memory":
		return driver.NewMemoryStore(), nil
	default:
		return driver.NewSQLiteStore(option.Storage.Path, logger)
	}
}
