package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oiime/logrusbun"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"

	"github.com/ticobot/ticobot/config"
	"github.com/ticobot/ticobot/pkg/models"
	"github.com/ticobot/ticobot/pkg/providers"
	"github.com/ticobot/ticobot/pkg/server"
	"github.com/ticobot/ticobot/pkg/stats"
	"github.com/ticobot/ticobot/pkg/store/postgres"
	"github.com/ticobot/ticobot/pkg/tasks"
)

const ErrPostgresDSNNotSet = "store.postgres.dsn must be set"

// run is the entrypoint for the ticobot server
func run() {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Fatalf("Error configuring TicoBot: %s", err)
	}

	handleCLIOptions(cfg)

	log.Infof("Starting ticobot server version %s", config.VersionString)

	config.SetLogLevel(cfg)

	shutdownTracing := setupTracing(context.Background(), cfg)
	defer shutdownTracing()

	appState := NewAppState(cfg)

	srv := server.Create(appState)

	log.Infof("Listening on: %s", srv.Addr)
	err = srv.ListenAndServe()
	if err != nil {
		log.Fatal(err)
	}
}

// NewAppState creates an AppState struct from the config file / ENV,
// constructs the LLM and embedding providers, initializes the postgres
// stores and, when async ingestion is enabled, starts the task router.
func NewAppState(cfg *config.Config) *models.AppState {
	ctx := context.Background()

	llmProvider, err := providers.NewLLMProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create LLM provider: %v", err)
	}
	embeddingProvider, err := providers.NewEmbeddingProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create embedding provider: %v", err)
	}

	appState := &models.AppState{
		LLMProvider:       llmProvider,
		EmbeddingProvider: embeddingProvider,
		UsageTracker:      stats.NewTracker(cfg.Stats.CostPer1KTokens),
		Config:            cfg,
	}

	initializeStores(ctx, appState)
	initializeTaskRouter(ctx, appState)
	setupSignalHandler(appState)
	setupPurgeProcessor(ctx, appState)

	return appState
}

// handleCLIOptions handles CLI options that don't require the server to run
func handleCLIOptions(cfg *config.Config) {
	if showVersion {
		fmt.Println(config.VersionString)
		os.Exit(0)
	}
	if dumpConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			log.Fatalf("Failed to dump config: %v", err)
		}
		fmt.Println(string(out))
		os.Exit(0)
	}
}

// initializeStores connects to postgres and hangs the document store, vector
// store and answer cache off the AppState. All three share one bun.DB pool.
func initializeStores(ctx context.Context, appState *models.AppState) {
	if appState.Config.Store.Postgres.DSN == "" {
		log.Fatal(ErrPostgresDSNNotSet)
	}

	db, err := postgres.NewPostgresConn(appState)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if appState.Config.Log.Level == "debug" {
		pgDebugLogging(db)
	}

	documentStore, err := postgres.NewDocumentStore(appState, db)
	if err != nil {
		log.Fatalf("Failed to create document store: %v", err)
	}
	vectorStore, err := postgres.NewVectorStore(appState, db)
	if err != nil {
		log.Fatalf("Failed to create vector store: %v", err)
	}
	answerCache, err := postgres.NewAnswerCache(appState, db)
	if err != nil {
		log.Fatalf("Failed to create answer cache: %v", err)
	}

	appState.DocumentStore = documentStore
	appState.VectorStore = vectorStore
	appState.AnswerCache = answerCache

	if err := vectorStore.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize vector indexing: %v", err)
	}
}

// initializeTaskRouter starts the task queue when async ingestion is on.
// The queue uses its own pgx connection as watermill requires isolation
// levels the bun driver doesn't support.
func initializeTaskRouter(ctx context.Context, appState *models.AppState) {
	if !appState.Config.Ingest.Async {
		log.Debug("async ingestion disabled; chunks are embedded inline")
		return
	}

	db, err := postgres.NewPostgresConnForQueue(appState)
	if err != nil {
		log.Fatalf("Failed to connect to database for task queue: %v", err)
	}

	tasks.RunTaskRouter(ctx, appState, db)
}

func pgDebugLogging(db *bun.DB) {
	db.AddQueryHook(logrusbun.NewQueryHook(logrusbun.QueryHookOptions{
		LogSlow:         time.Second,
		Logger:          log,
		QueryLevel:      logrus.DebugLevel,
		ErrorLevel:      logrus.ErrorLevel,
		SlowLevel:       logrus.WarnLevel,
		MessageTemplate: "{{.Operation}}[{{.Duration}}]: {{.Query}}",
		ErrorTemplate:   "{{.Operation}}[{{.Duration}}]: {{.Query}}: {{.Error}}",
	}))
}

// setupSignalHandler sets up a signal handler to close the store and task
// router connections on termination
func setupSignalHandler(appState *models.AppState) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		if appState.TaskRouter != nil {
			if err := appState.TaskRouter.Close(); err != nil {
				log.Errorf("Error closing task router: %v", err)
			}
		}
		if err := appState.DocumentStore.Close(); err != nil {
			log.Errorf("Error closing DocumentStore connection: %v", err)
		}
		os.Exit(0)
	}()
}

// setupPurgeProcessor sets up a go routine to hard-delete soft-deleted rows
// and drop expired cache entries at a regular interval. It's cancellable via
// the passed context. If Config.DataConfig.PurgeEvery is 0, this function
// does nothing.
func setupPurgeProcessor(ctx context.Context, appState *models.AppState) {
	interval := time.Duration(appState.Config.DataConfig.PurgeEvery) * time.Minute
	if interval == 0 {
		log.Debug("purge delete processor disabled")
		return
	}

	log.Infof("Starting purge delete processor. Purging every %v", interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("Stopping purge delete processor")
				return
			default:
				if err := appState.DocumentStore.PurgeDeleted(ctx); err != nil {
					log.Errorf("error purging deleted records: %v", err)
				}
				if err := appState.AnswerCache.PurgeExpired(ctx); err != nil {
					log.Errorf("error purging expired cache entries: %v", err)
				}
			}
			time.Sleep(interval)
		}
	}()
}
