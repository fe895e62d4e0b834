// Command memvaultd is the process wiring entrypoint: it loads
// configuration, opens the configured storage backend, builds every
// service package, registers task handlers and recurring schedules with
// the task scheduler, and blocks until interrupted. There is no HTTP or
// RPC surface here; this binary exists so the engine can run as a standing
// process with its background workers (decay sweeps, session cleanup, tier
// generation, fact decomposition, auto-enrichment) live.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/memvault/memvault/internal/association"
	"github.com/memvault/memvault/internal/cache"
	"github.com/memvault/memvault/internal/config"
	"github.com/memvault/memvault/internal/contradiction"
	"github.com/memvault/memvault/internal/decay"
	"github.com/memvault/memvault/internal/embedding"
	"github.com/memvault/memvault/internal/engine"
	"github.com/memvault/memvault/internal/extraction"
	"github.com/memvault/memvault/internal/llm"
	"github.com/memvault/memvault/internal/session"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/internal/storage/memdb"
	"github.com/memvault/memvault/internal/storage/postgres"
	"github.com/memvault/memvault/internal/storage/sqlite"
	"github.com/memvault/memvault/internal/tasks"
	"github.com/memvault/memvault/internal/tiering"
	"github.com/memvault/memvault/internal/workspace"
)

// defaultTenant is the tenant reserved namespaces are provisioned for when
// the process serves a single-tenant deployment.
const defaultTenant = "default"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults layered with MEMVAULT_ env vars)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("memvaultd: loading config: %v", err)
	}

	store, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatalf("memvaultd: opening storage backend %q: %v", cfg.Storage.Backend, err)
	}
	defer closeStore()

	wsSvc := workspace.New(store)
	if err := wsSvc.EnsureReserved(context.Background(), defaultTenant); err != nil {
		log.Fatalf("memvaultd: provisioning reserved workspaces: %v", err)
	}

	embedProvider, err := llm.NewEmbeddingProvider(cfg.Embedding)
	if err != nil {
		log.Fatalf("memvaultd: building embedding provider: %v", err)
	}
	generator, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("memvaultd: building text generator: %v", err)
	}
	reranker := llm.NewLLMReranker(generator)

	memCache := cache.NewLRUCache(4096)
	embedder := embedding.New(embedProvider, memCache)

	scheduler := tasks.New(256, 4)

	assoc := association.New(store, store, generator)
	contra := contradiction.New(store, store)
	extract := extraction.New(generator)
	tier := tiering.New(generator, store, scheduler)
	decaySvc := decay.New(store, store)
	sess := session.New(store, store, scheduler, generator, cfg.Session.TouchTTL)

	engineCfg := engine.Config{
		RecallOverfetch:            cfg.Recall.Overfetch,
		MaxGraphExpansion:          cfg.Recall.MaxGraphExpansion,
		IncludeAssociations:        cfg.Recall.IncludeAssociations,
		TraverseDepth:              cfg.Recall.TraverseDepth,
		RecencyWeight:              cfg.Recall.RecencyWeight,
		RecencyHalfLifeHours:       cfg.Recall.RecencyHalfLifeHours,
		RecallCacheTTL:             cfg.Recall.CacheTTL,
		HybridRAGThreshold:         cfg.Recall.HybridRAGThreshold,
		FactDecompositionEnabled:   cfg.Ingest.FactDecompositionEnabled,
		FactDecompositionMinLength: cfg.Ingest.FactDecompositionMinLength,
		AutoAssociationThreshold:   cfg.Ingest.AutoAssociationThreshold,
	}
	eng := engine.New(store, store, embedder, generator, reranker, memCache, scheduler, assoc, contra, extract, tier, engineCfg)

	registerHandlers(scheduler, eng, sess, tier, decaySvc, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	log.Printf("memvaultd: running (storage=%s, embedding=%s, llm=%s)", cfg.Storage.Backend, cfg.Embedding.Provider, cfg.LLM.Provider)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("memvaultd: shutting down")
}

// openStore opens the configured storage backend and returns it alongside a
// close function, so sqlite/postgres connections get cleaned up on shutdown
// while memdb's no-op Close still satisfies the same call shape.
func openStore(cfg config.StorageConfig) (storage.Store, func(), error) {
	switch cfg.Backend {
	case "postgres":
		store, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "memory":
		store := memdb.New()
		return store, func() {}, nil
	case "sqlite", "":
		path := cfg.SQLitePath
		if path == "" {
			path = "./data/memvault.db"
		}
		store, err := sqlite.New(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, &unsupportedBackendError{backend: cfg.Backend}
	}
}

type unsupportedBackendError struct{ backend string }

func (e *unsupportedBackendError) Error() string {
	return "unsupported storage backend: " + e.backend
}

// registerHandlers binds every ad-hoc and recurring task type the core
// schedules against the scheduler that runs them.
func registerHandlers(scheduler *tasks.Service, eng *engine.Service, sess *session.Service, tier *tiering.Service, decaySvc *decay.Service, cfg *config.Config) {
	scheduler.RegisterHandler(session.TaskTouchSession, sess.TouchHandler)
	scheduler.RegisterHandler(session.TaskRememberWorkingMemory, sess.RememberWorkingMemoryHandler)
	scheduler.RegisterHandler(tiering.TaskType, tier.Handler)
	scheduler.RegisterHandler(engine.TaskDecomposeFacts, eng.DecomposeFactsHandler)
	scheduler.RegisterHandler(engine.TaskAutoEnrich, eng.AutoEnrichHandler)

	if cfg.Tasks.SessionCleanupEnabled {
		scheduler.RegisterHandler(session.TaskSessionCleanup, sess.CleanupHandler)
		scheduler.RegisterRecurring(session.TaskSessionCleanup, tasks.Schedule{Interval: cfg.Tasks.SessionCleanupInterval})
	}
	if cfg.Tasks.DecayEnabled {
		scheduler.RegisterHandler(decay.TaskType, decaySvc.Handler)
		scheduler.RegisterRecurring(decay.TaskType, tasks.Schedule{Interval: cfg.Tasks.DecayInterval})
	}
}
