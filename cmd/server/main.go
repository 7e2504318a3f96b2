package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gwi.com/story-weaver/internal/api"
	"gwi.com/story-weaver/internal/config"
	"gwi.com/story-weaver/internal/core"
	"gwi.com/story-weaver/internal/logger"
	"gwi.com/story-weaver/internal/store"
)

func main() {
	seedFile := flag.String("seed", "", "Create the stories listed in this JSON file and exit")
	backfill := flag.Bool("backfill-contributors", false, "Write missing contributor markers, fix contributor counts and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	docStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize document store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer docStore.Close()
	log.Info("Document store ready",
		zap.String("driver", cfg.StoreDriver),
		zap.Duration("timeout", cfg.StoreTimeout),
		zap.Bool("enforce_indexes", cfg.EnforceIndexes),
	)

	var opts []core.Option
	if cfg.SuggestionsEnabled() {
		llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, log)
		if err != nil {
			log.Fatal("Failed to initialize LLM service", zap.Error(err))
		}
		defer llmService.Close()
		opts = append(opts, core.WithPromptSuggester(llmService))
	} else {
		log.Info("GEMINI_API_KEY not set, prompt suggestions disabled")
	}

	manager := core.NewStoryManager(docStore, log, opts...)

	if *seedFile != "" {
		log.Info("Starting seeding", zap.String("file", *seedFile))
		n, err := manager.SeedFromFile(ctx, *seedFile)
		if err != nil {
			log.Error("Seeding failed", zap.Int("created", n), zap.Error(err))
			return
		}
		log.Info("Seeding finished, exiting", zap.Int("created", n))
		return
	}

	if *backfill {
		log.Info("Starting contributor backfill")
		n, err := manager.BackfillContributors(ctx)
		if err != nil {
			log.Error("Contributor backfill failed", zap.Int("corrected", n), zap.Error(err))
			return
		}
		log.Info("Contributor backfill finished, exiting", zap.Int("corrected", n))
		return
	}

	apiHandler := api.NewAPIHandler(manager, log)
	router := api.NewRouter(apiHandler, log)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // prompt suggestions wait on the LLM
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exiting gracefully")
}

// openStore builds the configured backend. Local backends enforce the
// composite indexes the hosted one would require when asked to.
func openStore(ctx context.Context, cfg *config.Config) (store.DocumentStore, error) {
	var localOpts []store.Option
	if cfg.EnforceIndexes {
		localOpts = append(localOpts, store.WithIndexes(core.RequiredIndexes(store.NewIndexSet())))
	}

	var (
		docStore store.DocumentStore
		err      error
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		docStore = store.NewMemoryStore(localOpts...)
	case config.DriverSQLite:
		docStore, err = store.NewSQLiteStore(cfg.DatabaseURL, localOpts...)
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		docStore, err = store.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverFirestore:
		docStore, err = store.NewFirestoreStore(ctx, cfg.FirestoreID, cfg.FirebaseCreds)
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}
	return store.WithTimeout(docStore, cfg.StoreTimeout), nil
}
