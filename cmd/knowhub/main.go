package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/knowhub/knowhub/internal/ai"
	"github.com/knowhub/knowhub/internal/config"
	"github.com/knowhub/knowhub/internal/db"
	"github.com/knowhub/knowhub/internal/embedcache"
	"github.com/knowhub/knowhub/internal/filestore"
	"github.com/knowhub/knowhub/internal/handler"
	"github.com/knowhub/knowhub/internal/job"
	"github.com/knowhub/knowhub/internal/metrics"
	"github.com/knowhub/knowhub/internal/middleware"
	"github.com/knowhub/knowhub/internal/repo"
	"github.com/knowhub/knowhub/internal/schedule"
	"github.com/knowhub/knowhub/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "knowhub",
		Short: "knowhub context retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run knowhub server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildGenerator(cfg config.AIConfig) (ai.IGenerator, error) {
	entries := make([]ai.GeneratorEntry, 0, len(cfg.Fallbacks)+1)
	provider, err := ai.NewProvider(cfg.Provider, providerArgs(cfg.Data, cfg))
	if err != nil {
		return nil, err
	}
	entries = append(entries, ai.GeneratorEntry{
		Name:      cfg.Provider,
		Generator: ai.NewGenerator(provider, cfg.Model),
	})
	for _, fb := range cfg.Fallbacks {
		if fb.Model == "" {
			continue
		}
		p, err := ai.NewProvider(fb.Provider, providerArgs(fb.Data, fb))
		if err != nil {
			return nil, fmt.Errorf("init fallback provider %s: %w", fb.Provider, err)
		}
		entries = append(entries, ai.GeneratorEntry{
			Name:      fb.Provider,
			Generator: ai.NewGenerator(p, fb.Model),
		})
	}
	if len(entries) == 1 {
		return entries[0].Generator, nil
	}
	return ai.NewGroupGenerator(entries), nil
}

func buildEmbedder(cfg config.AIConfig) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, len(cfg.Fallbacks)+1)
	provider, err := ai.NewEmbedProvider(cfg.Provider, providerArgs(cfg.Data, cfg))
	if err != nil {
		return nil, err
	}
	entries = append(entries, ai.EmbedderEntry{
		Name:     cfg.EmbedModel,
		Embedder: ai.NewEmbedder(provider, cfg.EmbedModel),
	})
	for _, fb := range cfg.Fallbacks {
		if fb.EmbedModel == "" {
			continue
		}
		p, err := ai.NewEmbedProvider(fb.Provider, providerArgs(fb.Data, fb))
		if err != nil {
			return nil, fmt.Errorf("init fallback embed provider %s: %w", fb.Provider, err)
		}
		entries = append(entries, ai.EmbedderEntry{
			Name:     fb.EmbedModel,
			Embedder: ai.NewEmbedder(p, fb.EmbedModel),
		})
	}
	if len(entries) == 1 {
		return entries[0].Embedder, nil
	}
	return ai.NewGroupEmbedder(entries), nil
}

func providerArgs(data json.RawMessage, fallback interface{}) interface{} {
	if len(data) == 0 {
		return fallback
	}
	return data
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_host", cfg.Database.Host),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	userRepo := repo.NewUserRepo(conn)
	docRepo := repo.NewDocumentRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	grantRepo := repo.NewGrantRepo(conn)
	auditRepo := repo.NewAuditRepo(conn)
	cacheRepo := repo.NewContextCacheRepo(conn)
	batchRepo := repo.NewBatchJobRepo(conn)
	embedCacheRepo := repo.NewEmbeddingCacheRepo(conn)
	metricRepo := repo.NewMetricRepo(conn)

	generator, err := buildGenerator(cfg.AI)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder, err := buildEmbedder(cfg.AI)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, embedCacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTLMin)*time.Minute)
	manager := ai.NewManager(generator, embedder, ai.ManagerConfig{
		Timeout:       cfg.AI.Timeout,
		MaxInputChars: cfg.AI.MaxInputChars,
	})

	var sink metrics.Sink = metrics.NewNullSink()
	if cfg.Properties.EnableMetrics {
		sink = metrics.NewDBSink(metricRepo)
	}

	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours), cfg.Properties.EnableUserRegister)
	permService := service.NewPermissionService(docRepo, grantRepo, auditRepo)
	contextCache := service.NewContextCache(cacheRepo, time.Duration(cfg.Retrieval.CacheTTLMinutes)*time.Minute)
	batchService := service.NewBatchService(batchRepo)
	ingestService := service.NewIngestService(ai.NewChunker(), manager, chunkRepo, contextCache, batchService)
	documentService := service.NewDocumentService(docRepo, chunkRepo, permService, batchService, ingestService, contextCache, manager)
	retrievalService := service.NewRetrievalService(manager, chunkRepo, permService, contextCache, sink, service.RetrievalConfig{
		DefaultThreshold: cfg.Retrieval.DefaultThreshold,
		DefaultCount:     cfg.Retrieval.DefaultCount,
		MaxCount:         cfg.Retrieval.MaxCount,
	})

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	deps := handler.RouterDeps{
		Auth:       handler.NewAuthHandler(authService),
		Documents:  handler.NewDocumentHandler(documentService),
		Grants:     handler.NewGrantHandler(permService),
		Retrieval:  handler.NewRetrievalHandler(retrievalService),
		Batches:    handler.NewBatchHandler(batchService),
		Files:      handler.NewFileHandler(store, cfg.FileStore),
		Properties: handler.NewPropertiesHandler(cfg.Properties),
		JWTSecret:  []byte(cfg.JWTSecret),
		AuthWindow: time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewContextCacheCleanupJob(cacheRepo, cfg.Retrieval.CacheTTLMinutes), cfg.Jobs.CacheCleanupSpec); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(embedCacheRepo, cfg.Jobs.EmbedCacheAgeDays), cfg.Jobs.EmbedCacheCleanupSpec); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewBatchCleanupJob(batchService, cfg.Jobs.BatchRetentionDays), cfg.Jobs.BatchCleanupSpec); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingResyncJob(ingestService, cfg.Jobs.EmbedResyncBatchCap), cfg.Jobs.EmbedResyncSpec); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewDocumentSummaryJob(documentService, cfg.Jobs.SummaryBatchCap), cfg.Jobs.SummarySpec); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
