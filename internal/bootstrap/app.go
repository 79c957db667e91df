package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docchat/internal/ai"
	"docchat/internal/app"
	"docchat/internal/cache"
	"docchat/internal/config"
	"docchat/internal/lock"
	"docchat/internal/logging"
	"docchat/internal/metrics"
	"docchat/internal/pkg/textsplit"
	mysqlClient "docchat/internal/platform/mysql"
	rabbitmqClient "docchat/internal/platform/rabbitmq"
	redisClient "docchat/internal/platform/redis"
	sqliteClient "docchat/internal/platform/sqlite"
	"docchat/internal/pubsub"
	"docchat/internal/repository"
	"docchat/internal/storage"
	"docchat/internal/vectorindex"
	"docchat/internal/worker"
)

// Options selects which optional parts of the process are started.
type Options struct {
	// Messaging connects to RabbitMQ so uploads enqueue provisioning jobs.
	Messaging bool
	// StartWorker also consumes provisioning jobs in this process.
	StartWorker bool
}

// App owns every long-lived client of the process. Close releases them in
// reverse dependency order.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	MQConn   *amqp.Connection
	Index    vectorindex.Index
	Objects  *storage.LocalStore
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Auth        *app.AuthService
	Documents   *app.DocumentService
	Chat        *app.ChatService
	Provisioner *app.Provisioner

	Jobs   *rabbitmqClient.JobPublisher
	Worker *worker.ProvisionWorker

	StartedAt time.Time
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (_ *App, err error) {
	a := &App{
		Config:    cfg,
		Logger:    logger,
		StartedAt: time.Now(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	ctx = logging.WithLogger(ctx, logger)

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	if a.DB, err = openDatabase(ctx, cfg); err != nil {
		return nil, err
	}
	if err = repository.AutoMigrate(a.DB); err != nil {
		return nil, err
	}

	if a.Redis, err = redisClient.New(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}); err != nil {
		return nil, err
	}

	if a.Index, err = openIndex(ctx, cfg); err != nil {
		return nil, err
	}

	if a.Objects, err = storage.NewLocalStore(cfg.Storage.Dir, cfg.PublicBaseURL()); err != nil {
		return nil, err
	}

	chatModel, err := ai.NewChatModel(ctx, ai.ChatModelConfig{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	embedder := newEmbedder(cfg)

	docRepo := repository.NewDocumentRepository(a.DB)
	turnRepo := repository.NewChatTurnRepository(a.DB)
	transcript := app.NewTranscriptStore(
		turnRepo,
		cache.NewTranscriptCache(a.Redis,
			time.Duration(cfg.Redis.TranscriptTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.TranscriptDirtyTTLSeconds)*time.Second,
		),
		pubsub.NewRedisNotifier(a.Redis),
	)

	a.Provisioner = app.NewProvisioner(
		docRepo,
		app.NewIngestor(a.Objects, textsplit.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)),
		embedder,
		a.Index,
		lock.NewRedisLocker(a.Redis),
		cfg.ProvisionLockTTL(),
		a.Metrics,
	)
	orchestrator := app.NewOrchestrator(a.Provisioner, transcript, chatModel, app.OrchestratorConfig{
		TopK:             cfg.RAG.TopK,
		HistoryMaxTurns:  cfg.RAG.HistoryMaxTurns,
		HistoryMaxTokens: cfg.RAG.HistoryMaxTokens,
	}, a.Metrics)

	a.Auth = app.NewAuthService(repository.NewUserRepository(a.DB), cfg.Auth.JWTSecret, cfg.JWTExpiration())
	a.Chat = app.NewChatService(docRepo, transcript, orchestrator, cfg.Chat.MaxQuestionsPerDocument)

	var jobs app.ProvisionJobPublisher
	if opts.Messaging || opts.StartWorker {
		if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL); err != nil {
			return nil, err
		}
		a.Jobs = rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.ProvisionQueue)
		jobs = a.Jobs
	}
	a.Documents = app.NewDocumentService(docRepo, a.Objects, jobs, int64(cfg.Storage.MaxUploadMB)<<20)

	if opts.StartWorker {
		a.Worker = worker.NewProvisionWorker(a.MQConn, a.Provisioner, cfg.RabbitMQ.ProvisionQueue)
		if err = a.Worker.Start(ctx); err != nil {
			return nil, fmt.Errorf("start provision worker failed: %w", err)
		}
	}

	logger.Info("application initialised",
		"database", cfg.Database.Driver,
		"vector_backend", cfg.Vector.Backend,
		"llm_provider", cfg.LLM.Provider,
		"worker", opts.StartWorker,
	)
	return a, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return sqliteClient.New(ctx, cfg.SQLite.Path)
	default:
		return mysqlClient.New(ctx, mysqlClient.Options{
			DSN:          cfg.MySQLDSN(),
			MaxOpenConns: cfg.MySQL.MaxOpenConns,
			MaxIdleConns: cfg.MySQL.MaxIdleConns,
		})
	}
}

func openIndex(ctx context.Context, cfg *config.Config) (vectorindex.Index, error) {
	if cfg.Vector.Backend == "memory" {
		return vectorindex.NewMemoryIndex(cfg.LLM.EmbeddingDims), nil
	}
	return vectorindex.NewQdrantIndex(ctx, vectorindex.QdrantConfig{
		Host:       cfg.Vector.Host,
		Port:       cfg.Vector.Port,
		APIKey:     cfg.Vector.APIKey,
		UseTLS:     cfg.Vector.UseTLS,
		Collection: cfg.Vector.Collection,
		VectorSize: uint64(cfg.LLM.EmbeddingDims),
	})
}

func newEmbedder(cfg *config.Config) *ai.OpenAIEmbedder {
	baseURL := cfg.LLM.EmbeddingBaseURL
	if baseURL == "" {
		baseURL = cfg.LLM.BaseURL
	}
	apiKey := cfg.LLM.EmbeddingAPIKey
	if apiKey == "" {
		apiKey = cfg.LLM.APIKey
	}
	return ai.NewOpenAIEmbedder(ai.NewOpenAICompatibleClient(baseURL, apiKey), ai.EmbeddingConfig{
		Model:      cfg.LLM.EmbeddingModel,
		Dimensions: cfg.LLM.EmbeddingDims,
	})
}

func (a *App) Close() error {
	var errs []error
	if a.Worker != nil {
		a.Worker.Close()
	}
	if a.Jobs != nil {
		if err := a.Jobs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
