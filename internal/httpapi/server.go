package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"devclip/internal/auth"
	"devclip/internal/billing"
	"devclip/internal/catalog"
	"devclip/internal/config"
	"devclip/internal/formatter"
	"devclip/internal/logging"
	"devclip/internal/models"
	"devclip/internal/pipeline"
	"devclip/internal/providers"
	"devclip/internal/queue"
	"devclip/internal/ratelimit"
	"devclip/internal/storage"
	"devclip/internal/utils"
)

// Server owns the wired handler and every background component that needs
// an orderly shutdown.
type Server struct {
	Handler http.Handler

	db            *storage.DB
	redis         *storage.RedisClient
	usageWorker   *storage.UsageQueueWorker
	refreshWorker *billing.RefreshWorker
	sink          logging.Sink
	provider      providers.Provider
	logger        *utils.Logger
}

// backend is the storage the services run on
type backend struct {
	accounts billing.AccountStore
	keys     auth.KeyStore
	usage    interface {
		storage.UsageWriter
		UsageLister
	}
	health HealthChecker
}

// NewServer builds every dependency described by cfg and starts the
// background workers
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{logger: utils.NewLogger("server")}

	be, err := s.initStorage(ctx, cfg)
	if err != nil {
		s.Shutdown(ctx)
		return nil, err
	}

	if cfg.Redis.Enabled {
		s.redis, err = storage.NewRedisClient(ctx, storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			s.Shutdown(ctx)
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
	}

	var limiter ratelimit.Limiter = ratelimit.NewNoopLimiter()
	if cfg.RateLimit.Enabled && s.redis != nil {
		limiter = ratelimit.NewRateLimiter(s.redis.Client(), cfg.RateLimit.Window)
	}

	s.sink = logging.NewNoopSink()
	if cfg.ErrorArchive.Enabled {
		writer, err := logging.NewS3Writer(ctx, cfg.ErrorArchive.S3Bucket, cfg.ErrorArchive.S3Region,
			cfg.ErrorArchive.S3Prefix, cfg.ErrorArchive.PodName)
		if err != nil {
			s.Shutdown(ctx)
			return nil, fmt.Errorf("failed to initialize error archive: %w", err)
		}
		s.sink = logging.NewArchiveSink(writer, logging.ArchiveConfig{
			BufferSize:    cfg.ErrorArchive.BufferSize,
			FlushSize:     cfg.ErrorArchive.FlushSize,
			FlushInterval: cfg.ErrorArchive.FlushInterval,
		})
	}

	usage, err := s.initUsage(ctx, cfg, be.usage)
	if err != nil {
		s.Shutdown(ctx)
		return nil, err
	}

	var assistant pipeline.Assistant
	if cfg.AI.APIKey != "" {
		provider, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
			Timeout: cfg.AI.RequestTimeout,
		})
		if err != nil {
			s.Shutdown(ctx)
			return nil, fmt.Errorf("failed to initialize AI provider: %w", err)
		}
		s.provider = provider
		a, err := providers.NewAssistant(provider, providers.AssistantConfig{
			Models: map[models.PlanTier]string{
				models.TierFree:       cfg.AI.FreeModel,
				models.TierPro:        cfg.AI.ProModel,
				models.TierEnterprise: cfg.AI.EnterpriseModel,
			},
			MaxTokens: cfg.AI.MaxTokens,
			Timeout:   cfg.AI.RequestTimeout,
		})
		if err != nil {
			s.Shutdown(ctx)
			return nil, fmt.Errorf("failed to initialize AI assistant: %w", err)
		}
		assistant = a
	} else {
		s.logger.Warn("AI_API_KEY not set, AI operations are disabled")
	}

	ledger := billing.NewLedger(be.accounts)
	keys := auth.NewKeyService(be.keys)
	ops := catalog.Default()

	if cfg.Refresh.Enabled {
		s.refreshWorker = billing.NewRefreshWorker(ledger, cfg.Refresh.Interval)
		s.refreshWorker.Start(context.Background())
	}

	deps := &Dependencies{
		Pipeline: pipeline.New(pipeline.Config{
			Catalog:   ops,
			Keys:      keys,
			Ledger:    ledger,
			Formatter: formatter.NewEngine(),
			Assistant: assistant,
			Usage:     usage,
			Limits: pipeline.Limits{
				LocalMaxBytes: cfg.Limits.FormatMaxBytes,
				AIMaxBytes:    cfg.Limits.AIMaxBytes,
			},
		}),
		Catalog:           ops,
		Keys:              keys,
		Ledger:            ledger,
		Usage:             be.usage,
		RateLimit:         limiter,
		Reporter:          logging.NewErrorReporter(s.sink, "httpapi", cfg.ErrorArchive.PodName),
		JWTSecret:         cfg.JWTSecret,
		AdminPasswordHash: cfg.AdminPasswordHash,
		FormatMaxBytes:    int64(cfg.Limits.FormatMaxBytes),
		AIMaxBytes:        int64(cfg.Limits.AIMaxBytes),
		Health:            s.health(be.health),
	}
	if s.db != nil {
		deps.DBStats = s.db.GetStats
	}
	if s.usageWorker != nil {
		deps.UsageQueue = s.usageWorker
	}
	s.Handler = NewRouter(deps)

	return s, nil
}

func (s *Server) initStorage(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.Storage == config.StorageMemory {
		s.logger.Warn("Using in-memory storage, data is lost on restart")
		store := storage.NewMemoryStore()
		return &backend{
			accounts: store.Accounts(),
			keys:     store.APIKeys(),
			usage:    store.Usage(),
		}, nil
	}

	db, err := storage.NewDB(storage.DBConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		APIKeyCacheSize: cfg.Cache.APIKeyCacheSize,
		APIKeyCacheTTL:  cfg.Cache.APIKeyCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &backend{
		accounts: db.NewAccountRepository(),
		keys:     db.NewAPIKeyRepository(),
		usage:    db.NewUsageRepository(),
		health:   db.Health,
	}, nil
}

// initUsage returns the recorder the pipeline writes usage through: the
// store itself, or a queue drained by a background worker
func (s *Server) initUsage(ctx context.Context, cfg *config.Config, writer storage.UsageWriter) (pipeline.UsageRecorder, error) {
	if !cfg.UsageQueue.Async {
		return writer, nil
	}

	qcfg := queue.DefaultConfig("usage")
	qcfg.BatchSize = cfg.UsageQueue.BatchSize
	qcfg.BatchTimeout = cfg.UsageQueue.BatchTimeout
	qcfg.MaxRetries = cfg.UsageQueue.MaxRetries
	qcfg.RetryBackoff = cfg.UsageQueue.RetryBackoff

	var (
		q   queue.Queue[*models.UsageRecord]
		dlq queue.DeadLetterQueue[*models.UsageRecord]
		err error
	)
	if cfg.UsageQueue.UseRedis && s.redis != nil {
		q, err = queue.NewRedisQueue[*models.UsageRecord](s.redis.Client(), qcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create usage queue: %w", err)
		}
		dlq, err = queue.NewRedisDeadLetterQueue[*models.UsageRecord](s.redis.Client(), qcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create usage DLQ: %w", err)
		}
	} else {
		q = queue.NewMemoryQueue[*models.UsageRecord](qcfg)
		dlq = queue.NewMemoryDeadLetterQueue[*models.UsageRecord]()
	}

	s.usageWorker = storage.NewUsageQueueWorker(q, dlq, writer, qcfg)
	s.usageWorker.Start(context.Background())
	return s.usageWorker, nil
}

// health checks the store and, when enabled, Redis
func (s *Server) health(store HealthChecker) HealthChecker {
	return func(ctx context.Context) error {
		var errs []error
		if store != nil {
			errs = append(errs, store(ctx))
		}
		if s.redis != nil {
			errs = append(errs, s.redis.Health(ctx))
		}
		return errors.Join(errs...)
	}
}

// Shutdown stops the workers, flushes the error archive and closes
// connections. It is safe on a partially built server.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.refreshWorker != nil {
		errs = append(errs, s.refreshWorker.Stop())
	}
	if s.usageWorker != nil {
		errs = append(errs, s.usageWorker.Stop())
	}
	if s.sink != nil {
		errs = append(errs, s.sink.Shutdown(ctx))
	}
	if s.provider != nil {
		errs = append(errs, s.provider.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}

	return errors.Join(errs...)
}
